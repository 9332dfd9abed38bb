// Package prompt defines the interactive collaborator used by the session
// and the credential resolver.
package prompt

import (
	"context"
	"errors"
)

// ErrCancelled is returned when the user interrupts or declines a prompt.
var ErrCancelled = errors.New("cancelled")

// Prompter asks the user for input. Every method returns ErrCancelled when
// the prompt is interrupted. Choose returns a zero-based index into items.
type Prompter interface {
	Choose(ctx context.Context, title string, items []string) (int, error)
	PromptLine(ctx context.Context, text string) (string, error)
	PromptSecret(ctx context.Context, text string) (string, error)
	Confirm(ctx context.Context, text string) (bool, error)
}

// Unattended answers every prompt with ErrCancelled. It is used when no
// terminal is attached, e.g. for scheduled actions.
type Unattended struct{}

func (Unattended) Choose(context.Context, string, []string) (int, error) {
	return 0, ErrCancelled
}

func (Unattended) PromptLine(context.Context, string) (string, error) {
	return "", ErrCancelled
}

func (Unattended) PromptSecret(context.Context, string) (string, error) {
	return "", ErrCancelled
}

func (Unattended) Confirm(context.Context, string) (bool, error) {
	return false, ErrCancelled
}
