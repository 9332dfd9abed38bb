package attendance

import (
	"errors"
	"fmt"

	"github.com/skyunix/goinspur/internal/models"
)

var (
	ErrInvalidMonth = errors.New("month must be formatted YYYY-MM")
	ErrNoSites      = errors.New("no attendance sites found")
	ErrNoLocation   = errors.New("no search location available")
)

// AuthenticationError is the remote system rejecting a login.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Message
}

// PreconditionError is an operation attempted in the wrong session state.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func errNotLoggedIn(op string) error {
	return &PreconditionError{Op: op, Reason: "not logged in"}
}

// SiteNotSelectedError means no site could be resolved for an action. Err
// holds the cause, e.g. prompt.ErrCancelled or ErrNoSites.
type SiteNotSelectedError struct {
	Kind models.ActionKind
	Err  error
}

func (e *SiteNotSelectedError) Error() string {
	return fmt.Sprintf("no %s site selected: %v", e.Kind.Label(), e.Err)
}

func (e *SiteNotSelectedError) Unwrap() error {
	return e.Err
}
