package prompt

import (
	"context"
	"sync"
)

// Cancel can be queued in Script.Choices to cancel a choice prompt.
const Cancel = -1

// Script is a Prompter that replays queued answers. An exhausted queue
// behaves like a cancelled prompt. Intended for tests.
type Script struct {
	mu       sync.Mutex
	Choices  []int
	Lines    []string
	Secrets  []string
	Confirms []bool

	// Asked records every prompt text in order.
	Asked []string
	// Offered records the item lists passed to Choose.
	Offered [][]string
}

func (s *Script) Choose(_ context.Context, title string, items []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, title)
	s.Offered = append(s.Offered, append([]string(nil), items...))
	if len(s.Choices) == 0 {
		return 0, ErrCancelled
	}
	c := s.Choices[0]
	s.Choices = s.Choices[1:]
	if c < 0 || c >= len(items) {
		return 0, ErrCancelled
	}
	return c, nil
}

func (s *Script) PromptLine(_ context.Context, text string) (string, error) {
	return s.pop(&s.Lines, text)
}

func (s *Script) PromptSecret(_ context.Context, text string) (string, error) {
	return s.pop(&s.Secrets, text)
}

func (s *Script) Confirm(_ context.Context, text string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, text)
	if len(s.Confirms) == 0 {
		return false, ErrCancelled
	}
	c := s.Confirms[0]
	s.Confirms = s.Confirms[1:]
	return c, nil
}

func (s *Script) pop(queue *[]string, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, text)
	if len(*queue) == 0 {
		return "", ErrCancelled
	}
	v := (*queue)[0]
	*queue = (*queue)[1:]
	return v, nil
}
