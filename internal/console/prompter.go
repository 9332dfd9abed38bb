// Package console is the terminal front end: a line-based Prompter, the
// coordinate locator and the interactive menu.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skyunix/goinspur/internal/prompt"
)

// ErrInputClosed is returned once the input stream has ended. It matches
// prompt.ErrCancelled under errors.Is.
var ErrInputClosed = fmt.Errorf("input closed: %w", prompt.ErrCancelled)

const chooseAttempts = 3

// Console reads answers line by line from an input stream. Lines are read
// by a background goroutine so that a prompt can be abandoned on interrupt.
type Console struct {
	lines     chan string
	out       io.Writer
	interrupt func() (<-chan os.Signal, func())
	log       zerolog.Logger
}

type Option func(*Console)

// WithInterrupts replaces SIGINT handling with sig, for tests.
func WithInterrupts(sig <-chan os.Signal) Option {
	return func(c *Console) {
		c.interrupt = func() (<-chan os.Signal, func()) { return sig, func() {} }
	}
}

func New(in io.Reader, out io.Writer, log zerolog.Logger, opts ...Option) *Console {
	c := &Console{
		lines:     make(chan string),
		out:       out,
		interrupt: notifyInterrupt,
		log:       log.With().Str("component", "console").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.scan(in)
	return c
}

func notifyInterrupt() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch, func() { signal.Stop(ch) }
}

func (c *Console) scan(in io.Reader) {
	defer close(c.lines)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		c.lines <- strings.TrimRight(sc.Text(), "\r")
	}
}

func (c *Console) readLine(ctx context.Context, text string) (string, error) {
	fmt.Fprint(c.out, text)

	sig, stop := c.interrupt()
	defer stop()

	select {
	case line, ok := <-c.lines:
		if !ok {
			fmt.Fprintln(c.out)
			return "", ErrInputClosed
		}
		return line, nil
	case <-sig:
		fmt.Fprintln(c.out)
		c.log.Warn().Msg("input cancelled")
		return "", prompt.ErrCancelled
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Choose lists items numbered from 1 and reads a number. Too many invalid
// answers count as a cancel.
func (c *Console) Choose(ctx context.Context, title string, items []string) (int, error) {
	if len(items) == 0 {
		return 0, prompt.ErrCancelled
	}
	fmt.Fprintln(c.out, title)
	for i, item := range items {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, item)
	}

	for attempt := 1; attempt <= chooseAttempts; attempt++ {
		line, err := c.readLine(ctx, fmt.Sprintf("Select (1-%d): ", len(items)))
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && n >= 1 && n <= len(items) {
			return n - 1, nil
		}
		c.log.Warn().Int("remaining", chooseAttempts-attempt).Msgf("enter a number between 1 and %d", len(items))
	}
	c.log.Error().Msg("too many invalid choices")
	return 0, prompt.ErrCancelled
}

func (c *Console) PromptLine(ctx context.Context, text string) (string, error) {
	line, err := c.readLine(ctx, text+": ")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PromptSecret reads a line like PromptLine. Input is echoed.
func (c *Console) PromptSecret(ctx context.Context, text string) (string, error) {
	return c.readLine(ctx, text+": ")
}

func (c *Console) Confirm(ctx context.Context, text string) (bool, error) {
	line, err := c.readLine(ctx, text+" (y/n): ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
