package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skyunix/goinspur/internal/attendance"
	"github.com/skyunix/goinspur/internal/models"
	"github.com/skyunix/goinspur/internal/prompt"
)

// Session is the part of *attendance.Session the menu drives.
type Session interface {
	PerformAction(ctx context.Context, kind models.ActionKind, radius *float64) (models.ActionResult, error)
	QueryHistory(ctx context.Context, month string, lastOnly bool) ([]models.AttendanceRecord, error)
	ReselectSite(ctx context.Context) (models.Site, error)
}

type MenuOptions struct {
	Prompter prompt.Prompter
	Out      io.Writer
	Session  Session
	// Switch logs in as another identity.
	Switch func(ctx context.Context) (Session, error)
	// AutoQuery shows the latest record after a successful action instead
	// of asking.
	AutoQuery bool
	Logger    zerolog.Logger
}

type Menu struct {
	prompter  prompt.Prompter
	out       io.Writer
	session   Session
	switchFn  func(ctx context.Context) (Session, error)
	autoQuery bool
	log       zerolog.Logger
}

const (
	menuCheckIn = iota
	menuCheckOut
	menuHistory
	menuSwitch
	menuReselect
	menuQuit
)

var menuItems = []string{
	menuCheckIn:  "Check in",
	menuCheckOut: "Check out",
	menuHistory:  "Query attendance records",
	menuSwitch:   "Switch user",
	menuReselect: "Reselect attendance site",
	menuQuit:     "Quit",
}

func NewMenu(opts MenuOptions) *Menu {
	return &Menu{
		prompter:  opts.Prompter,
		out:       opts.Out,
		session:   opts.Session,
		switchFn:  opts.Switch,
		autoQuery: opts.AutoQuery,
		log:       opts.Logger.With().Str("component", "menu").Logger(),
	}
}

// Run shows the menu until the user quits, interrupts the menu prompt or
// the input ends. A cancelled prompt inside an action returns to the menu.
func (m *Menu) Run(ctx context.Context) error {
	for {
		idx, err := m.prompter.Choose(ctx, "Select an action", menuItems)
		if err != nil {
			if errors.Is(err, prompt.ErrCancelled) {
				m.log.Info().Msg("bye")
				return nil
			}
			return err
		}

		switch idx {
		case menuCheckIn:
			m.action(ctx, models.CheckIn)
		case menuCheckOut:
			m.action(ctx, models.CheckOut)
		case menuHistory:
			m.history(ctx)
		case menuSwitch:
			m.switchUser(ctx)
		case menuReselect:
			m.reselect(ctx)
		case menuQuit:
			m.log.Info().Msg("bye")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintln(m.out, strings.Repeat("-", 50))
	}
}

func (m *Menu) action(ctx context.Context, kind models.ActionKind) {
	res, err := m.session.PerformAction(ctx, kind, nil)
	if err != nil {
		m.report(err, kind.Label())
		return
	}
	if !res.Success {
		m.log.Warn().Str("action", kind.Label()).Msg("action not completed")
		return
	}
	fmt.Fprintf(m.out, "%s done at %s\n", kind.Label(), res.Site.Address)

	show := m.autoQuery
	if !show {
		show, err = m.prompter.Confirm(ctx, "Query attendance records?")
		if err != nil {
			return
		}
	}
	if show {
		m.showHistory(ctx, "", true)
	}
}

func (m *Menu) history(ctx context.Context) {
	idx, err := m.prompter.Choose(ctx, "Query type", []string{"Current month", "Given month", "Back"})
	if err != nil {
		return
	}
	switch idx {
	case 0:
		m.showHistory(ctx, "", false)
	case 1:
		month, err := m.prompter.PromptLine(ctx, "Month (YYYY-MM, e.g. 2025-01)")
		if err != nil {
			return
		}
		if month == "" {
			m.log.Warn().Msg("month format is invalid")
			return
		}
		m.showHistory(ctx, month, false)
	}
}

func (m *Menu) showHistory(ctx context.Context, month string, lastOnly bool) {
	records, err := m.session.QueryHistory(ctx, month, lastOnly)
	if err != nil {
		m.report(err, "query history")
		return
	}
	if len(records) == 0 {
		fmt.Fprintln(m.out, "No attendance records.")
		return
	}
	RenderRecords(m.out, records)
}

func (m *Menu) switchUser(ctx context.Context) {
	if m.switchFn == nil {
		return
	}
	s, err := m.switchFn(ctx)
	if err != nil {
		m.report(err, "switch user")
		return
	}
	m.session = s
}

func (m *Menu) reselect(ctx context.Context) {
	site, err := m.session.ReselectSite(ctx)
	if err != nil {
		m.report(err, "reselect site")
		return
	}
	fmt.Fprintf(m.out, "Attendance site is now %s\n", site.Address)
}

func (m *Menu) report(err error, op string) {
	var notSelected *attendance.SiteNotSelectedError
	switch {
	case errors.Is(err, prompt.ErrCancelled):
		m.log.Warn().Str("op", op).Msg("cancelled")
	case errors.As(err, &notSelected):
		m.log.Warn().Err(err).Str("op", op).Msg("no site selected, choose another action")
	case errors.Is(err, attendance.ErrInvalidMonth):
		m.log.Warn().Str("op", op).Msg("month format is invalid")
	default:
		m.log.Error().Err(err).Str("op", op).Msg("operation failed")
	}
}

// RenderRecords writes records as a fixed-width table.
func RenderRecords(w io.Writer, records []models.AttendanceRecord) {
	rule := strings.Repeat("-", 50)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-12s %-15s %s\n", "Date", "Sign in", "Sign out")
	fmt.Fprintln(w, rule)
	for _, r := range records {
		in, out := r.SignIn, r.SignOut
		if in == "" {
			in = "not signed in"
		}
		if out == "" {
			out = "not signed out"
		}
		fmt.Fprintf(w, "%-12s %-15s %s\n", r.Date, in, out)
	}
	fmt.Fprintln(w, rule)
}
