// Package jobs runs check-in and check-out unattended on cron schedules.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/skyunix/goinspur/internal/models"
)

var ErrNothingScheduled = errors.New("no check-in or check-out schedule configured")

type Session interface {
	PerformAction(ctx context.Context, kind models.ActionKind, radius *float64) (models.ActionResult, error)
	QueryHistory(ctx context.Context, month string, lastOnly bool) ([]models.AttendanceRecord, error)
}

// LoginFunc returns a session to run one job with.
type LoginFunc func(ctx context.Context) (Session, error)

// Specs are cron expressions with a leading seconds field. Empty disables.
type Specs struct {
	CheckIn  string
	CheckOut string
}

type Scheduler struct {
	cron       *cron.Cron
	specs      Specs
	login      LoginFunc
	queryAfter bool
	mu         sync.Mutex
	ctx        context.Context
	log        zerolog.Logger
}

func NewScheduler(specs Specs, login LoginFunc, queryAfter bool, log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{
		cron:       c,
		specs:      specs,
		login:      login,
		queryAfter: queryAfter,
		ctx:        context.Background(),
		log:        log,
	}
}

// Start registers the configured jobs and starts the cron loop. Jobs run
// with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	jobs := []struct {
		kind models.ActionKind
		spec string
	}{
		{models.CheckIn, s.specs.CheckIn},
		{models.CheckOut, s.specs.CheckOut},
	}

	added := 0
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		kind := j.kind
		if _, err := s.cron.AddFunc(j.spec, func() { s.runJob(kind) }); err != nil {
			return fmt.Errorf("schedule %s %q: %w", kind.Label(), j.spec, err)
		}
		s.log.Info().Str("action", kind.Label()).Str("spec", j.spec).Msg("job scheduled")
		added++
	}
	if added == 0 {
		return ErrNothingScheduled
	}

	s.cron.Start()
	return nil
}

// Stop stops scheduling. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runJob(kind models.ActionKind) {
	if _, err := s.Run(s.ctx, kind); err != nil {
		s.log.Error().Err(err).Str("action", kind.Label()).Msg("scheduled job failed")
	}
}

// Run logs in and performs kind once. Runs are serialized.
func (s *Scheduler) Run(ctx context.Context, kind models.ActionKind) (models.ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.login(ctx)
	if err != nil {
		return models.ActionResult{}, fmt.Errorf("login: %w", err)
	}

	res, err := sess.PerformAction(ctx, kind, nil)
	if err != nil {
		return models.ActionResult{}, err
	}
	if !res.Success {
		s.log.Warn().Str("action", kind.Label()).Str("reason", res.Message).Msg("scheduled action refused")
		return res, nil
	}

	if s.queryAfter {
		records, err := sess.QueryHistory(ctx, "", true)
		if err != nil {
			s.log.Warn().Err(err).Msg("query history failed")
		}
		for _, r := range records {
			s.log.Info().Str("date", r.Date).Str("sign_in", r.SignIn).Str("sign_out", r.SignOut).Msg("latest record")
		}
	}
	return res, nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
