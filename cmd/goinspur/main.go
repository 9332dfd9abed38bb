package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/skyunix/goinspur/internal/attendance"
	"github.com/skyunix/goinspur/internal/config"
	"github.com/skyunix/goinspur/internal/console"
	"github.com/skyunix/goinspur/internal/credentials"
	"github.com/skyunix/goinspur/internal/jobs"
	"github.com/skyunix/goinspur/internal/log"
	"github.com/skyunix/goinspur/internal/models"
	"github.com/skyunix/goinspur/internal/prompt"
	"github.com/skyunix/goinspur/internal/repository"
	"github.com/skyunix/goinspur/internal/transport"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	schedule := flag.Bool("schedule", false, "run check-in/check-out on the configured schedule instead of the menu")
	flag.Parse()

	if err := run(*configPath, *schedule); err != nil {
		fmt.Fprintln(os.Stderr, "goinspur:", err)
		os.Exit(1)
	}
}

func run(configPath string, schedule bool) error {
	created, err := config.EnsureFile(configPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closer, err := log.New(cfg.User.App.LogLevel, cfg.User.App.LogDir)
	if err != nil {
		return err
	}
	defer closer.Close()

	if created {
		logger.Info().Str("path", configPath).Msg("config file created from template")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	execCfg := transport.DefaultConfig(cfg.BaseURL)
	execCfg.Timeout = cfg.RequestTimeout
	execCfg.MaxAttempts = cfg.MaxAttempts
	exec, err := transport.NewExecutor(execCfg, logger)
	if err != nil {
		return err
	}
	defer exec.Close()

	store := repository.NewConfigStore(configPath, logger)

	if schedule {
		return runScheduled(cfg, exec, store, logger)
	}
	return runInteractive(cfg, exec, store, logger)
}

func runInteractive(cfg *config.Config, exec *transport.Executor, store *repository.ConfigStore, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	term := console.New(os.Stdin, os.Stdout, logger)

	var def *models.Point
	if p, ok := cfg.DefaultPoint(); ok {
		def = &p
	}

	client := attendance.NewClient(attendance.Options{
		Executor: exec,
		Store:    store,
		Prompter: term,
		Locator:  console.NewLocator(term, store, def, logger),
		Radius:   cfg.RadiusMeters(),
		Logger:   logger,
	})
	resolver := credentials.NewResolver(store, client, term, logger,
		credentials.WithDefaultPassword(cfg.DefaultPasswordHash()))

	res, err := resolver.Resolve(ctx)
	if err != nil {
		if errors.Is(err, prompt.ErrCancelled) {
			return nil
		}
		return fmt.Errorf("login: %w", err)
	}
	res.Session.EnsureSiteLoaded()

	menu := console.NewMenu(console.MenuOptions{
		Prompter: term,
		Out:      os.Stdout,
		Session:  res.Session,
		Switch: func(ctx context.Context) (console.Session, error) {
			res, err := resolver.Switch(ctx)
			if err != nil {
				return nil, err
			}
			return res.Session, nil
		},
		AutoQuery: cfg.User.App.AutoQueryAfterCheck,
		Logger:    logger,
	})
	return menu.Run(ctx)
}

func runScheduled(cfg *config.Config, exec *transport.Executor, store *repository.ConfigStore, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	unattended := prompt.Unattended{}
	client := attendance.NewClient(attendance.Options{
		Executor: exec,
		Store:    store,
		Prompter: unattended,
		Radius:   cfg.RadiusMeters(),
		Logger:   logger,
	})
	resolver := credentials.NewResolver(store, client, unattended, logger,
		credentials.WithDefaultPassword(cfg.DefaultPasswordHash()))

	login := func(ctx context.Context) (jobs.Session, error) {
		res, err := resolver.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		return res.Session, nil
	}

	scheduler := jobs.NewScheduler(jobs.Specs{
		CheckIn:  cfg.Schedule.CheckIn,
		CheckOut: cfg.Schedule.CheckOut,
	}, login, cfg.User.App.AutoQueryAfterCheck, logger)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	logger.Info().Msg("scheduler running, press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	<-scheduler.Stop().Done()
	logger.Info().Msg("scheduler stopped")
	return nil
}
