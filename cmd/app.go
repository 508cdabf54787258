package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Jawayria/openedx-webhooks/config"
	"github.com/Jawayria/openedx-webhooks/internal/botcomment"
	"github.com/Jawayria/openedx-webhooks/internal/queue"
	"github.com/Jawayria/openedx-webhooks/internal/repository"
	"github.com/Jawayria/openedx-webhooks/internal/repository/githubapi"
	"github.com/Jawayria/openedx-webhooks/internal/repository/jira"
	"github.com/Jawayria/openedx-webhooks/internal/repository/repotools"
	"github.com/Jawayria/openedx-webhooks/internal/telemetry"
	"github.com/Jawayria/openedx-webhooks/internal/usecase"
	"github.com/Jawayria/openedx-webhooks/internal/usecase/domain"
	"github.com/Jawayria/openedx-webhooks/pkg/logger"

	"go.uber.org/zap"
)

// app holds the wired components shared by all commands.
type app struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	store repository.Repository
	uc    usecase.InterfaceUsecase

	closers []func(context.Context) error
}

// newApp loads configuration and wires every adapter. backend overrides the
// configured job store; inline commands use "memory" so they need no database.
func newApp(ctx context.Context, backend string) (*app, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, err
	}
	if backend == "" {
		backend = cfg.Queue.Backend
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, Version)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdownTelemetry)

	store, err := repository.New(ctx, backend, log, cfg)
	if err != nil {
		return nil, err
	}
	if err := store.OnStart(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, fmt.Errorf("job store start: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.OnStop)

	gh, err := githubapi.New(ctx, log, cfg.GitHub)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	directory, err := repotools.New(log, cfg.RepoTools, gh)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	renderer, err := botcomment.NewRenderer(cfg.Jira.BrowseURL(), cfg.App.PublicURL)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}

	a.uc = usecase.New(log, ctx, domain.Ports{
		GitHub:    gh,
		Jira:      jira.New(log, cfg.Jira),
		Directory: directory,
		Jobs:      store,
		Locks:     store,
	}, renderer, domain.Settings{
		URLField:          cfg.Jira.URLField,
		DefaultRescanRepo: cfg.App.DefaultRescanRepo,
		RescanConcurrency: cfg.Queue.Workers,
	}, cfg.HTTP.RequestTimeout)

	log.Infow("application wired", "version", Version, "job_store", backend)
	return a, nil
}

func (a *app) newPool() (*queue.Pool, error) {
	return queue.New(a.log, a.store, a.uc, a.cfg.Queue)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
