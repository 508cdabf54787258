// Package queue runs queued jobs on a pool of workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Jawayria/openedx-webhooks/config"
	"github.com/Jawayria/openedx-webhooks/internal/entities"
	"github.com/Jawayria/openedx-webhooks/internal/repository"
	"github.com/Jawayria/openedx-webhooks/internal/telemetry"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const scope = "github.com/Jawayria/openedx-webhooks/internal/queue"

// Handler runs one job and returns the result stored as its info.
type Handler interface {
	HandleJob(ctx context.Context, job entities.Job) (any, error)
}

// Pool claims jobs from the store and runs them.
type Pool struct {
	log     *zap.SugaredLogger
	store   repository.JobInterface
	handler Handler
	cfg     config.QueueConfig

	tracer    trace.Tracer
	processed metric.Int64Counter
	duration  metric.Float64Histogram

	now func() time.Time
}

// New creates a worker pool.
func New(log *zap.SugaredLogger, store repository.JobInterface, handler Handler, cfg config.QueueConfig) (*Pool, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}

	meter := telemetry.Meter(scope)
	processed, err := meter.Int64Counter("openedx_webhooks.jobs.processed",
		metric.WithDescription("Jobs run by the worker pool, by kind and outcome."))
	if err != nil {
		return nil, fmt.Errorf("jobs counter: %w", err)
	}
	duration, err := meter.Float64Histogram("openedx_webhooks.jobs.duration",
		metric.WithDescription("Job run time."), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("jobs histogram: %w", err)
	}

	return &Pool{
		log:       log.Named("queue"),
		store:     store,
		handler:   handler,
		cfg:       cfg,
		tracer:    telemetry.Tracer(scope),
		processed: processed,
		duration:  duration,
		now:       time.Now,
	}, nil
}

// Run starts the workers and blocks until ctx is done.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Infow("worker pool started", "workers", p.cfg.Workers)
	g, ctx := errgroup.WithContext(ctx)
	for i := range p.cfg.Workers {
		g.Go(func() error {
			p.work(ctx, i)
			return nil
		})
	}
	err := g.Wait()
	p.log.Infow("worker pool stopped")
	return err
}

func (p *Pool) work(ctx context.Context, worker int) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		ran, err := p.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			p.log.Errorw("claim failed", "worker", worker, "error", err)
		}
		if ran {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce claims and runs a single job. It reports whether a job was found.
func (p *Pool) RunOnce(ctx context.Context) (bool, error) {
	job, err := p.store.ClaimJob(ctx, p.now())
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	p.execute(ctx, *job)
	return true, nil
}

func (p *Pool) execute(ctx context.Context, job entities.Job) {
	ctx, span := p.tracer.Start(ctx, "job "+string(job.Kind), trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.kind", string(job.Kind)),
		attribute.Int("job.attempt", job.Attempts),
	))
	defer span.End()

	log := p.log.With("job_id", job.ID, "kind", job.Kind, "attempt", job.Attempts)
	started := p.now()

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if p.cfg.JobTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.JobTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	out, err := p.handle(runCtx, job)
	cancel()

	// The outcome is recorded even when the pool is shutting down.
	storeCtx := context.WithoutCancel(ctx)
	state := p.settle(storeCtx, log, job, out, err)

	attrs := metric.WithAttributes(
		attribute.String("kind", string(job.Kind)),
		attribute.String("state", string(state)),
	)
	p.processed.Add(storeCtx, 1, attrs)
	p.duration.Record(storeCtx, p.now().Sub(started).Seconds(), attrs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (p *Pool) handle(ctx context.Context, job entities.Job) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = backoff.Permanent(fmt.Errorf("job panicked: %v", r))
		}
	}()
	return p.handler.HandleJob(ctx, job)
}

func (p *Pool) settle(ctx context.Context, log *zap.SugaredLogger, job entities.Job, out any, err error) entities.JobState {
	if err == nil {
		info, mErr := json.Marshal(out)
		if mErr != nil {
			info = nil
			log.Warnw("job result is not serializable", "error", mErr)
		}
		if sErr := p.store.CompleteJob(ctx, job.ID, info); sErr != nil {
			log.Errorw("failed to complete job", "error", sErr)
		}
		log.Infow("job succeeded")
		return entities.JobSuccess
	}

	if isPermanent(err) || job.Attempts >= p.cfg.MaxAttempts {
		if sErr := p.store.FailJob(ctx, job.ID, err.Error()); sErr != nil {
			log.Errorw("failed to fail job", "error", sErr)
		}
		log.Errorw("job failed", "error", err)
		return entities.JobFailure
	}

	runAt := p.now().Add(p.retryDelay(job.Attempts))
	if sErr := p.store.RetryJob(ctx, job.ID, err.Error(), runAt); sErr != nil {
		log.Errorw("failed to reschedule job", "error", sErr)
	}
	log.Warnw("job will be retried", "error", err, "run_at", runAt)
	return entities.JobRetry
}

// retryDelay grows exponentially with the number of attempts made.
func (p *Pool) retryDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.RetryDelay
	b.MaxInterval = 30 * p.cfg.RetryDelay
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.InitialInterval
	for range max(attempts, 1) {
		d = b.NextBackOff()
	}
	return d
}

// isPermanent reports errors a retry cannot fix.
func isPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.Is(err, entities.ErrInvalidTransition) ||
		errors.Is(err, entities.ErrInvalidArgument) ||
		errors.Is(err, entities.ErrNotFound) ||
		errors.Is(err, entities.ErrUnknownField) ||
		errors.As(err, &perm)
}
