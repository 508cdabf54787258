// Package memory implements the job store in process memory. Jobs do not
// survive a restart; it suits a single-process deployment and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Jawayria/openedx-webhooks/internal/entities"

	"go.uber.org/zap"
)

// Memory keeps jobs in a map guarded by a mutex.
type Memory struct {
	log *zap.SugaredLogger

	mu    sync.Mutex
	jobs  map[string]*entities.Job
	order []string

	locksMu sync.Mutex
	locks   map[string]*keyLock
}

type keyLock struct {
	held    chan struct{}
	waiters int
}

// New creates an empty store.
func New(log *zap.SugaredLogger) *Memory {
	return &Memory{
		log:   log.Named("repo.memory"),
		jobs:  map[string]*entities.Job{},
		locks: map[string]*keyLock{},
	}
}

// Lock implements repository.LockerInterface within this process.
func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	m.locksMu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{held: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.waiters++
	m.locksMu.Unlock()

	select {
	case l.held <- struct{}{}:
	case <-ctx.Done():
		m.dropLock(key, l)
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.held
			m.dropLock(key, l)
		})
	}, nil
}

func (m *Memory) dropLock(key string, l *keyLock) {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l.waiters--
	if l.waiters == 0 {
		delete(m.locks, key)
	}
}

// OnStart is a no-op.
func (m *Memory) OnStart(_ context.Context) error {
	m.log.Infow("memory job store ready")
	return nil
}

// OnStop is a no-op.
func (m *Memory) OnStop(_ context.Context) error { return nil }

// Ping always succeeds.
func (m *Memory) Ping(_ context.Context) error { return nil }

// CreateJobs stores new jobs as PENDING.
func (m *Memory) CreateJobs(_ context.Context, jobs ...entities.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range jobs {
		if _, dup := m.jobs[j.ID]; dup {
			return fmt.Errorf("%w: duplicate job id %s", entities.ErrInvalidArgument, j.ID)
		}
	}
	now := time.Now().UTC()
	for _, j := range jobs {
		j := j
		j.State = entities.JobPending
		if j.RunAt.IsZero() {
			j.RunAt = now
		}
		j.CreatedAt, j.UpdatedAt = now, now
		m.jobs[j.ID] = &j
		m.order = append(m.order, j.ID)
	}
	return nil
}

// ClaimJob picks the runnable job with the earliest run time.
func (m *Memory) ClaimJob(_ context.Context, now time.Time) (*entities.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *entities.Job
	for _, id := range m.order {
		j := m.jobs[id]
		if j.State != entities.JobPending && j.State != entities.JobRetry {
			continue
		}
		if j.RunAt.After(now) {
			continue
		}
		if best == nil || j.RunAt.Before(best.RunAt) {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}

	best.State = entities.JobStarted
	best.Attempts++
	best.UpdatedAt = time.Now().UTC()
	out := *best
	return &out, nil
}

// UpdateJobInfo records progress of a running job.
func (m *Memory) UpdateJobInfo(_ context.Context, id string, info json.RawMessage) error {
	return m.update(id, func(j *entities.Job) {
		j.Info = slices.Clone(info)
	})
}

// CompleteJob marks a job SUCCESS with its result.
func (m *Memory) CompleteJob(_ context.Context, id string, info json.RawMessage) error {
	return m.update(id, func(j *entities.Job) {
		j.State = entities.JobSuccess
		j.Info = slices.Clone(info)
		j.Error = ""
	})
}

// RetryJob schedules another attempt.
func (m *Memory) RetryJob(_ context.Context, id, errMsg string, runAt time.Time) error {
	return m.update(id, func(j *entities.Job) {
		j.State = entities.JobRetry
		j.Error = errMsg
		j.RunAt = runAt
	})
}

// FailJob marks a job FAILURE.
func (m *Memory) FailJob(_ context.Context, id, errMsg string) error {
	return m.update(id, func(j *entities.Job) {
		j.State = entities.JobFailure
		j.Error = errMsg
	})
}

// GetJob returns a copy of a job.
func (m *Memory) GetJob(_ context.Context, id string) (*entities.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, entities.ErrJobNotFound
	}
	out := *j
	return &out, nil
}

// ListGroupJobs returns the jobs of a group in creation order.
func (m *Memory) ListGroupJobs(_ context.Context, groupID string) ([]entities.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []entities.Job
	for _, id := range m.order {
		if j := m.jobs[id]; j.GroupID == groupID {
			out = append(out, *j)
		}
	}
	if len(out) == 0 {
		return nil, entities.ErrJobNotFound
	}
	return out, nil
}

func (m *Memory) update(id string, fn func(j *entities.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return entities.ErrJobNotFound
	}
	fn(j)
	j.UpdatedAt = time.Now().UTC()
	return nil
}
