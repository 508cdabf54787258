package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Jawayria/openedx-webhooks/internal/entities"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	jobColumns = `id, group_id, kind, payload, state, info, error, attempts, run_at, created_at, updated_at`

	insertJobQuery = `
INSERT INTO jobs(id, group_id, kind, payload, state, run_at)
VALUES ($1, $2, $3, $4, 'PENDING', $5)`
	claimJobQuery = `
UPDATE jobs SET state = 'STARTED', attempts = attempts + 1, updated_at = NOW()
WHERE id = (
    SELECT id FROM jobs
    WHERE state IN ('PENDING', 'RETRY') AND run_at <= $1
    ORDER BY run_at, created_at
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns
	updateJobInfoQuery = `UPDATE jobs SET info = $2, updated_at = NOW() WHERE id = $1`
	completeJobQuery   = `UPDATE jobs SET state = 'SUCCESS', info = $2, error = '', updated_at = NOW() WHERE id = $1`
	retryJobQuery      = `UPDATE jobs SET state = 'RETRY', error = $2, run_at = $3, updated_at = NOW() WHERE id = $1`
	failJobQuery       = `UPDATE jobs SET state = 'FAILURE', error = $2, updated_at = NOW() WHERE id = $1`
	selectJobQuery     = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	selectGroupQuery   = `SELECT ` + jobColumns + ` FROM jobs WHERE group_id = $1 ORDER BY created_at, id`
)

// CreateJobs inserts jobs atomically.
func (p *Postgres) CreateJobs(ctx context.Context, jobs ...entities.Job) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	for _, j := range jobs {
		payload := j.Payload
		if len(payload) == 0 {
			payload = json.RawMessage(`{}`)
		}
		runAt := j.RunAt
		if runAt.IsZero() {
			runAt = now
		}
		if _, err := tx.Exec(ctx, insertJobQuery, j.ID, j.GroupID, string(j.Kind), payload, runAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("%w: duplicate job id %s", entities.ErrInvalidArgument, j.ID)
			}
			p.log.Errorw("failed to insert job", "error", err, "id", j.ID)
			return fmt.Errorf("insert job: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ClaimJob locks the oldest runnable job, skipping rows other workers hold.
func (p *Postgres) ClaimJob(ctx context.Context, now time.Time) (*entities.Job, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	job, err := scanJob(p.db.QueryRow(ctx, claimJobQuery, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// UpdateJobInfo records progress of a running job.
func (p *Postgres) UpdateJobInfo(ctx context.Context, id string, info json.RawMessage) error {
	return p.exec(ctx, updateJobInfoQuery, id, info)
}

// CompleteJob marks a job SUCCESS with its result.
func (p *Postgres) CompleteJob(ctx context.Context, id string, info json.RawMessage) error {
	return p.exec(ctx, completeJobQuery, id, info)
}

// RetryJob schedules another attempt.
func (p *Postgres) RetryJob(ctx context.Context, id, errMsg string, runAt time.Time) error {
	return p.exec(ctx, retryJobQuery, id, errMsg, runAt)
}

// FailJob marks a job FAILURE.
func (p *Postgres) FailJob(ctx context.Context, id, errMsg string) error {
	return p.exec(ctx, failJobQuery, id, errMsg)
}

// GetJob returns one job.
func (p *Postgres) GetJob(ctx context.Context, id string) (*entities.Job, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	job, err := scanJob(p.db.QueryRow(ctx, selectJobQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entities.ErrJobNotFound
		}
		return nil, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

// ListGroupJobs returns the jobs of a group in creation order.
func (p *Postgres) ListGroupJobs(ctx context.Context, groupID string) ([]entities.Job, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	rows, err := p.db.Query(ctx, selectGroupQuery, groupID)
	if err != nil {
		return nil, fmt.Errorf("select group: %w", err)
	}
	defer rows.Close()

	var out []entities.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, entities.ErrJobNotFound
	}
	return out, nil
}

func (p *Postgres) exec(ctx context.Context, query string, args ...any) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		p.log.Errorw("job update failed", "error", err, "id", args[0])
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrJobNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*entities.Job, error) {
	var (
		j     entities.Job
		kind  string
		state string
	)
	if err := row.Scan(
		&j.ID, &j.GroupID, &kind, &j.Payload, &state, &j.Info,
		&j.Error, &j.Attempts, &j.RunAt, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	j.Kind = entities.JobKind(kind)
	j.State = entities.JobState(state)
	return &j, nil
}
