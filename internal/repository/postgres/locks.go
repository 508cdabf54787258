package postgres

import (
	"context"
	"fmt"
	"sync"
)

// Session level advisory locks keyed by a hash of the text key. They are held by
// one pooled connection, so every process sharing the database sees them.
const (
	lockQuery   = `SELECT pg_advisory_lock(hashtext($1))`
	unlockQuery = `SELECT pg_advisory_unlock(hashtext($1))`
)

// Lock implements repository.LockerInterface with a Postgres advisory lock.
func (p *Postgres) Lock(ctx context.Context, key string) (func(), error) {
	conn, err := p.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock %s: acquire connection: %w", key, err)
	}
	if _, err := conn.Exec(ctx, lockQuery, key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unlockCtx, cancel := p.withTimeout(context.WithoutCancel(ctx))
			defer cancel()
			if _, err := conn.Exec(unlockCtx, unlockQuery, key); err != nil {
				// The lock stays on the session, so the connection is closed instead of reused.
				p.log.Warnw("advisory unlock failed, closing connection", "key", key, "error", err)
				_ = conn.Conn().Close(unlockCtx)
			}
			conn.Release()
		})
	}, nil
}
