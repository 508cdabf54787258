// Package repository provides factory for repositories.
package repository

import (
	"context"
	"fmt"

	"github.com/Jawayria/openedx-webhooks/config"
	"github.com/Jawayria/openedx-webhooks/internal/repository/memory"
	"github.com/Jawayria/openedx-webhooks/internal/repository/postgres"

	"go.uber.org/zap"
)

// Repository aggregates all persistence interfaces.
type Repository interface {
	LifecycleInterface
	JobInterface
	LockerInterface
}

// New constructs repository backend by name.
func New(ctx context.Context, name string, log *zap.SugaredLogger, cfg *config.Config) (Repository, error) {
	switch name {
	case "postgres":
		return postgres.New(ctx, log, cfg), nil
	case "memory":
		return memory.New(log), nil
	default:
		return nil, fmt.Errorf("unknown repo backend: %s", name)
	}
}
