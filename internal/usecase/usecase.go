// Package usecase exposes the application services to the transport and worker layers.
package usecase

import (
	"context"
	"time"

	"github.com/Jawayria/openedx-webhooks/internal/botcomment"
	"github.com/Jawayria/openedx-webhooks/internal/usecase/domain"

	"go.uber.org/zap"
)

// InterfaceUsecase aggregates all usecase interfaces.
type InterfaceUsecase interface {
	TrackerUsecaseInterface
	RepositoryUsecaseInterface
	JobUsecaseInterface
}

var _ InterfaceUsecase = (*domain.Usecase)(nil)

// New constructs a new usecase layer with its dependencies.
func New(
	log *zap.SugaredLogger,
	ctx context.Context,
	ports domain.Ports,
	renderer *botcomment.Renderer,
	settings domain.Settings,
	timeout time.Duration,
) InterfaceUsecase {
	return domain.New(log, ctx, ports, renderer, settings, timeout)
}
