// Package handlers_fiber wires HTTP delivery components.
package handlers_fiber

import (
	"github.com/Jawayria/openedx-webhooks/internal/usecase"

	"go.uber.org/zap"
)

// Handler serves the GitHub webhook receiver and the operator endpoints.
type Handler struct {
	log *zap.SugaredLogger
	uc  usecase.InterfaceUsecase
	// secret is the webhook HMAC secret; empty skips signature checks.
	secret []byte
}

// NewHandler constructs an HTTP server with service dependencies.
func NewHandler(log *zap.SugaredLogger, usecase usecase.InterfaceUsecase, webhookSecret string) *Handler {
	return &Handler{
		log:    log.Named("http"),
		uc:     usecase,
		secret: []byte(webhookSecret),
	}
}
