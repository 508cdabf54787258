package handlers_fiber

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterHandlers mounts the routes. admin guards the operator endpoints.
func RegisterHandlers(router fiber.Router, h *Handler, admin fiber.Handler) {
	gh := router.Group("/github")
	gh.Post("/hook-receiver", h.PostHookReceiver)
	gh.Post("/rescan", admin, h.PostRescan)
	gh.Get("/process_pr", h.GetProcessPR)
	gh.Post("/process_pr", admin, h.PostProcessPR)

	router.Get("/status/:id", h.GetStatus)
}
