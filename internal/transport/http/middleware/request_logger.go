// Package middleware contains HTTP middlewares for delivery.
package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// deliveryHeader identifies a GitHub webhook delivery.
const deliveryHeader = "X-GitHub-Delivery"

// RequestLogger writes one access log line per request. Server errors are
// logged at error level, client errors at warn, health checks at debug.
func RequestLogger(log *zap.SugaredLogger) fiber.Handler {
	log = log.Named("access")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Let the app error handler set the final status before logging it.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}

		status := c.Response().StatusCode()
		reqID, _ := c.Locals("requestid").(string)
		if reqID == "" {
			reqID = c.GetRespHeader(fiber.HeaderXRequestID)
		}
		kv := []any{
			"method", c.Method(),
			"path", c.OriginalURL(),
			"status", status,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"request_id", reqID,
		}
		if d := c.Get(deliveryHeader); d != "" {
			kv = append(kv, "delivery", d)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			log.Errorw("http", kv...)
		case status >= fiber.StatusBadRequest:
			log.Warnw("http", kv...)
		case c.Path() == "/healthz":
			log.Debugw("http", kv...)
		default:
			log.Infow("http", kv...)
		}
		return err
	}
}
