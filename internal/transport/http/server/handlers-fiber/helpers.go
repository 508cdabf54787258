package handlers_fiber

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Jawayria/openedx-webhooks/internal/entities"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	code := CodeInternal
	msg := "internal error"

	switch {
	case errors.Is(err, entities.ErrInvalidArgument):
		status = http.StatusBadRequest
		code = CodeInvalidArgument
		msg = err.Error()
	case errors.Is(err, entities.ErrJobNotFound), errors.Is(err, entities.ErrNotFound), errors.Is(err, entities.ErrIssueNotFound):
		status = http.StatusNotFound
		code = CodeNotFound
		msg = err.Error()
	case errors.Is(err, entities.ErrBadSignature):
		status = http.StatusForbidden
		code = CodeBadSignature
		msg = "signature does not match"
	case errors.Is(err, entities.ErrInvalidTransition):
		status = http.StatusConflict
		code = CodeInvalidTransition
		msg = err.Error()
	default:
		h.log.Errorw("request failed", "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(errorResponse(code, msg))
}

func errorResponse(code ErrorCode, msg string) ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = msg
	return resp
}

// statusURL is the absolute url of the status endpoint for a job or group id.
func statusURL(c *fiber.Ctx, id string) string {
	return c.BaseURL() + "/status/" + id
}

// formBool reads a checkbox-style flag from the query string or form body.
func formBool(c *fiber.Ctx, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.FormValue(key)))
	if err != nil {
		return c.FormValue(key) == "on"
	}
	return v
}
