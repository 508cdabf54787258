package handlers_fiber

import (
	"fmt"
	"strings"

	"github.com/Jawayria/openedx-webhooks/internal/entities"

	"github.com/gofiber/fiber/v2"
)

const groupPrefix = "group:"

// GetStatus handles GET /status/:id for jobs and GET /status/group:ID for groups.
func (h *Handler) GetStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return h.writeError(c, fmt.Errorf("%w: id is required", entities.ErrInvalidArgument))
	}

	if groupID, ok := strings.CutPrefix(id, groupPrefix); ok {
		group, err := h.uc.GroupStatus(c.UserContext(), groupID)
		if err != nil {
			return h.writeError(c, err)
		}
		return c.JSON(groupStatusResponse(*group))
	}

	job, err := h.uc.JobStatus(c.UserContext(), id)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(jobStatusResponse(*job))
}
