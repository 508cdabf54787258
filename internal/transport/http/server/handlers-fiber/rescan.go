package handlers_fiber

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Jawayria/openedx-webhooks/internal/entities"
	"github.com/Jawayria/openedx-webhooks/internal/usecase/domain"

	"github.com/gofiber/fiber/v2"
)

// PostRescan handles POST /github/rescan.
//
// repo defaults to the configured repository; "all:ORG" rescans every
// repository of ORG as one job group. With inline set a single repository is
// rescanned in the request and its result returned directly. Organizations are
// never rescanned inline over HTTP.
func (h *Handler) PostRescan(c *fiber.Ctx) error {
	repo := strings.TrimSpace(c.FormValue("repo"))
	inline := formBool(c, "inline")

	if repo == "all" {
		return h.writeError(c, fmt.Errorf("%w: use all:ORG to rescan an organization", entities.ErrInvalidArgument))
	}

	if org, ok := domain.ParseOrgTarget(repo); ok {
		if inline {
			return h.writeError(c, fmt.Errorf("%w: organizations cannot be rescanned inline", entities.ErrInvalidArgument))
		}
		group, err := h.uc.EnqueueOrganizationRescan(c.UserContext(), org)
		if err != nil {
			return h.writeError(c, err)
		}
		h.log.Infow("organization rescan queued", "org", org, "group", group.ID, "jobs", len(group.Jobs))
		return c.Status(http.StatusAccepted).JSON(QueuedResponse{
			Message:   fmt.Sprintf("queued rescan of %d repositories in %s", len(group.Jobs), org),
			StatusURL: statusURL(c, "group:"+group.ID),
		})
	}

	if inline {
		result, err := h.uc.RescanRepository(c.UserContext(), repo, nil)
		if err != nil {
			return h.writeError(c, err)
		}
		return c.JSON(result)
	}

	job, err := h.uc.EnqueueRescan(c.UserContext(), repo)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusAccepted).JSON(QueuedResponse{
		Message:   "queued rescan of " + displayRepo(repo),
		StatusURL: statusURL(c, job.ID),
	})
}

func displayRepo(repo string) string {
	if repo == "" {
		return "the default repository"
	}
	return repo
}
