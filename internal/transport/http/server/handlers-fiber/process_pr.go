package handlers_fiber

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/Jawayria/openedx-webhooks/internal/entities"

	"github.com/gofiber/fiber/v2"
)

var processPRForm = template.Must(template.New("process_pr").Parse(`<!doctype html>
<title>Process pull request</title>
<form method="post" action="/github/process_pr">
<label>Repository <input name="repo" value="{{ .Repo }}"></label>
<label>Number <input name="number" value="{{ .Number }}"></label>
<label>Token <input name="token" type="password"></label>
<button type="submit">Process</button>
</form>
`))

// GetProcessPR handles GET /github/process_pr, the target of the contractor
// comment link. It only renders a form that posts back with a token.
func (h *Handler) GetProcessPR(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return processPRForm.Execute(c, struct {
		Repo   string
		Number string
	}{Repo: c.Query("repo"), Number: c.Query("number")})
}

// PostProcessPR handles POST /github/process_pr: forced tracking of one PR.
func (h *Handler) PostProcessPR(c *fiber.Ctx) error {
	repo := strings.TrimSpace(c.FormValue("repo"))
	numStr := strings.TrimSpace(c.FormValue("number"))
	if repo == "" || numStr == "" {
		return h.writeError(c, fmt.Errorf("%w: repo and number are required", entities.ErrInvalidArgument))
	}
	number, err := strconv.Atoi(numStr)
	if err != nil || number <= 0 {
		return h.writeError(c, fmt.Errorf("%w: number must be a positive integer, got %q", entities.ErrInvalidArgument, numStr))
	}

	if formBool(c, "inline") {
		result, err := h.uc.ProcessPullRequest(c.UserContext(), repo, number)
		if err != nil {
			return h.writeError(c, err)
		}
		return c.JSON(result)
	}

	job, err := h.uc.EnqueueProcessPR(c.UserContext(), repo, number)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusAccepted).JSON(QueuedResponse{
		Message:   fmt.Sprintf("queued processing of %s#%d", repo, number),
		StatusURL: statusURL(c, job.ID),
	})
}
