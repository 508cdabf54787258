package handlers_fiber

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/Jawayria/openedx-webhooks/internal/entities"
	"github.com/Jawayria/openedx-webhooks/internal/mapper"
	"github.com/Jawayria/openedx-webhooks/internal/usecase/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/google/go-github/v63/github"
)

// Events whose payload must parse; anything else is acknowledged unread.
var parsedEvents = entities.NewSet(
	"ping",
	"pull_request",
	"issue_comment",
	"pull_request_review",
	"pull_request_review_comment",
)

// PostHookReceiver handles POST /github/hook-receiver.
func (h *Handler) PostHookReceiver(c *fiber.Ctx) error {
	mediaType, _, err := mime.ParseMediaType(c.Get(fiber.HeaderContentType))
	if err != nil || (mediaType != fiber.MIMEApplicationJSON && mediaType != fiber.MIMEApplicationForm) {
		return h.writeError(c, fmt.Errorf("%w: unsupported content type %q", entities.ErrInvalidArgument, c.Get(fiber.HeaderContentType)))
	}

	signature := c.Get(github.SHA256SignatureHeader)
	if signature == "" {
		signature = c.Get(github.SHA1SignatureHeader)
	}
	payload, err := github.ValidatePayloadFromBody(mediaType, bytes.NewReader(c.Body()), signature, h.secret)
	if err != nil {
		h.log.Warnw("webhook rejected", "delivery", c.Get(github.DeliveryIDHeader), "error", err)
		return h.writeError(c, fmt.Errorf("%w: %v", entities.ErrBadSignature, err))
	}

	eventType := c.Get(github.EventTypeHeader)
	if !parsedEvents.Has(eventType) {
		return c.Status(http.StatusAccepted).SendString("Thank you")
	}
	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		return h.writeError(c, fmt.Errorf("%w: %s payload: %v", entities.ErrInvalidArgument, eventType, err))
	}

	h.log.Debugw("webhook", "event", eventType, "delivery", c.Get(github.DeliveryIDHeader))

	switch e := event.(type) {
	case *github.PingEvent:
		return c.SendString("PONG")
	case *github.PullRequestEvent:
		return h.pullRequestEvent(c, e)
	case *github.IssueCommentEvent:
		if e.GetIssue().IsPullRequest() {
			h.recordActivity(c, entities.Activity{
				Repo:        e.GetRepo().GetFullName(),
				Number:      e.GetIssue().GetNumber(),
				HTMLURL:     e.GetIssue().GetHTMLURL(),
				Sender:      e.GetSender().GetLogin(),
				SenderType:  e.GetSender().GetType(),
				Description: "issue_comment " + e.GetAction(),
				At:          eventTime(e.GetComment().GetUpdatedAt()),
			})
		}
	case *github.PullRequestReviewEvent:
		h.recordActivity(c, entities.Activity{
			Repo:        e.GetRepo().GetFullName(),
			Number:      e.GetPullRequest().GetNumber(),
			HTMLURL:     e.GetPullRequest().GetHTMLURL(),
			Sender:      e.GetSender().GetLogin(),
			SenderType:  e.GetSender().GetType(),
			Description: "pull_request_review " + e.GetAction(),
			At:          eventTime(e.GetReview().GetSubmittedAt()),
		})
	case *github.PullRequestReviewCommentEvent:
		h.recordActivity(c, entities.Activity{
			Repo:        e.GetRepo().GetFullName(),
			Number:      e.GetPullRequest().GetNumber(),
			HTMLURL:     e.GetPullRequest().GetHTMLURL(),
			Sender:      e.GetSender().GetLogin(),
			SenderType:  e.GetSender().GetType(),
			Description: "pull_request_review_comment " + e.GetAction(),
			At:          eventTime(e.GetComment().GetUpdatedAt()),
		})
	}

	return c.Status(http.StatusAccepted).SendString("Thank you")
}

func (h *Handler) pullRequestEvent(c *fiber.Ctx, e *github.PullRequestEvent) error {
	action := e.GetAction()
	pr := mapper.FromGitHubPullRequest(e.GetPullRequest())
	if pr.Repo == "" {
		pr.Repo = e.GetRepo().GetFullName()
	}

	h.recordActivity(c, entities.Activity{
		Repo:        pr.Repo,
		Number:      pr.Number,
		HTMLURL:     pr.HTMLURL,
		Sender:      e.GetSender().GetLogin(),
		SenderType:  e.GetSender().GetType(),
		Description: "pull_request " + action,
		At:          eventTime(e.GetPullRequest().GetUpdatedAt()),
	})

	if !domain.HandledActions.Has(action) {
		return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Nothing for me to do for action " + action})
	}

	job, err := h.uc.EnqueuePullRequestChanged(c.UserContext(), pr)
	if err != nil {
		return h.writeError(c, err)
	}
	h.log.Infow("pull request queued", "repo", pr.Repo, "number", pr.Number, "action", action, "job", job.ID)
	return c.Status(http.StatusAccepted).JSON(QueuedResponse{
		Message:   fmt.Sprintf("queued %s#%d (%s)", pr.Repo, pr.Number, action),
		StatusURL: statusURL(c, job.ID),
	})
}

// recordActivity enqueues an activity job. Failures are logged only: the
// webhook delivery still succeeds.
func (h *Handler) recordActivity(c *fiber.Ctx, act entities.Activity) {
	if act.Repo == "" || act.HTMLURL == "" {
		return
	}
	if _, err := h.uc.EnqueueActivity(c.UserContext(), act); err != nil {
		h.log.Warnw("enqueue activity failed", "repo", act.Repo, "number", act.Number, "error", err)
	}
}

func eventTime(ts github.Timestamp) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts.UTC()
}
