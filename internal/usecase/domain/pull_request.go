package domain

import (
	"context"
	"fmt"

	"github.com/Jawayria/openedx-webhooks/internal/entities"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// HandledActions are the pull_request webhook actions that trigger tracking.
var HandledActions = entities.NewSet(
	"opened",
	"edited",
	"closed",
	"synchronize",
	"ready_for_review",
	"converted_to_draft",
	"reopened",
)

// PullRequestChanged reconciles one pull request with its tracking issue.
func (u *Usecase) PullRequestChanged(ctx context.Context, pr entities.PullRequest, force bool) (entities.TrackingResult, error) {
	return u.track(ctx, pr, nil, force)
}

// track reconciles pr while holding its lock. a is the author classification
// when the caller already has it.
func (u *Usecase) track(ctx context.Context, pr entities.PullRequest, a *author, force bool) (entities.TrackingResult, error) {
	ctx, span := u.tracer.Start(ctx, "PullRequestChanged")
	defer span.End()
	span.SetAttributes(
		attribute.String("pr.repo", pr.Repo),
		attribute.Int("pr.number", pr.Number),
		attribute.Bool("force", force),
	)

	res, err := u.lockedPullRequestChanged(ctx, pr, a, force)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return entities.TrackingResult{}, err
	}
	span.SetAttributes(attribute.String("jira.key", res.JiraKey), attribute.Bool("changed", res.Changed))
	return res, nil
}

// lockedPullRequestChanged holds the pull request lock while state is read and fixed.
func (u *Usecase) lockedPullRequestChanged(ctx context.Context, pr entities.PullRequest, a *author, force bool) (entities.TrackingResult, error) {
	if _, _, ok := entities.SplitRepo(pr.Repo); !ok || pr.Number <= 0 {
		return entities.TrackingResult{}, fmt.Errorf("%w: pull request %q #%d", entities.ErrInvalidArgument, pr.Repo, pr.Number)
	}
	if u.locks != nil {
		unlock, err := u.locks.Lock(ctx, prKey(pr.Repo, pr.Number))
		if err != nil {
			return entities.TrackingResult{}, err
		}
		defer unlock()
	}

	if a == nil {
		classified, err := u.classifyAuthor(ctx, pr)
		if err != nil {
			return entities.TrackingResult{}, err
		}
		a = &classified
	}
	return u.pullRequestChanged(ctx, pr, *a, force)
}

func (u *Usecase) pullRequestChanged(ctx context.Context, pr entities.PullRequest, a author, force bool) (entities.TrackingResult, error) {
	desired, err := u.desiredState(ctx, pr, a, force)
	if err != nil {
		return entities.TrackingResult{}, err
	}
	if desired == nil {
		return entities.TrackingResult{}, nil
	}

	if err := u.SynchronizeLabels(ctx, pr.Repo); err != nil {
		return entities.TrackingResult{}, err
	}

	current, err := u.currentState(ctx, pr)
	if err != nil {
		return entities.TrackingResult{}, err
	}

	// A contractor pull request that was opted in to tracking stays tracked.
	if !force && a.Contractor && current.JiraID != "" {
		if desired, err = u.desiredState(ctx, pr, a, true); err != nil {
			return entities.TrackingResult{}, err
		}
	}

	f := &fixer{u: u, pr: pr, author: a, current: current, desired: desired}
	if err := f.fix(ctx); err != nil {
		return entities.TrackingResult{}, err
	}

	res := f.result()
	u.log.Infow("pull request reconciled",
		"repo", pr.Repo, "number", pr.Number, "jira_key", res.JiraKey, "changed", res.Changed)
	return res, nil
}

func prKey(repo string, number int) string {
	return fmt.Sprintf("%s#%d", repo, number)
}

// ProcessPullRequest fetches a pull request and tracks it regardless of who wrote it.
func (u *Usecase) ProcessPullRequest(ctx context.Context, repo string, number int) (entities.TrackingResult, error) {
	if _, _, ok := entities.SplitRepo(repo); !ok || number <= 0 {
		return entities.TrackingResult{}, fmt.Errorf("%w: repo and number are required", entities.ErrInvalidArgument)
	}
	pr, err := u.github.GetPullRequest(ctx, repo, number)
	if err != nil {
		return entities.TrackingResult{}, fmt.Errorf("get pull request %s#%d: %w", repo, number, err)
	}
	return u.PullRequestChanged(ctx, *pr, true)
}
