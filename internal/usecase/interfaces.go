package usecase

import (
	"context"

	"github.com/Jawayria/openedx-webhooks/internal/entities"
)

// TrackerUsecaseInterface reconciles pull requests with their Jira issues.
type TrackerUsecaseInterface interface {
	PullRequestChanged(ctx context.Context, pr entities.PullRequest, force bool) (entities.TrackingResult, error)
	ProcessPullRequest(ctx context.Context, repo string, number int) (entities.TrackingResult, error)
	TransitionIssue(ctx context.Context, key, status string) (bool, error)
	RecordActivity(ctx context.Context, act entities.Activity) (int, error)
}

// RepositoryUsecaseInterface abstracts repository-wide operations.
type RepositoryUsecaseInterface interface {
	SynchronizeLabels(ctx context.Context, repo string) error
	RescanRepository(ctx context.Context, repo string, progress func(context.Context, entities.RescanProgress)) (entities.RescanResult, error)
	RescanOrganization(ctx context.Context, org string) ([]entities.RescanResult, error)
}

// JobUsecaseInterface abstracts the background job queue.
type JobUsecaseInterface interface {
	EnqueuePullRequestChanged(ctx context.Context, pr entities.PullRequest) (*entities.Job, error)
	EnqueueProcessPR(ctx context.Context, repo string, number int) (*entities.Job, error)
	EnqueueRescan(ctx context.Context, repo string) (*entities.Job, error)
	EnqueueOrganizationRescan(ctx context.Context, org string) (*entities.JobGroup, error)
	EnqueueSyncLabels(ctx context.Context, repo string) (*entities.Job, error)
	EnqueueActivity(ctx context.Context, act entities.Activity) (*entities.Job, error)
	JobStatus(ctx context.Context, id string) (*entities.Job, error)
	GroupStatus(ctx context.Context, id string) (*entities.JobGroup, error)
	HandleJob(ctx context.Context, job entities.Job) (any, error)
}
