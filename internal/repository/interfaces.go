// Package repository contains the interfaces of the service's outbound adapters:
// the job store it persists to, and the GitHub, Jira and repo-tools data it reads and writes.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Jawayria/openedx-webhooks/internal/entities"
)

// LifecycleInterface describes storage startup/shutdown hooks.
type LifecycleInterface interface {
	OnStart(_ context.Context) error
	OnStop(_ context.Context) error
	// Ping checks the backend is reachable, for health checks.
	Ping(ctx context.Context) error
}

// LockerInterface serializes work on one key across workers.
type LockerInterface interface {
	// Lock blocks until key is free or ctx ends. The returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// JobInterface exposes job queue persistence.
type JobInterface interface {
	CreateJobs(ctx context.Context, jobs ...entities.Job) error
	// ClaimJob marks the oldest runnable job STARTED and returns it; nil when there is none.
	ClaimJob(ctx context.Context, now time.Time) (*entities.Job, error)
	UpdateJobInfo(ctx context.Context, id string, info json.RawMessage) error
	CompleteJob(ctx context.Context, id string, info json.RawMessage) error
	RetryJob(ctx context.Context, id, errMsg string, runAt time.Time) error
	FailJob(ctx context.Context, id, errMsg string) error
	GetJob(ctx context.Context, id string) (*entities.Job, error)
	ListGroupJobs(ctx context.Context, groupID string) ([]entities.Job, error)
}

// GitHubInterface exposes the GitHub operations of the tracker.
type GitHubInterface interface {
	BotLogin(ctx context.Context) (string, error)
	GetPullRequest(ctx context.Context, repo string, number int) (*entities.PullRequest, error)
	ListOpenPullRequests(ctx context.Context, repo string, page int) ([]entities.PullRequest, int, error)
	ListComments(ctx context.Context, repo string, number int) ([]entities.Comment, error)
	CreateComment(ctx context.Context, repo string, number int, body string) error
	EditComment(ctx context.Context, repo string, commentID int64, body string) error
	ReplaceLabels(ctx context.Context, repo string, number int, labels []string) error
	ListLabels(ctx context.Context, repo string) ([]entities.Label, error)
	CreateLabel(ctx context.Context, repo string, label entities.Label) error
	EditLabel(ctx context.Context, repo, name string, label entities.Label) error
	DeleteLabel(ctx context.Context, repo, name string) error
	UserName(ctx context.Context, login string) (string, error)
	ListOrgRepos(ctx context.Context, org string) ([]string, error)
}

// JiraInterface exposes the Jira operations of the tracker.
type JiraInterface interface {
	GetIssue(ctx context.Context, key string) (*entities.JiraIssue, error)
	CreateIssue(ctx context.Context, fields map[string]any) (string, error)
	UpdateIssue(ctx context.Context, key string, fields map[string]any) error
	DeleteIssue(ctx context.Context, key string) error
	Transitions(ctx context.Context, key string) ([]entities.JiraTransition, error)
	DoTransition(ctx context.Context, key, transitionID string) error
	FieldIDs(ctx context.Context) (map[string]string, error)
	SearchIssues(ctx context.Context, jql string) ([]entities.JiraIssue, error)
}

// DirectoryInterface exposes the repo-tools data files.
type DirectoryInterface interface {
	People(ctx context.Context) (map[string]entities.Person, error)
	Orgs(ctx context.Context) (map[string]entities.Org, error)
	Labels(ctx context.Context) ([]entities.LabelSpec, error)
}
