package entities

import (
	"encoding/json"
	"time"
)

// JobState mirrors the task states reported by the status endpoints.
type JobState string

const (
	JobPending JobState = "PENDING"
	JobStarted JobState = "STARTED"
	JobRetry   JobState = "RETRY"
	JobSuccess JobState = "SUCCESS"
	JobFailure JobState = "FAILURE"
)

// JobKind names the work a job performs.
type JobKind string

const (
	JobPullRequestChanged JobKind = "pull_request_changed"
	JobProcessPR          JobKind = "process_pr"
	JobRescanRepository   JobKind = "rescan_repository"
	JobGitHubActivity     JobKind = "github_activity"
	JobSyncLabels         JobKind = "sync_labels"
)

// Job is a unit of queued background work.
type Job struct {
	ID        string
	GroupID   string
	Kind      JobKind
	Payload   json.RawMessage
	State     JobState
	Info      json.RawMessage
	Error     string
	Attempts  int
	RunAt     time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Finished reports whether the job reached a terminal state.
func (j Job) Finished() bool {
	return j.State == JobSuccess || j.State == JobFailure
}

// JobGroup is the aggregated state of jobs enqueued together.
type JobGroup struct {
	ID     string
	Jobs   []Job
	Counts map[JobState]int
}

// Ready reports whether every job of the group finished.
func (g JobGroup) Ready() bool {
	for _, j := range g.Jobs {
		if !j.Finished() {
			return false
		}
	}
	return true
}

// PullRequestPayload is the payload of pull_request_changed jobs.
type PullRequestPayload struct {
	PullRequest PullRequest `json:"pull_request"`
}

// RepoPayload is the payload of jobs scoped to one repository or PR.
type RepoPayload struct {
	Repo   string `json:"repo"`
	Number int    `json:"number,omitempty"`
}
