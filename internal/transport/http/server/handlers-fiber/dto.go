package handlers_fiber

import (
	"encoding/json"
	"time"

	"github.com/Jawayria/openedx-webhooks/internal/entities"
)

// ErrorCode is the machine readable part of an error response.
type ErrorCode string

const (
	CodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeBadSignature      ErrorCode = "BAD_SIGNATURE"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeInternal          ErrorCode = "INTERNAL"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error struct {
		Code    ErrorCode `json:"code"`
		Message string    `json:"message"`
	} `json:"error"`
}

// QueuedResponse acknowledges enqueued work.
type QueuedResponse struct {
	Message   string `json:"message"`
	StatusURL string `json:"status_url"`
}

// JobStatusResponse is the state of one job.
type JobStatusResponse struct {
	ID        string            `json:"id"`
	Kind      entities.JobKind  `json:"kind"`
	Status    entities.JobState `json:"status"`
	Info      json.RawMessage   `json:"info,omitempty"`
	Error     string            `json:"error,omitempty"`
	Attempts  int               `json:"attempts"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// GroupStatusResponse is the aggregated state of a job group.
type GroupStatusResponse struct {
	ID     string                    `json:"id"`
	Ready  bool                      `json:"ready"`
	Counts map[entities.JobState]int `json:"counts"`
	Jobs   []JobStatusResponse       `json:"jobs"`
}

func jobStatusResponse(j entities.Job) JobStatusResponse {
	return JobStatusResponse{
		ID:        j.ID,
		Kind:      j.Kind,
		Status:    j.State,
		Info:      j.Info,
		Error:     j.Error,
		Attempts:  j.Attempts,
		UpdatedAt: j.UpdatedAt,
	}
}

func groupStatusResponse(g entities.JobGroup) GroupStatusResponse {
	resp := GroupStatusResponse{
		ID:     g.ID,
		Ready:  g.Ready(),
		Counts: g.Counts,
		Jobs:   make([]JobStatusResponse, 0, len(g.Jobs)),
	}
	for _, j := range g.Jobs {
		resp.Jobs = append(resp.Jobs, jobStatusResponse(j))
	}
	return resp
}
