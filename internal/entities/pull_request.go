// Package entities contains core business entities.
package entities

import (
	"strings"
	"time"
)

// PullRequestState enumerates GitHub PR states.
type PullRequestState string

const (
	// StateOpen marks PR as open.
	StateOpen PullRequestState = "open"
	// StateClosed marks PR as closed, merged or not.
	StateClosed PullRequestState = "closed"
)

// AuthorTypeBot is the GitHub user type of app and bot accounts.
const AuthorTypeBot = "Bot"

// PullRequest is the part of a GitHub pull request the tracker cares about.
type PullRequest struct {
	Repo       string           `json:"repo"`
	Number     int              `json:"number"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	Author     string           `json:"author"`
	AuthorType string           `json:"author_type"`
	State      PullRequestState `json:"state"`
	Merged     bool             `json:"merged"`
	Labels     []string         `json:"labels"`
	HTMLURL    string           `json:"html_url"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Owner returns the organization or user owning the base repository.
func (pr PullRequest) Owner() string {
	owner, _, _ := strings.Cut(pr.Repo, "/")
	return owner
}

// IsClosed reports whether the PR is closed or merged.
func (pr PullRequest) IsClosed() bool {
	return pr.State == StateClosed
}

// Comment is an issue comment on a pull request.
type Comment struct {
	ID     int64
	Author string
	Body   string
}

// Label is a repository label.
type Label struct {
	Name        string
	Color       string
	Description string
}

// LabelSpec is a label entry of labels.yaml.
type LabelSpec struct {
	Label
	Delete bool
}

// SplitRepo splits "owner/name" into its parts.
func SplitRepo(fullName string) (owner, name string, ok bool) {
	owner, name, ok = strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return owner, name, true
}
