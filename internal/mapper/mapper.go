// Package mapper converts between GitHub API models, domain models and transport DTOs.
package mapper

import (
	"github.com/Jawayria/openedx-webhooks/internal/entities"

	"github.com/google/go-github/v63/github"
)

// FromGitHubPullRequest builds an entities.PullRequest from a GitHub API model.
func FromGitHubPullRequest(src *github.PullRequest) entities.PullRequest {
	labels := make([]string, 0, len(src.Labels))
	for _, l := range src.Labels {
		labels = append(labels, l.GetName())
	}

	return entities.PullRequest{
		Repo:       src.GetBase().GetRepo().GetFullName(),
		Number:     src.GetNumber(),
		Title:      src.GetTitle(),
		Body:       src.GetBody(),
		Author:     src.GetUser().GetLogin(),
		AuthorType: src.GetUser().GetType(),
		State:      entities.PullRequestState(src.GetState()),
		// List endpoints omit "merged" but carry merged_at.
		Merged:    src.GetMerged() || src.MergedAt != nil,
		Labels:    labels,
		HTMLURL:   src.GetHTMLURL(),
		CreatedAt: src.GetCreatedAt().Time,
		UpdatedAt: src.GetUpdatedAt().Time,
	}
}

// FromGitHubComment maps an issue comment.
func FromGitHubComment(src *github.IssueComment) entities.Comment {
	return entities.Comment{
		ID:     src.GetID(),
		Author: src.GetUser().GetLogin(),
		Body:   src.GetBody(),
	}
}

// FromGitHubLabel maps a repository label.
func FromGitHubLabel(src *github.Label) entities.Label {
	return entities.Label{
		Name:        src.GetName(),
		Color:       src.GetColor(),
		Description: src.GetDescription(),
	}
}

// ToGitHubLabel maps a label to its API model. Description is only sent when set.
func ToGitHubLabel(src entities.Label) *github.Label {
	l := &github.Label{
		Name:  github.String(src.Name),
		Color: github.String(src.Color),
	}
	if src.Description != "" {
		l.Description = github.String(src.Description)
	}
	return l
}
