package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Jawayria/openedx-webhooks/internal/entities"
)

// Jira custom field names.
const (
	fieldPRNumber         = "PR Number"
	fieldRepo             = "Repo"
	fieldContributorName  = "Contributor Name"
	fieldCustomer         = "Customer"
	fieldEpicLink         = "Epic Link"
	fieldPlatformMapArea  = "Platform Map Area (Levels 1 & 2)"
	fieldBlendedProjectID = "Blended Project ID"
	fieldBlendedStatus    = "Blended Project Status Page"
	fieldLastUpdatedAt    = "GitHub PR Last Updated At"
	fieldLastUpdatedBy    = "GitHub PR Last Updated By"
	fieldLatestAction     = "GitHub Latest Action"
	fieldLatestActionEdX  = "GitHub Latest Action By edX"
)

// fieldID resolves a custom field name to its id.
func (u *Usecase) fieldID(ctx context.Context, name string) (string, error) {
	ids, err := u.jira.FieldIDs(ctx)
	if err != nil {
		return "", err
	}
	id, ok := ids[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", entities.ErrUnknownField, name)
	}
	return id, nil
}

// TransitionIssue moves an issue to status. It returns false when the issue no
// longer exists, and entities.ErrInvalidTransition when the workflow has no
// direct path to status.
func (u *Usecase) TransitionIssue(ctx context.Context, key, status string) (bool, error) {
	transitions, err := u.jira.Transitions(ctx, key)
	if err != nil {
		if errors.Is(err, entities.ErrIssueNotFound) {
			u.log.Warnw("issue to transition is gone", "key", key, "status", status)
			return false, nil
		}
		return false, err
	}

	for _, t := range transitions {
		if t.To == status {
			if err := u.jira.DoTransition(ctx, key, t.ID); err != nil {
				return false, fmt.Errorf("transition %s to %q: %w", key, status, err)
			}
			u.log.Infow("jira issue transitioned", "key", key, "status", status)
			return true, nil
		}
	}

	issue, err := u.jira.GetIssue(ctx, key)
	if err != nil {
		if errors.Is(err, entities.ErrIssueNotFound) {
			return false, nil
		}
		return false, err
	}
	if issue.Status == status {
		return true, nil
	}

	valid := make([]string, 0, len(transitions))
	for _, t := range transitions {
		valid = append(valid, t.To)
	}
	return false, fmt.Errorf(
		"%w: Issue %s cannot be transitioned directly from status %s to status %s. Valid status transitions are: %s",
		entities.ErrInvalidTransition, key, issue.Status, status, strings.Join(valid, ", "),
	)
}

// findBlendedEpic returns the epic of Blended project n, or nil unless exactly
// one epic matches.
func (u *Usecase) findBlendedEpic(ctx context.Context, n int) (*entities.JiraIssue, error) {
	jql := fmt.Sprintf(
		`%[1]q ~ "BD-00%[2]d" or %[1]q ~ "BD-0%[2]d" or %[1]q ~ "BD-%[2]d"`,
		fieldBlendedProjectID, n,
	)
	issues, err := u.jira.SearchIssues(ctx, jql)
	if err != nil {
		return nil, fmt.Errorf("search blended epic: %w", err)
	}
	switch len(issues) {
	case 1:
		return &issues[0], nil
	case 0:
		u.log.Infow("no blended epic found", "project", n)
	default:
		u.log.Infow("several blended epics found", "project", n, "count", len(issues))
	}
	return nil, nil
}

// contributorName prefers people.yaml, then the GitHub profile, then the login.
func (u *Usecase) contributorName(ctx context.Context, pr entities.PullRequest, a author) string {
	if a.Person != nil && a.Person.Name != "" {
		return a.Person.Name
	}
	name, err := u.github.UserName(ctx, pr.Author)
	if err != nil {
		u.log.Warnw("failed to read github user name", "login", pr.Author, "error", err)
	}
	if name == "" {
		return pr.Author
	}
	return name
}

// createIssue opens the tracking issue for a pull request and returns its key.
func (u *Usecase) createIssue(ctx context.Context, pr entities.PullRequest, a author, desired *entities.TrackingState) (string, error) {
	ids, err := u.jira.FieldIDs(ctx)
	if err != nil {
		return "", err
	}
	field := func(name string) (string, error) {
		id, ok := ids[name]
		if !ok {
			return "", fmt.Errorf("%w: %q", entities.ErrUnknownField, name)
		}
		return id, nil
	}

	fields := map[string]any{
		"project":     map[string]string{"key": desired.JiraProject},
		"issuetype":   map[string]string{"name": entities.IssueTypePullRequestReview},
		"summary":     desired.JiraTitle,
		"description": desired.JiraDescription,
		"labels":      desired.JiraLabels.Sorted(),
	}
	if u.settings.URLField != "" {
		fields[u.settings.URLField] = pr.HTMLURL
	}

	values := []entities.ExtraField{
		{Name: fieldPRNumber, Value: pr.Number},
		{Name: fieldRepo, Value: pr.Repo},
		{Name: fieldContributorName, Value: u.contributorName(ctx, pr, a)},
	}
	if inst := a.institution(); inst != "" {
		values = append(values, entities.ExtraField{Name: fieldCustomer, Value: []string{inst}})
	}
	values = append(values, desired.JiraExtraFields...)
	if epic := desired.EpicKey(); epic != "" {
		values = append(values, entities.ExtraField{Name: fieldEpicLink, Value: epic})
	}
	for _, v := range values {
		id, err := field(v.Name)
		if err != nil {
			return "", err
		}
		fields[id] = v.Value
	}

	u.log.Infow("creating jira issue", "repo", pr.Repo, "number", pr.Number, "project", desired.JiraProject)
	key, err := u.jira.CreateIssue(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("create issue for %s#%d: %w", pr.Repo, pr.Number, err)
	}
	return key, nil
}

// blendedCommentData reads the project name and status page from the epic.
func (u *Usecase) blendedCommentData(ctx context.Context, epic *entities.JiraIssue) (name, page string) {
	if epic == nil {
		return "", ""
	}
	ids, err := u.jira.FieldIDs(ctx)
	if err != nil {
		u.log.Warnw("failed to read jira fields", "error", err)
		return "", ""
	}
	return epic.FieldString(ids[fieldBlendedProjectID]), epic.FieldString(ids[fieldBlendedStatus])
}

func projectOf(key string) string {
	p, _, _ := strings.Cut(key, "-")
	return p
}
