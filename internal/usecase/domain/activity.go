package domain

import (
	"context"
	"fmt"

	"github.com/Jawayria/openedx-webhooks/internal/entities"
)

const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// RecordActivity stamps the latest GitHub activity on the OSPR issues tracking
// a pull request. It returns how many issues were updated.
func (u *Usecase) RecordActivity(ctx context.Context, act entities.Activity) (int, error) {
	if act.HTMLURL == "" {
		return 0, fmt.Errorf("%w: pull request url is required", entities.ErrInvalidArgument)
	}
	if act.SenderType == entities.AuthorTypeBot {
		return 0, nil
	}

	people, err := u.directory.People(ctx)
	if err != nil {
		return 0, fmt.Errorf("read people: %w", err)
	}
	byEdX := false
	if p, ok := people[act.Sender]; ok {
		if p.IsRobot {
			return 0, nil
		}
		a, err := u.classifyAuthor(ctx, entities.PullRequest{Repo: act.Repo, Author: act.Sender, CreatedAt: act.At})
		if err != nil {
			return 0, err
		}
		byEdX = a.Internal
	}

	ids, err := u.jira.FieldIDs(ctx)
	if err != nil {
		return 0, err
	}
	names := []string{fieldLastUpdatedAt, fieldLastUpdatedBy, fieldLatestAction, fieldLatestActionEdX}
	for _, name := range names {
		if _, ok := ids[name]; !ok {
			return 0, fmt.Errorf("%w: %q", entities.ErrUnknownField, name)
		}
	}

	jql := fmt.Sprintf(`project=%s AND url=%q`, entities.ProjectOSPR, act.HTMLURL)
	issues, err := u.jira.SearchIssues(ctx, jql)
	if err != nil {
		return 0, fmt.Errorf("search issues for %s: %w", act.HTMLURL, err)
	}

	edx := "No"
	if byEdX {
		edx = "Yes"
	}
	fields := map[string]any{
		ids[fieldLastUpdatedAt]:   act.At.Format(jiraTimeLayout),
		ids[fieldLastUpdatedBy]:   act.Sender,
		ids[fieldLatestAction]:    act.Description,
		ids[fieldLatestActionEdX]: map[string]string{"value": edx},
	}
	for _, issue := range issues {
		if err := u.jira.UpdateIssue(ctx, issue.Key, fields); err != nil {
			return 0, fmt.Errorf("update activity on %s: %w", issue.Key, err)
		}
	}
	u.log.Debugw("github activity recorded", "url", act.HTMLURL, "issues", len(issues), "sender", act.Sender)
	return len(issues), nil
}
