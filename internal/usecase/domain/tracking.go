package domain

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Jawayria/openedx-webhooks/internal/botcomment"
	"github.com/Jawayria/openedx-webhooks/internal/entities"
)

var issueLink = regexp.MustCompile(`/browse/([A-Z][A-Z0-9]*-\d+)\)`)

// managedGitHubLabels are the pull request labels owned by the bot. Any other
// label on a pull request is left alone.
var managedGitHubLabels = func() entities.Set[string] {
	s := entities.NewSet(
		entities.GitHubLabelOpenSource,
		entities.GitHubLabelCoreCommitter,
		entities.GitHubLabelBlended,
	)
	for _, status := range entities.KnownStatuses {
		s.Add(strings.ToLower(status))
	}
	return s
}()

type botComments struct {
	kinds    entities.Set[entities.BotComment]
	firstID  int64
	issueKey string
}

// scanBotComments collects the bot comment kinds on a pull request and the Jira
// issue they link to.
func (u *Usecase) scanBotComments(ctx context.Context, pr entities.PullRequest) (botComments, error) {
	found := botComments{kinds: entities.Set[entities.BotComment]{}}

	bot, err := u.github.BotLogin(ctx)
	if err != nil {
		return found, fmt.Errorf("bot login: %w", err)
	}
	comments, err := u.github.ListComments(ctx, pr.Repo, pr.Number)
	if err != nil {
		return found, fmt.Errorf("list comments: %w", err)
	}
	for _, c := range comments {
		if c.Author != bot {
			continue
		}
		kinds := botcomment.Kinds(c.Body)
		if len(kinds) == 0 {
			continue
		}
		if found.firstID == 0 {
			found.firstID = c.ID
		}
		found.kinds.Add(kinds.Sorted()...)
		if found.issueKey == "" {
			if m := issueLink.FindStringSubmatch(c.Body); m != nil {
				found.issueKey = m[1]
			}
		}
	}
	return found, nil
}

// currentState reads what the bot already did on GitHub and in Jira.
func (u *Usecase) currentState(ctx context.Context, pr entities.PullRequest) (*entities.TrackingState, error) {
	current := entities.NewTrackingState()
	current.GitHubLabels.Add(pr.Labels...)

	found, err := u.scanBotComments(ctx, pr)
	if err != nil {
		return nil, err
	}
	current.BotComments = found.kinds
	current.BotCommentID = found.firstID
	current.JiraID = found.issueKey

	if current.JiraID == "" {
		return current, nil
	}

	issue, err := u.jira.GetIssue(ctx, current.JiraID)
	if err != nil {
		if errors.Is(err, entities.ErrIssueNotFound) {
			u.log.Infow("tracking issue was deleted", "key", current.JiraID, "repo", pr.Repo, "number", pr.Number)
			return current, nil
		}
		return nil, fmt.Errorf("get issue %s: %w", current.JiraID, err)
	}
	current.JiraActualID = issue.Key
	current.JiraProject = issue.Project
	current.JiraTitle = issue.Summary
	current.JiraDescription = issue.Description
	current.JiraStatus = issue.Status
	current.JiraLabels.Add(issue.Labels...)

	ids, err := u.jira.FieldIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("jira fields: %w", err)
	}
	if epic := issue.FieldString(ids[fieldEpicLink]); epic != "" {
		current.JiraEpic = &entities.JiraIssue{Key: epic}
	}
	return current, nil
}

// desiredState computes how the pull request should be tracked. A nil state
// means the bot leaves the pull request alone. force skips the bot, internal
// and contractor checks.
func (u *Usecase) desiredState(ctx context.Context, pr entities.PullRequest, a author, force bool) (*entities.TrackingState, error) {
	if !force {
		switch {
		case a.Bot:
			u.log.Infow("bot pull request ignored", "user", pr.Author, "repo", pr.Repo, "number", pr.Number)
			return nil, nil
		case a.Internal:
			u.log.Infow("internal pull request ignored", "user", pr.Author, "repo", pr.Repo, "number", pr.Number)
			return nil, nil
		}
	}

	desired := entities.NewTrackingState()
	if !force && a.Contractor {
		desired.BotComments.Add(entities.BotCommentContractor)
		return desired, nil
	}

	desired.JiraStatus = entities.StatusNeedsTriage
	desired.JiraTitle = pr.Title
	desired.JiraDescription = pr.Body

	comment := entities.BotCommentWelcome
	if n, ok := blendedProjectID(pr.Title); ok {
		comment = entities.BotCommentBlended
		desired.JiraProject = entities.ProjectBlended
		desired.GitHubLabels.Add(entities.GitHubLabelBlended)
		desired.JiraLabels.Add(entities.JiraLabelBlended)

		epic, err := u.findBlendedEpic(ctx, n)
		if err != nil {
			return nil, err
		}
		if epic != nil {
			desired.JiraEpic = epic
			id, err := u.fieldID(ctx, fieldPlatformMapArea)
			if err != nil {
				return nil, err
			}
			desired.JiraExtraFields = append(desired.JiraExtraFields, entities.ExtraField{
				Name:  fieldPlatformMapArea,
				Value: epic.Fields[id],
			})
		}
	} else {
		desired.JiraProject = entities.ProjectOSPR
		desired.GitHubLabels.Add(entities.GitHubLabelOpenSource)
		switch {
		case a.Committer:
			comment = entities.BotCommentCoreCommitter
			desired.JiraLabels.Add(entities.JiraLabelCoreCommitter)
			desired.JiraStatus = entities.StatusCommunityReview
			desired.GitHubLabels.Add(entities.GitHubLabelCoreCommitter)
		case !a.Agreement:
			desired.BotComments.Add(entities.BotCommentNeedCLA)
			desired.JiraStatus = entities.StatusCommunityManagerReview
		}
	}

	if a.Agreement {
		desired.BotComments.Add(entities.BotCommentOKToTest)
	}
	desired.BotComments.Add(comment)

	if pr.IsClosed() {
		desired.JiraStatus = closedStatus(pr)
	}
	return desired, nil
}

func closedStatus(pr entities.PullRequest) string {
	if pr.Merged {
		return entities.StatusMerged
	}
	return entities.StatusRejected
}
