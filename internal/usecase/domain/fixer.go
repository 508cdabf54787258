package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/Jawayria/openedx-webhooks/internal/botcomment"
	"github.com/Jawayria/openedx-webhooks/internal/entities"
)

// fixer applies the changes needed to move a pull request from its current
// tracking state to the desired one.
type fixer struct {
	u       *Usecase
	pr      entities.PullRequest
	author  author
	current *entities.TrackingState
	desired *entities.TrackingState

	deletedKey string
	// readStatus is the Jira status before any transition. Its label is the
	// bot's even when the status is a custom workflow state.
	readStatus string
	// rewrite is set when the issue mentioned by the bot comment was replaced,
	// so every comment section must be written again with the new key.
	rewrite bool
	changed bool
}

func (f *fixer) result() entities.TrackingResult {
	return entities.TrackingResult{JiraKey: f.current.JiraID, Changed: f.changed}
}

func (f *fixer) fix(ctx context.Context) error {
	f.readStatus = f.current.JiraStatus
	if err := f.fixProject(ctx); err != nil {
		return err
	}

	// Jira owns the workflow once an issue exists, unless the pull request is closed.
	if f.current.JiraID != "" && !f.pr.IsClosed() {
		f.desired.JiraStatus = f.current.JiraStatus
	}

	steps := []func(context.Context) error{
		f.fixIssue,
		f.fixStatus,
		f.fixFields,
		f.fixLabels,
		f.fixComments,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// fixProject handles a mentioned issue that was deleted or is in the wrong project.
func (f *fixer) fixProject(ctx context.Context) error {
	cur := f.current
	if cur.JiraID == "" {
		return nil
	}
	if cur.JiraActualID == "" {
		f.forgetIssue()
		f.rewrite = true
		return nil
	}
	if f.desired.JiraProject == "" || projectOf(cur.JiraID) == f.desired.JiraProject {
		return nil
	}
	if projectOf(cur.JiraActualID) == f.desired.JiraProject {
		// Somebody already moved it.
		cur.JiraID = cur.JiraActualID
		return nil
	}

	f.u.log.Infow("deleting issue in the wrong project",
		"key", cur.JiraActualID, "project", f.desired.JiraProject, "repo", f.pr.Repo, "number", f.pr.Number)
	if err := f.u.jira.DeleteIssue(ctx, cur.JiraActualID); err != nil {
		return fmt.Errorf("delete issue %s: %w", cur.JiraActualID, err)
	}
	f.deletedKey = cur.JiraID
	f.forgetIssue()
	f.rewrite = true
	f.changed = true
	return nil
}

func (f *fixer) forgetIssue() {
	cur := f.current
	cur.JiraID = ""
	cur.JiraActualID = ""
	cur.JiraProject = ""
	cur.JiraTitle = ""
	cur.JiraDescription = ""
	cur.JiraStatus = ""
	cur.JiraLabels = entities.Set[string]{}
	cur.JiraEpic = nil
}

func (f *fixer) fixIssue(ctx context.Context) error {
	if f.desired.JiraProject == "" || f.current.JiraID != "" {
		return nil
	}
	key, err := f.u.createIssue(ctx, f.pr, f.author, f.desired)
	if err != nil {
		return err
	}

	cur := f.current
	cur.JiraID = key
	cur.JiraActualID = key
	cur.JiraProject = f.desired.JiraProject
	cur.JiraTitle = f.desired.JiraTitle
	cur.JiraDescription = f.desired.JiraDescription
	cur.JiraLabels = f.desired.JiraLabels.Clone()
	cur.JiraEpic = f.desired.JiraEpic
	cur.JiraStatus = entities.StatusNeedsTriage
	if issue, err := f.u.jira.GetIssue(ctx, key); err == nil {
		cur.JiraStatus = issue.Status
	} else {
		f.u.log.Warnw("failed to read new issue", "key", key, "error", err)
	}
	f.changed = true
	return nil
}

func (f *fixer) fixStatus(ctx context.Context) error {
	want := f.desired.JiraStatus
	if f.current.JiraID == "" || want == "" || want == f.current.JiraStatus {
		return nil
	}
	ok, err := f.u.TransitionIssue(ctx, f.current.JiraID, want)
	if err != nil {
		return err
	}
	if ok {
		f.current.JiraStatus = want
		f.changed = true
	}
	return nil
}

func (f *fixer) fixFields(ctx context.Context) error {
	cur, want := f.current, f.desired
	if cur.JiraID == "" || want.JiraProject == "" {
		return nil
	}

	fields := map[string]any{}
	if want.JiraTitle != cur.JiraTitle {
		fields["summary"] = want.JiraTitle
	}
	if want.JiraDescription != cur.JiraDescription {
		fields["description"] = want.JiraDescription
	}
	// Labels added in Jira by people stay.
	if len(want.JiraLabels.Difference(cur.JiraLabels)) > 0 {
		labels := cur.JiraLabels.Clone()
		labels.Add(want.JiraLabels.Sorted()...)
		fields["labels"] = labels.Sorted()
	}
	if epic := want.EpicKey(); epic != "" && epic != cur.EpicKey() {
		id, err := f.u.fieldID(ctx, fieldEpicLink)
		if err != nil {
			return err
		}
		fields[id] = epic
	}
	if len(fields) == 0 {
		return nil
	}

	for _, extra := range want.JiraExtraFields {
		id, err := f.u.fieldID(ctx, extra.Name)
		if err != nil {
			return err
		}
		fields[id] = extra.Value
	}
	if err := f.u.jira.UpdateIssue(ctx, cur.JiraID, fields); err != nil {
		return fmt.Errorf("update issue %s: %w", cur.JiraID, err)
	}
	cur.JiraTitle = want.JiraTitle
	cur.JiraDescription = want.JiraDescription
	cur.JiraLabels.Add(want.JiraLabels.Sorted()...)
	cur.JiraEpic = want.JiraEpic
	f.changed = true
	return nil
}

func (f *fixer) fixLabels(ctx context.Context) error {
	want := f.desired.GitHubLabels.Clone()
	if f.desired.JiraStatus != "" {
		want.Add(strings.ToLower(f.desired.JiraStatus))
	}
	own := managedGitHubLabels.Clone()
	if f.readStatus != "" {
		own.Add(strings.ToLower(f.readStatus))
	}
	for l := range f.current.GitHubLabels {
		if !own.Has(l) {
			want.Add(l)
		}
	}
	if want.Equal(f.current.GitHubLabels) {
		return nil
	}

	f.u.log.Infow("updating pull request labels", "repo", f.pr.Repo, "number", f.pr.Number, "labels", want.Sorted())
	if err := f.u.github.ReplaceLabels(ctx, f.pr.Repo, f.pr.Number, want.Sorted()); err != nil {
		return fmt.Errorf("replace labels: %w", err)
	}
	f.current.GitHubLabels = want
	f.changed = true
	return nil
}

func (f *fixer) fixComments(ctx context.Context) error {
	needed := f.desired.BotComments.Difference(f.current.BotComments)
	if f.rewrite {
		needed = f.desired.BotComments.Clone()
	}
	if len(needed) == 0 {
		return nil
	}

	r := f.u.renderer
	data := botcomment.Data{
		User:               f.pr.Author,
		Repo:               f.pr.Repo,
		Number:             f.pr.Number,
		IssueKey:           f.current.JiraID,
		DeletedIssueKey:    f.deletedKey,
		HasSignedAgreement: f.author.Agreement,
	}

	var sections []string
	add := func(kind entities.BotComment, render func(botcomment.Data) (string, error)) error {
		if !needed.Has(kind) {
			return nil
		}
		body, err := render(data)
		if err != nil {
			return err
		}
		sections = append(sections, body)
		return nil
	}
	if err := add(entities.BotCommentWelcome, r.Welcome); err != nil {
		return err
	}
	if err := add(entities.BotCommentContractor, r.Contractor); err != nil {
		return err
	}
	if err := add(entities.BotCommentCoreCommitter, r.CoreCommitter); err != nil {
		return err
	}
	if needed.Has(entities.BotCommentBlended) {
		data.ProjectName, data.ProjectPage = f.u.blendedCommentData(ctx, f.current.JiraEpic)
		if err := add(entities.BotCommentBlended, r.Blended); err != nil {
			return err
		}
	}

	body := botcomment.Join(sections...)
	if needed.Has(entities.BotCommentOKToTest) {
		body = botcomment.WithOKToTest(body)
	}
	if body == "" {
		return nil
	}

	if f.current.BotCommentID != 0 {
		if err := f.u.github.EditComment(ctx, f.pr.Repo, f.current.BotCommentID, body); err != nil {
			return fmt.Errorf("edit comment: %w", err)
		}
	} else {
		if err := f.u.github.CreateComment(ctx, f.pr.Repo, f.pr.Number, body); err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
	}
	f.current.BotComments.Add(needed.Sorted()...)
	f.changed = true
	return nil
}
