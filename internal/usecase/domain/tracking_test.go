package domain

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Jawayria/openedx-webhooks/internal/botcomment"
	"github.com/Jawayria/openedx-webhooks/internal/entities"

	"github.com/stretchr/testify/require"
)

func labelSet(pr entities.PullRequest) entities.Set[string] {
	return entities.NewSet(pr.Labels...)
}

func TestInternalPullRequestIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.dir.people["insider"] = entities.Person{Login: "insider", Internal: true}

	res := env.track(t, testPR(1, "insider"))

	require.Equal(t, entities.TrackingResult{}, res)
	require.Zero(t, env.gh.writeCount())
	require.Empty(t, env.jira.created)
}

func TestInternalByInstitution(t *testing.T) {
	env := newTestEnv(t)
	env.dir.orgs["edX"] = entities.Org{Name: "edX", Internal: true}
	env.dir.people["staff"] = entities.Person{Login: "staff", Institution: "edX", Agreement: "institution"}

	res := env.track(t, testPR(1, "staff"))

	require.Empty(t, res.JiraKey)
	require.Zero(t, env.gh.writeCount())
}

func TestBotPullRequestIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	pr := testPR(1, "dependabot[bot]")
	pr.AuthorType = entities.AuthorTypeBot

	res := env.track(t, pr)

	require.False(t, res.Changed)
	require.Zero(t, env.gh.writeCount())
	require.Empty(t, env.jira.created)
}

func TestExternalPullRequestWithoutAgreement(t *testing.T) {
	env := newTestEnv(t)
	env.gh.names["newcomer"] = "New Comer"

	res := env.track(t, testPR(1234, "newcomer"))

	require.Equal(t, entities.TrackingResult{JiraKey: "OSPR-1", Changed: true}, res)

	issue := env.jira.issue("OSPR-1")
	require.NotNil(t, issue)
	require.Equal(t, entities.StatusCommunityManagerReview, issue.Status)
	require.Equal(t, "Fix the frobulator", issue.Summary)

	require.Len(t, env.jira.created, 1)
	created := env.jira.created[0]
	require.Equal(t, "https://github.com/openedx/edx-platform/pull/1234", created[testURLField])
	require.Equal(t, 1234, created[testFieldIDs[fieldPRNumber]])
	require.Equal(t, testRepo, created[testFieldIDs[fieldRepo]])
	require.Equal(t, "New Comer", created[testFieldIDs[fieldContributorName]])
	require.NotContains(t, created, testFieldIDs[fieldCustomer])
	require.Equal(t, map[string]string{"name": entities.IssueTypePullRequestReview}, created["issuetype"])

	pr := env.gh.pr(testRepo, 1234)
	require.Equal(t, entities.NewSet("community manager review", "open-source-contribution"), labelSet(pr))

	comments := env.gh.commentsOn(testRepo, 1234)
	require.Len(t, comments, 1)
	body := comments[0].Body
	require.Contains(t, body, "[OSPR-1](https://openedx.atlassian.net/browse/OSPR-1)")
	require.True(t, botcomment.IsKind(entities.BotCommentWelcome, body))
	require.True(t, botcomment.IsKind(entities.BotCommentNeedCLA, body))
	require.False(t, botcomment.IsKind(entities.BotCommentOKToTest, body))
}

func TestExternalPullRequestWithAgreement(t *testing.T) {
	env := newTestEnv(t)
	env.dir.people["signer"] = entities.Person{
		Login:       "signer",
		Name:        "Sig Ner",
		Institution: "Acme",
		Agreement:   "institution",
	}

	res := env.track(t, testPR(7, "signer"))

	require.Equal(t, "OSPR-1", res.JiraKey)
	require.Equal(t, entities.StatusNeedsTriage, env.jira.issue("OSPR-1").Status)
	require.Empty(t, env.jira.transitions)

	created := env.jira.created[0]
	require.Equal(t, "Sig Ner", created[testFieldIDs[fieldContributorName]])
	require.Equal(t, []string{"Acme"}, created[testFieldIDs[fieldCustomer]])

	pr := env.gh.pr(testRepo, 7)
	require.Equal(t, entities.NewSet("needs triage", "open-source-contribution"), labelSet(pr))

	comments := env.gh.commentsOn(testRepo, 7)
	require.Len(t, comments, 1)
	require.True(t, strings.HasSuffix(comments[0].Body, "\n"+botcomment.OKToTestMarker))
	require.False(t, botcomment.IsKind(entities.BotCommentNeedCLA, comments[0].Body))
}

func TestTrackingIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	first := env.track(t, testPR(1, "newcomer"))
	require.True(t, first.Changed)
	writes := env.gh.writeCount()

	second := env.retrack(t, testRepo, 1)

	require.Equal(t, entities.TrackingResult{JiraKey: "OSPR-1", Changed: false}, second)
	require.Equal(t, writes, env.gh.writeCount())
	require.Len(t, env.jira.created, 1)
	require.Len(t, env.gh.commentsOn(testRepo, 1), 1)
}

func TestJiraStatusIsKeptWhileOpen(t *testing.T) {
	env := newTestEnv(t)
	env.track(t, testPR(1, "newcomer"))
	env.jira.setStatus("OSPR-1", "Waiting on Author")

	res := env.retrack(t, testRepo, 1)

	require.True(t, res.Changed)
	require.Equal(t, "Waiting on Author", env.jira.issue("OSPR-1").Status)
	require.Equal(t,
		entities.NewSet("waiting on author", "open-source-contribution"),
		labelSet(env.gh.pr(testRepo, 1)),
	)
}

func TestCoreCommitterPullRequest(t *testing.T) {
	env := newTestEnv(t)
	env.dir.people["committer"] = entities.Person{
		Login:     "committer",
		Agreement: "individual",
		Committer: &entities.CommitterScope{Repos: []string{testRepo}},
	}

	res := env.track(t, testPR(3, "committer"))

	require.Equal(t, "OSPR-1", res.JiraKey)
	issue := env.jira.issue("OSPR-1")
	require.Equal(t, entities.StatusCommunityReview, issue.Status)
	require.Equal(t, []string{"core-committer"}, issue.Labels)

	require.Equal(t,
		entities.NewSet("open edx community review", "open-source-contribution", "core committer"),
		labelSet(env.gh.pr(testRepo, 3)),
	)

	body := env.gh.commentsOn(testRepo, 3)[0].Body
	require.Equal(t,
		entities.NewSet(entities.BotCommentCoreCommitter, entities.BotCommentOKToTest),
		botcomment.Kinds(body),
	)
	require.Contains(t, body, "[OSPR-1](https://openedx.atlassian.net/browse/OSPR-1)")
}

func TestCommitterScopeIsPerRepository(t *testing.T) {
	env := newTestEnv(t)
	env.dir.people["committer"] = entities.Person{
		Login:     "committer",
		Agreement: "individual",
		Committer: &entities.CommitterScope{Repos: []string{"openedx/other"}},
	}

	env.track(t, testPR(3, "committer"))

	require.Equal(t, entities.StatusNeedsTriage, env.jira.issue("OSPR-1").Status)
	require.NotContains(t, labelSet(env.gh.pr(testRepo, 3)), "core committer")
}

func TestBlendedPullRequest(t *testing.T) {
	env := newTestEnv(t)
	epic := entities.JiraIssue{
		Key: "BLENDED-7",
		Fields: map[string]json.RawMessage{
			testFieldIDs[fieldPlatformMapArea]:  json.RawMessage(`{"value":"Core"}`),
			testFieldIDs[fieldBlendedProjectID]: json.RawMessage(`"BD-34 Cool Project"`),
			testFieldIDs[fieldBlendedStatus]:    json.RawMessage(`"https://wiki.example.com/bd34"`),
		},
	}
	var queries []string
	env.jira.search = func(jql string) []entities.JiraIssue {
		queries = append(queries, jql)
		return []entities.JiraIssue{epic}
	}

	pr := testPR(5, "blender")
	pr.Title = "[bd-34] Add the cool thing"
	res := env.track(t, pr)

	require.Equal(t, "BLENDED-1", res.JiraKey)
	require.Equal(t,
		[]string{`"Blended Project ID" ~ "BD-0034" or "Blended Project ID" ~ "BD-034" or "Blended Project ID" ~ "BD-34"`},
		queries,
	)

	created := env.jira.created[0]
	require.Equal(t, map[string]string{"key": entities.ProjectBlended}, created["project"])
	require.Equal(t, "BLENDED-7", created[testFieldIDs[fieldEpicLink]])
	require.Equal(t, json.RawMessage(`{"value":"Core"}`), created[testFieldIDs[fieldPlatformMapArea]])
	require.Equal(t, []string{"blended"}, env.jira.issue("BLENDED-1").Labels)

	require.Equal(t, entities.NewSet("blended", "needs triage"), labelSet(env.gh.pr(testRepo, 5)))

	body := env.gh.commentsOn(testRepo, 5)[0].Body
	require.True(t, botcomment.IsKind(entities.BotCommentBlended, body))
	require.False(t, botcomment.IsKind(entities.BotCommentWelcome, body))
	require.Contains(t, body, "[BD-34 Cool Project](https://wiki.example.com/bd34)")

	again := env.retrack(t, testRepo, 5)
	require.False(t, again.Changed)
}

func TestContractorPullRequest(t *testing.T) {
	env := newTestEnv(t)
	env.dir.orgs["Contract Co"] = entities.Org{Name: "Contract Co", Contractor: true}
	env.dir.people["hired"] = entities.Person{Login: "hired", Institution: "Contract Co", Agreement: "institution"}

	res := env.track(t, testPR(42, "hired"))

	require.Equal(t, entities.TrackingResult{Changed: true}, res)
	require.Empty(t, env.jira.created)

	comments := env.gh.commentsOn(testRepo, 42)
	require.Len(t, comments, 1)
	require.True(t, botcomment.IsKind(entities.BotCommentContractor, comments[0].Body))
	require.Contains(t, comments[0].Body,
		"https://webhooks.example.com/github/process_pr?repo=openedx%2Fedx-platform&number=42")
	require.Empty(t, env.gh.pr(testRepo, 42).Labels)

	again := env.retrack(t, testRepo, 42)
	require.False(t, again.Changed)
	require.Len(t, env.gh.commentsOn(testRepo, 42), 1)
}

func TestProcessPullRequestTracksContractor(t *testing.T) {
	env := newTestEnv(t)
	env.dir.orgs["Contract Co"] = entities.Org{Name: "Contract Co", Contractor: true}
	env.dir.people["hired"] = entities.Person{Login: "hired", Institution: "Contract Co", Agreement: "institution"}
	env.track(t, testPR(42, "hired"))
	contractorComment := env.gh.commentsOn(testRepo, 42)[0].ID

	res, err := env.uc.ProcessPullRequest(context.Background(), testRepo, 42)
	require.NoError(t, err)
	require.Equal(t, "OSPR-1", res.JiraKey)

	comments := env.gh.commentsOn(testRepo, 42)
	require.Len(t, comments, 1)
	require.Equal(t, contractorComment, comments[0].ID)
	require.True(t, botcomment.IsKind(entities.BotCommentWelcome, comments[0].Body))

	// Later webhooks keep the pull request tracked.
	again := env.retrack(t, testRepo, 42)
	require.Equal(t, entities.TrackingResult{JiraKey: "OSPR-1", Changed: false}, again)
}

func TestProcessPullRequestValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.uc.ProcessPullRequest(context.Background(), "", 1)
	require.ErrorIs(t, err, entities.ErrInvalidArgument)

	_, err = env.uc.ProcessPullRequest(context.Background(), testRepo, 99)
	require.ErrorIs(t, err, entities.ErrNotFound)
}

func TestCustomStatusLabelIsReplaced(t *testing.T) {
	env := newTestEnv(t)
	env.track(t, testPR(1, "newcomer"))
	env.jira.setStatus("OSPR-1", "Needs More Info")

	env.retrack(t, testRepo, 1)
	require.Equal(t,
		entities.NewSet("needs more info", "open-source-contribution"),
		labelSet(env.gh.pr(testRepo, 1)),
	)

	pr := env.gh.pr(testRepo, 1)
	pr.State = entities.StateClosed
	pr.Merged = true
	env.gh.addPR(pr)

	env.retrack(t, testRepo, 1)

	require.Equal(t, entities.StatusMerged, env.jira.issue("OSPR-1").Status)
	require.Equal(t,
		entities.NewSet("merged", "open-source-contribution"),
		labelSet(env.gh.pr(testRepo, 1)),
	)
}

func TestClosedPullRequestTransitions(t *testing.T) {
	cases := []struct {
		name   string
		merged bool
		status string
	}{
		{name: "merged", merged: true, status: entities.StatusMerged},
		{name: "rejected", merged: false, status: entities.StatusRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.dir.people["signer"] = entities.Person{Login: "signer", Agreement: "individual"}
			env.track(t, testPR(8, "signer"))

			pr := env.gh.pr(testRepo, 8)
			pr.State = entities.StateClosed
			pr.Merged = tc.merged
			env.gh.addPR(pr)

			res := env.retrack(t, testRepo, 8)

			require.True(t, res.Changed)
			require.Equal(t, tc.status, env.jira.issue("OSPR-1").Status)
			require.Len(t, env.jira.transitions, 1)
			require.Equal(t,
				entities.NewSet(strings.ToLower(tc.status), "open-source-contribution"),
				labelSet(env.gh.pr(testRepo, 8)),
			)
			require.Len(t, env.gh.commentsOn(testRepo, 8), 1)
		})
	}
}

func TestClosedPullRequestAlreadyInStatus(t *testing.T) {
	env := newTestEnv(t)
	env.dir.people["signer"] = entities.Person{Login: "signer", Agreement: "individual"}
	env.track(t, testPR(8, "signer"))
	env.jira.setStatus("OSPR-1", entities.StatusMerged)

	pr := env.gh.pr(testRepo, 8)
	pr.State = entities.StateClosed
	pr.Merged = true
	env.gh.addPR(pr)
	env.retrack(t, testRepo, 8)

	require.Empty(t, env.jira.transitions)
	require.Equal(t, entities.StatusMerged, env.jira.issue("OSPR-1").Status)
}

func TestClosedPullRequestWithoutValidTransition(t *testing.T) {
	env := newTestEnv(t)
	env.dir.people["signer"] = entities.Person{Login: "signer", Agreement: "individual"}
	env.track(t, testPR(8, "signer"))
	env.jira.allowed["OSPR-1"] = []entities.JiraTransition{{ID: "11", Name: "Wait", To: "Waiting on Author"}}

	pr := env.gh.pr(testRepo, 8)
	pr.State = entities.StateClosed
	env.gh.addPR(pr)

	_, err := env.uc.PullRequestChanged(context.Background(), pr, false)
	require.ErrorIs(t, err, entities.ErrInvalidTransition)
	require.Empty(t, env.jira.transitions)
}

func TestDeletedIssueIsRecreated(t *testing.T) {
	env := newTestEnv(t)
	env.track(t, testPR(1, "newcomer"))
	commentID := env.gh.commentsOn(testRepo, 1)[0].ID
	env.jira.remove("OSPR-1")

	res := env.retrack(t, testRepo, 1)

	require.Equal(t, entities.TrackingResult{JiraKey: "OSPR-2", Changed: true}, res)
	comments := env.gh.commentsOn(testRepo, 1)
	require.Len(t, comments, 1)
	require.Equal(t, commentID, comments[0].ID)
	require.Contains(t, comments[0].Body, "[OSPR-2](https://openedx.atlassian.net/browse/OSPR-2)")
	require.NotContains(t, comments[0].Body, "OSPR-1")
}

func TestIssueInWrongProjectIsReplaced(t *testing.T) {
	env := newTestEnv(t)
	env.track(t, testPR(1, "newcomer"))

	pr := env.gh.pr(testRepo, 1)
	pr.Title = "[BD-5] Now part of a blended project"
	env.gh.addPR(pr)

	res := env.retrack(t, testRepo, 1)

	require.Equal(t, "BLENDED-1", res.JiraKey)
	require.Equal(t, []string{"OSPR-1"}, env.jira.deleted)
	body := env.gh.commentsOn(testRepo, 1)[0].Body
	require.True(t, botcomment.IsKind(entities.BotCommentBlended, body))
	require.Contains(t, body, "BLENDED-1")
}

func TestMovedIssueIsFollowed(t *testing.T) {
	env := newTestEnv(t)
	env.track(t, testPR(1, "newcomer"))

	// The issue got moved to BLENDED-9 by hand and the title changed to match.
	issue := env.jira.issue("OSPR-1")
	moved := *issue
	moved.Key = "BLENDED-9"
	moved.Project = entities.ProjectBlended
	moved.Labels = []string{"blended"}
	env.jira.issues["BLENDED-9"] = &moved
	env.jira.moved["OSPR-1"] = "BLENDED-9"
	delete(env.jira.issues, "OSPR-1")

	pr := env.gh.pr(testRepo, 1)
	pr.Title = "[BD-5] Part of a blended project"
	env.gh.addPR(pr)

	res := env.retrack(t, testRepo, 1)

	require.Equal(t, "BLENDED-9", res.JiraKey)
	require.Empty(t, env.jira.deleted)
	require.Len(t, env.jira.created, 1)
	require.Equal(t, "[BD-5] Part of a blended project", env.jira.issue("BLENDED-9").Summary)
}

func TestUnmanagedLabelsArePreserved(t *testing.T) {
	env := newTestEnv(t)
	pr := testPR(1, "newcomer")
	pr.Labels = []string{"needs more work", "needs triage"}

	env.track(t, pr)

	require.Equal(t,
		entities.NewSet("needs more work", "community manager review", "open-source-contribution"),
		labelSet(env.gh.pr(testRepo, 1)),
	)
}

func TestHumanJiraLabelsArePreserved(t *testing.T) {
	env := newTestEnv(t)
	env.track(t, testPR(1, "newcomer"))
	env.jira.issues["OSPR-1"].Labels = []string{"triaged"}

	env.retrack(t, testRepo, 1)

	require.Equal(t, []string{"triaged"}, env.jira.issue("OSPR-1").Labels)
}

func TestTransitionIssue(t *testing.T) {
	ctx := context.Background()

	t.Run("moves to status", func(t *testing.T) {
		env := newTestEnv(t)
		env.track(t, testPR(1, "newcomer"))

		ok, err := env.uc.TransitionIssue(ctx, "OSPR-1", "Waiting on Author")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "Waiting on Author", env.jira.issue("OSPR-1").Status)
	})

	t.Run("deleted issue", func(t *testing.T) {
		env := newTestEnv(t)
		ok, err := env.uc.TransitionIssue(ctx, "OSPR-404", entities.StatusMerged)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("already in status", func(t *testing.T) {
		env := newTestEnv(t)
		env.track(t, testPR(1, "newcomer"))
		env.jira.allowed["OSPR-1"] = nil

		ok, err := env.uc.TransitionIssue(ctx, "OSPR-1", entities.StatusCommunityManagerReview)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("no path", func(t *testing.T) {
		env := newTestEnv(t)
		env.track(t, testPR(1, "newcomer"))
		posted := len(env.jira.transitions)
		env.jira.allowed["OSPR-1"] = []entities.JiraTransition{
			{ID: "1", To: "Waiting on Author"},
			{ID: "2", To: "Rejected"},
		}

		_, err := env.uc.TransitionIssue(ctx, "OSPR-1", entities.StatusMerged)
		require.ErrorIs(t, err, entities.ErrInvalidTransition)
		require.EqualError(t, err, "invalid jira transition: Issue OSPR-1 cannot be transitioned directly "+
			"from status Community Manager Review to status Merged. Valid status transitions are: Waiting on Author, Rejected")
		require.Len(t, env.jira.transitions, posted)
	})
}

func TestExpiredPeopleEntryIsIgnored(t *testing.T) {
	expires := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	env := newTestEnv(t)
	env.dir.people["former"] = entities.Person{Login: "former", Internal: true, ExpiresOn: &expires}

	res := env.track(t, testPR(1, "former"))

	require.Equal(t, "OSPR-1", res.JiraKey)
}

func TestConcurrentDeliveriesForOnePullRequest(t *testing.T) {
	env := newTestEnv(t)
	pr := testPR(1500, "newcomer")
	env.gh.addPR(pr)
	// Widen the window between reading the bot comments and writing them.
	env.gh.beforeListComments = func() { time.Sleep(30 * time.Millisecond) }

	errs := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := env.uc.PullRequestChanged(context.Background(), pr, false)
			errs <- err
		}()
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	require.Len(t, env.jira.created, 1)
	require.Len(t, env.gh.commentsOn(testRepo, 1500), 1)
}

func TestPullRequestLockHonoursContext(t *testing.T) {
	env := newTestEnv(t)
	pr := testPR(1501, "newcomer")
	env.gh.addPR(pr)

	unlock, err := env.jobs.Lock(context.Background(), "openedx/edx-platform#1501")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = env.uc.PullRequestChanged(ctx, pr, false)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, env.jira.created)
}
