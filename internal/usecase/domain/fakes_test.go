package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Jawayria/openedx-webhooks/internal/botcomment"
	"github.com/Jawayria/openedx-webhooks/internal/entities"
	"github.com/Jawayria/openedx-webhooks/internal/repository"
	"github.com/Jawayria/openedx-webhooks/internal/repository/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testBot       = "openedx-webhooks"
	testRepo      = "openedx/edx-platform"
	testBrowseURL = "https://openedx.atlassian.net/browse/"
	testPublicURL = "https://webhooks.example.com"
	testURLField  = "customfield_10904"
)

var testFieldIDs = map[string]string{
	fieldPRNumber:         "customfield_1",
	fieldRepo:             "customfield_2",
	fieldContributorName:  "customfield_3",
	fieldCustomer:         "customfield_4",
	fieldEpicLink:         "customfield_5",
	fieldPlatformMapArea:  "customfield_6",
	fieldBlendedProjectID: "customfield_7",
	fieldBlendedStatus:    "customfield_8",
	fieldLastUpdatedAt:    "customfield_9",
	fieldLastUpdatedBy:    "customfield_10",
	fieldLatestAction:     "customfield_11",
	fieldLatestActionEdX:  "customfield_12",
}

type fakeGitHub struct {
	mu       sync.Mutex
	prs      map[string]*entities.PullRequest
	comments map[string][]entities.Comment
	labels   map[string][]entities.Label
	names    map[string]string
	orgs     map[string][]string
	pageSize int
	nextID   int64
	writes   []string
	// beforeListComments runs on every ListComments call when set.
	beforeListComments func()
}

var _ repository.GitHubInterface = (*fakeGitHub)(nil)

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		prs:      map[string]*entities.PullRequest{},
		comments: map[string][]entities.Comment{},
		labels:   map[string][]entities.Label{},
		names:    map[string]string{},
		orgs:     map[string][]string{},
		pageSize: 2,
		nextID:   100,
	}
}

func (g *fakeGitHub) addPR(pr entities.PullRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prs[prKey(pr.Repo, pr.Number)] = &pr
}

func (g *fakeGitHub) pr(repo string, number int) entities.PullRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return *g.prs[prKey(repo, number)]
}

func (g *fakeGitHub) commentsOn(repo string, number int) []entities.Comment {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]entities.Comment(nil), g.comments[prKey(repo, number)]...)
}

func (g *fakeGitHub) addComment(repo string, number int, author, body string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	k := prKey(repo, number)
	g.comments[k] = append(g.comments[k], entities.Comment{ID: g.nextID, Author: author, Body: body})
	return g.nextID
}

func (g *fakeGitHub) writeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.writes)
}

func (g *fakeGitHub) record(format string, args ...any) {
	g.writes = append(g.writes, fmt.Sprintf(format, args...))
}

func (g *fakeGitHub) BotLogin(_ context.Context) (string, error) { return testBot, nil }

func (g *fakeGitHub) GetPullRequest(_ context.Context, repo string, number int) (*entities.PullRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pr, ok := g.prs[prKey(repo, number)]
	if !ok {
		return nil, entities.ErrNotFound
	}
	cp := *pr
	return &cp, nil
}

func (g *fakeGitHub) ListOpenPullRequests(_ context.Context, repo string, page int) ([]entities.PullRequest, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var open []entities.PullRequest
	for n := 1; n <= 1000; n++ {
		if pr, ok := g.prs[prKey(repo, n)]; ok && !pr.IsClosed() {
			open = append(open, *pr)
		}
	}
	start := (page - 1) * g.pageSize
	if start >= len(open) {
		return nil, 0, nil
	}
	end := min(start+g.pageSize, len(open))
	next := 0
	if end < len(open) {
		next = page + 1
	}
	return open[start:end], next, nil
}

func (g *fakeGitHub) ListComments(_ context.Context, repo string, number int) ([]entities.Comment, error) {
	if g.beforeListComments != nil {
		g.beforeListComments()
	}
	return g.commentsOn(repo, number), nil
}

func (g *fakeGitHub) CreateComment(_ context.Context, repo string, number int, body string) error {
	g.mu.Lock()
	g.record("create_comment %s", prKey(repo, number))
	g.mu.Unlock()
	g.addComment(repo, number, testBot, body)
	return nil
}

func (g *fakeGitHub) EditComment(_ context.Context, repo string, commentID int64, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("edit_comment %d", commentID)
	for k, cs := range g.comments {
		if !strings.HasPrefix(k, repo+"#") {
			continue
		}
		for i := range cs {
			if cs[i].ID == commentID {
				cs[i].Body = body
				return nil
			}
		}
	}
	return entities.ErrNotFound
}

func (g *fakeGitHub) ReplaceLabels(_ context.Context, repo string, number int, labels []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("replace_labels %s", prKey(repo, number))
	pr, ok := g.prs[prKey(repo, number)]
	if !ok {
		return entities.ErrNotFound
	}
	pr.Labels = append([]string(nil), labels...)
	return nil
}

func (g *fakeGitHub) ListLabels(_ context.Context, repo string) ([]entities.Label, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]entities.Label(nil), g.labels[repo]...), nil
}

func (g *fakeGitHub) CreateLabel(_ context.Context, repo string, label entities.Label) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("create_label %s", label.Name)
	g.labels[repo] = append(g.labels[repo], label)
	return nil
}

func (g *fakeGitHub) EditLabel(_ context.Context, repo, name string, label entities.Label) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("edit_label %s", name)
	for i, l := range g.labels[repo] {
		if l.Name == name {
			g.labels[repo][i] = label
			return nil
		}
	}
	return entities.ErrNotFound
}

func (g *fakeGitHub) DeleteLabel(_ context.Context, repo, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("delete_label %s", name)
	kept := g.labels[repo][:0]
	for _, l := range g.labels[repo] {
		if l.Name != name {
			kept = append(kept, l)
		}
	}
	g.labels[repo] = kept
	return nil
}

func (g *fakeGitHub) UserName(_ context.Context, login string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.names[login], nil
}

func (g *fakeGitHub) ListOrgRepos(_ context.Context, org string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.orgs[org], nil
}

// fakeJira offers every known status as a transition target unless allowed
// restricts an issue's transitions.
type fakeJira struct {
	mu          sync.Mutex
	issues      map[string]*entities.JiraIssue
	moved       map[string]string
	counters    map[string]int
	allowed     map[string][]entities.JiraTransition
	search      func(jql string) []entities.JiraIssue
	created     []map[string]any
	updated     map[string][]map[string]any
	transitions []string
	deleted     []string
}

var _ repository.JiraInterface = (*fakeJira)(nil)

func newFakeJira() *fakeJira {
	return &fakeJira{
		issues:   map[string]*entities.JiraIssue{},
		moved:    map[string]string{},
		counters: map[string]int{},
		allowed:  map[string][]entities.JiraTransition{},
		updated:  map[string][]map[string]any{},
	}
}

func (j *fakeJira) issue(key string) *entities.JiraIssue {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.issues[key]
}

func (j *fakeJira) setStatus(key, status string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.issues[key].Status = status
}

func (j *fakeJira) remove(key string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.issues, key)
}

func (j *fakeJira) resolve(key string) (*entities.JiraIssue, bool) {
	if to, ok := j.moved[key]; ok {
		key = to
	}
	issue, ok := j.issues[key]
	return issue, ok
}

func (j *fakeJira) GetIssue(_ context.Context, key string) (*entities.JiraIssue, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	issue, ok := j.resolve(key)
	if !ok {
		return nil, entities.ErrIssueNotFound
	}
	cp := *issue
	cp.Labels = append([]string(nil), issue.Labels...)
	return &cp, nil
}

func (j *fakeJira) CreateIssue(_ context.Context, fields map[string]any) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	project := fields["project"].(map[string]string)["key"]
	j.counters[project]++
	key := fmt.Sprintf("%s-%d", project, j.counters[project])

	issue := &entities.JiraIssue{
		Key:         key,
		Project:     project,
		Status:      entities.StatusNeedsTriage,
		Summary:     fields["summary"].(string),
		Description: fields["description"].(string),
		Labels:      fields["labels"].([]string),
		Fields:      map[string]json.RawMessage{},
	}
	for id, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		issue.Fields[id] = raw
	}
	j.issues[key] = issue
	j.created = append(j.created, fields)
	return key, nil
}

func (j *fakeJira) UpdateIssue(_ context.Context, key string, fields map[string]any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	issue, ok := j.resolve(key)
	if !ok {
		return entities.ErrIssueNotFound
	}
	for id, v := range fields {
		switch id {
		case "summary":
			issue.Summary = v.(string)
		case "description":
			issue.Description = v.(string)
		case "labels":
			issue.Labels = v.([]string)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return err
			}
			if issue.Fields == nil {
				issue.Fields = map[string]json.RawMessage{}
			}
			issue.Fields[id] = raw
		}
	}
	j.updated[key] = append(j.updated[key], fields)
	return nil
}

func (j *fakeJira) DeleteIssue(_ context.Context, key string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.issues, key)
	j.deleted = append(j.deleted, key)
	return nil
}

func (j *fakeJira) Transitions(_ context.Context, key string) ([]entities.JiraTransition, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	issue, ok := j.resolve(key)
	if !ok {
		return nil, entities.ErrIssueNotFound
	}
	if ts, ok := j.allowed[key]; ok {
		return ts, nil
	}
	var out []entities.JiraTransition
	for _, s := range entities.KnownStatuses {
		if s != issue.Status {
			out = append(out, entities.JiraTransition{ID: "to:" + s, Name: s, To: s})
		}
	}
	return out, nil
}

func (j *fakeJira) DoTransition(_ context.Context, key, transitionID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	issue, ok := j.resolve(key)
	if !ok {
		return entities.ErrIssueNotFound
	}
	j.transitions = append(j.transitions, key+" "+transitionID)
	if to, ok := strings.CutPrefix(transitionID, "to:"); ok {
		issue.Status = to
	}
	return nil
}

func (j *fakeJira) FieldIDs(_ context.Context) (map[string]string, error) {
	return testFieldIDs, nil
}

func (j *fakeJira) SearchIssues(_ context.Context, jql string) ([]entities.JiraIssue, error) {
	if j.search == nil {
		return nil, nil
	}
	return j.search(jql), nil
}

type fakeDirectory struct {
	people      map[string]entities.Person
	orgs        map[string]entities.Org
	labels      []entities.LabelSpec
	peopleReads atomic.Int32
}

var _ repository.DirectoryInterface = (*fakeDirectory)(nil)

func (d *fakeDirectory) People(_ context.Context) (map[string]entities.Person, error) {
	d.peopleReads.Add(1)
	return d.people, nil
}

func (d *fakeDirectory) Orgs(_ context.Context) (map[string]entities.Org, error) {
	return d.orgs, nil
}

func (d *fakeDirectory) Labels(_ context.Context) ([]entities.LabelSpec, error) {
	return d.labels, nil
}

type testEnv struct {
	uc   *Usecase
	gh   *fakeGitHub
	jira *fakeJira
	dir  *fakeDirectory
	jobs *memory.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	r, err := botcomment.NewRenderer(testBrowseURL, testPublicURL)
	require.NoError(t, err)

	env := &testEnv{
		gh:   newFakeGitHub(),
		jira: newFakeJira(),
		dir: &fakeDirectory{
			people: map[string]entities.Person{},
			orgs:   map[string]entities.Org{},
		},
		jobs: memory.New(zap.NewNop().Sugar()),
	}
	env.uc = New(zap.NewNop().Sugar(), context.Background(), Ports{
		GitHub:    env.gh,
		Jira:      env.jira,
		Directory: env.dir,
		Jobs:      env.jobs,
		Locks:     env.jobs,
	}, r, Settings{URLField: testURLField, DefaultRescanRepo: testRepo}, time.Second)
	return env
}

var prCreated = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func testPR(number int, author string) entities.PullRequest {
	return entities.PullRequest{
		Repo:       testRepo,
		Number:     number,
		Title:      "Fix the frobulator",
		Body:       "It was broken.",
		Author:     author,
		AuthorType: "User",
		State:      entities.StateOpen,
		HTMLURL:    fmt.Sprintf("https://github.com/%s/pull/%d", testRepo, number),
		CreatedAt:  prCreated,
		UpdatedAt:  prCreated,
	}
}

// track stores the pull request in the fake and reconciles it.
func (e *testEnv) track(t *testing.T, pr entities.PullRequest) entities.TrackingResult {
	t.Helper()
	e.gh.addPR(pr)
	res, err := e.uc.PullRequestChanged(context.Background(), pr, false)
	require.NoError(t, err)
	return res
}

// retrack reconciles the pull request again as GitHub has it now.
func (e *testEnv) retrack(t *testing.T, repo string, number int) entities.TrackingResult {
	t.Helper()
	res, err := e.uc.PullRequestChanged(context.Background(), e.gh.pr(repo, number), false)
	require.NoError(t, err)
	return res
}
