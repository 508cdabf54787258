// Package githubapi implements the GitHub side of the tracker on top of go-github.
package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Jawayria/openedx-webhooks/config"
	"github.com/Jawayria/openedx-webhooks/internal/entities"
	"github.com/Jawayria/openedx-webhooks/internal/mapper"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v63/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const perPage = 100

// Client wraps a go-github client with retries and domain mapping.
type Client struct {
	gh  *github.Client
	log *zap.SugaredLogger
	// MaxElapsed bounds retries of transient failures; zero disables retrying.
	MaxElapsed time.Duration

	mu       sync.Mutex
	botLogin string
}

// New creates a client authenticated with the configured token.
func New(ctx context.Context, log *zap.SugaredLogger, cfg config.GitHubConfig) (*Client, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}

	gh := github.NewClient(httpClient)
	if cfg.APIURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(cfg.APIURL, cfg.APIURL)
		if err != nil {
			return nil, fmt.Errorf("github api url: %w", err)
		}
	}

	return &Client{
		gh:         gh,
		log:        log.Named("github"),
		MaxElapsed: time.Minute,
		botLogin:   cfg.BotLogin,
	}, nil
}

// BotLogin returns the login the client acts as.
func (c *Client) BotLogin(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.botLogin != "" {
		return c.botLogin, nil
	}

	var user *github.User
	err := c.do(ctx, "get authenticated user", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		user, resp, err = c.gh.Users.Get(ctx, "")
		return resp, err
	})
	if err != nil {
		return "", err
	}
	c.botLogin = user.GetLogin()
	return c.botLogin, nil
}

// GetPullRequest fetches one pull request.
func (c *Client) GetPullRequest(ctx context.Context, repo string, number int) (*entities.PullRequest, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	var pr *github.PullRequest
	err = c.do(ctx, "get pull request", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		pr, resp, err = c.gh.PullRequests.Get(ctx, owner, name, number)
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("get %s#%d: %w", repo, number, err)
	}
	res := mapper.FromGitHubPullRequest(pr)
	return &res, nil
}

// ListOpenPullRequests returns one page of open pull requests and the next page
// number, zero on the last page.
func (c *Client) ListOpenPullRequests(ctx context.Context, repo string, page int) ([]entities.PullRequest, int, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, 0, err
	}

	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}
	var prs []*github.PullRequest
	var next int
	err = c.do(ctx, "list pull requests", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		prs, resp, err = c.gh.PullRequests.List(ctx, owner, name, opts)
		if resp != nil {
			next = resp.NextPage
		}
		return resp, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list pull requests of %s: %w", repo, err)
	}

	out := make([]entities.PullRequest, 0, len(prs))
	for _, pr := range prs {
		out = append(out, mapper.FromGitHubPullRequest(pr))
	}
	return out, next, nil
}

// ListComments returns every issue comment on a pull request.
func (c *Client) ListComments(ctx context.Context, repo string, number int) ([]entities.Comment, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	var out []entities.Comment
	for {
		var page []*github.IssueComment
		var next int
		err := c.do(ctx, "list comments", func() (*github.Response, error) {
			var resp *github.Response
			var err error
			page, resp, err = c.gh.Issues.ListComments(ctx, owner, name, number, opts)
			if resp != nil {
				next = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("list comments of %s#%d: %w", repo, number, err)
		}
		for _, cm := range page {
			out = append(out, mapper.FromGitHubComment(cm))
		}
		if next == 0 {
			return out, nil
		}
		opts.Page = next
	}
}

// CreateComment posts a comment on a pull request.
func (c *Client) CreateComment(ctx context.Context, repo string, number int, body string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	err = c.doOnce(ctx, "create comment", func() (*github.Response, error) {
		_, resp, err := c.gh.Issues.CreateComment(ctx, owner, name, number, &github.IssueComment{Body: github.String(body)})
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("comment on %s#%d: %w", repo, number, err)
	}
	return nil
}

// EditComment replaces the body of an existing comment.
func (c *Client) EditComment(ctx context.Context, repo string, commentID int64, body string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	err = c.do(ctx, "edit comment", func() (*github.Response, error) {
		_, resp, err := c.gh.Issues.EditComment(ctx, owner, name, commentID, &github.IssueComment{Body: github.String(body)})
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("edit comment %d on %s: %w", commentID, repo, err)
	}
	return nil
}

// ReplaceLabels sets the complete label list of a pull request.
func (c *Client) ReplaceLabels(ctx context.Context, repo string, number int, labels []string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	err = c.do(ctx, "replace labels", func() (*github.Response, error) {
		_, resp, err := c.gh.Issues.ReplaceLabelsForIssue(ctx, owner, name, number, labels)
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("set labels on %s#%d: %w", repo, number, err)
	}
	return nil
}

// ListLabels returns every label defined in a repository.
func (c *Client) ListLabels(ctx context.Context, repo string) ([]entities.Label, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	opts := &github.ListOptions{PerPage: perPage}
	var out []entities.Label
	for {
		var page []*github.Label
		var next int
		err := c.do(ctx, "list labels", func() (*github.Response, error) {
			var resp *github.Response
			var err error
			page, resp, err = c.gh.Issues.ListLabels(ctx, owner, name, opts)
			if resp != nil {
				next = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("list labels of %s: %w", repo, err)
		}
		for _, l := range page {
			out = append(out, mapper.FromGitHubLabel(l))
		}
		if next == 0 {
			return out, nil
		}
		opts.Page = next
	}
}

// CreateLabel defines a new label in a repository.
func (c *Client) CreateLabel(ctx context.Context, repo string, label entities.Label) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	err = c.doOnce(ctx, "create label", func() (*github.Response, error) {
		_, resp, err := c.gh.Issues.CreateLabel(ctx, owner, name, mapper.ToGitHubLabel(label))
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("create label %q in %s: %w", label.Name, repo, err)
	}
	return nil
}

// EditLabel updates the color and description of a label.
func (c *Client) EditLabel(ctx context.Context, repo, labelName string, label entities.Label) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	err = c.do(ctx, "edit label", func() (*github.Response, error) {
		_, resp, err := c.gh.Issues.EditLabel(ctx, owner, name, labelName, mapper.ToGitHubLabel(label))
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("edit label %q in %s: %w", labelName, repo, err)
	}
	return nil
}

// DeleteLabel removes a label from a repository.
func (c *Client) DeleteLabel(ctx context.Context, repo, labelName string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	err = c.do(ctx, "delete label", func() (*github.Response, error) {
		return c.gh.Issues.DeleteLabel(ctx, owner, name, labelName)
	})
	if err != nil {
		return fmt.Errorf("delete label %q in %s: %w", labelName, repo, err)
	}
	return nil
}

// UserName returns the display name of a user, empty when unset.
func (c *Client) UserName(ctx context.Context, login string) (string, error) {
	var user *github.User
	err := c.do(ctx, "get user", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		user, resp, err = c.gh.Users.Get(ctx, login)
		return resp, err
	})
	if err != nil {
		return "", fmt.Errorf("get user %s: %w", login, err)
	}
	return user.GetName(), nil
}

// ListOrgRepos returns the full names of the non-archived repositories of an org.
func (c *Client) ListOrgRepos(ctx context.Context, org string) ([]string, error) {
	opts := &github.RepositoryListByOrgOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	var out []string
	for {
		var page []*github.Repository
		var next int
		err := c.do(ctx, "list org repos", func() (*github.Response, error) {
			var resp *github.Response
			var err error
			page, resp, err = c.gh.Repositories.ListByOrg(ctx, org, opts)
			if resp != nil {
				next = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("list repos of %s: %w", org, err)
		}
		for _, r := range page {
			if !r.GetArchived() {
				out = append(out, r.GetFullName())
			}
		}
		if next == 0 {
			return out, nil
		}
		opts.Page = next
	}
}

// ReadFile returns the decoded content of a file in a repository at ref.
func (c *Client) ReadFile(ctx context.Context, repo, ref, path string) ([]byte, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	var file *github.RepositoryContent
	err = c.do(ctx, "get contents", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		file, _, resp, err = c.gh.Repositories.GetContents(ctx, owner, name, path, &github.RepositoryContentGetOptions{Ref: ref})
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("read %s from %s@%s: %w", path, repo, ref, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: %s in %s is a directory", entities.ErrInvalidArgument, path, repo)
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []byte(content), nil
}

// do runs one API call, retrying rate limiting, server errors and network failures.
// A 404 is reported as entities.ErrNotFound.
func (c *Client) do(ctx context.Context, op string, call func() (*github.Response, error)) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.MaxElapsed
	var policy backoff.BackOff = bo
	if c.MaxElapsed == 0 {
		policy = &backoff.StopBackOff{}
	}
	return c.run(ctx, op, policy, call)
}

// doOnce runs a call that creates something. It is never retried here: the
// write may have landed before the error, and the caller re-reads state first.
func (c *Client) doOnce(ctx context.Context, op string, call func() (*github.Response, error)) error {
	return c.run(ctx, op, &backoff.StopBackOff{}, call)
}

func (c *Client) run(ctx context.Context, op string, policy backoff.BackOff, call func() (*github.Response, error)) error {
	return backoff.Retry(func() error {
		resp, err := call()
		if err == nil {
			return nil
		}
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("%w: %v", entities.ErrNotFound, err))
		}
		if !retryable(ctx, resp, err) {
			return backoff.Permanent(err)
		}
		c.log.Warnw("github request failed", "op", op, "error", err)
		return err
	}, backoff.WithContext(policy, ctx))
}

func retryable(ctx context.Context, resp *github.Response, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}
	if resp == nil {
		return true
	}
	return resp.StatusCode >= http.StatusInternalServerError
}

func splitRepo(repo string) (string, string, error) {
	owner, name, ok := entities.SplitRepo(repo)
	if !ok {
		return "", "", fmt.Errorf("%w: repo %q is not owner/name", entities.ErrInvalidArgument, repo)
	}
	return owner, name, nil
}
