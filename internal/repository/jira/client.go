// Package jira is a small client for the Jira REST API (v2), covering what the
// tracker needs: issue CRUD, transitions, custom field lookup and JQL search.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Jawayria/openedx-webhooks/config"
	"github.com/Jawayria/openedx-webhooks/internal/entities"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// APIError is a non-2xx Jira response.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira %s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Client provides HTTP access to a Jira instance.
type Client struct {
	URL        string
	Username   string
	APIToken   string
	HTTPClient *http.Client
	// MaxElapsed bounds retries of transient failures; zero disables retrying.
	MaxElapsed time.Duration

	log *zap.SugaredLogger

	fieldsMu sync.Mutex
	fields   map[string]string
}

// New creates a Jira client from configuration.
func New(log *zap.SugaredLogger, cfg config.JiraConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		URL:        strings.TrimSuffix(cfg.URL, "/"),
		Username:   cfg.Username,
		APIToken:   cfg.APIToken,
		HTTPClient: &http.Client{Timeout: timeout},
		MaxElapsed: time.Minute,
		log:        log.Named("jira"),
	}
}

type issueJSON struct {
	Key    string                     `json:"key"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type issueFields struct {
	Summary     string   `json:"summary"`
	Description *string  `json:"description"`
	Labels      []string `json:"labels"`
	Status      *struct {
		Name string `json:"name"`
	} `json:"status"`
	Project *struct {
		Key string `json:"key"`
	} `json:"project"`
}

func (i issueJSON) toEntity() (*entities.JiraIssue, error) {
	raw, err := json.Marshal(i.Fields)
	if err != nil {
		return nil, err
	}
	var f issueFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse issue %s fields: %w", i.Key, err)
	}
	issue := &entities.JiraIssue{
		Key:     i.Key,
		Summary: f.Summary,
		Labels:  f.Labels,
		Fields:  i.Fields,
	}
	if f.Description != nil {
		issue.Description = *f.Description
	}
	if f.Status != nil {
		issue.Status = f.Status.Name
	}
	if f.Project != nil {
		issue.Project = f.Project.Key
	}
	if issue.Project == "" {
		issue.Project, _, _ = strings.Cut(i.Key, "-")
	}
	return issue, nil
}

// GetIssue fetches an issue by key. A missing issue yields entities.ErrIssueNotFound.
// The returned key is the issue's current key, which differs from the requested one
// when the issue was moved to another project.
func (c *Client) GetIssue(ctx context.Context, key string) (*entities.JiraIssue, error) {
	apiURL := fmt.Sprintf("%s/rest/api/2/issue/%s", c.URL, url.PathEscape(key))

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", entities.ErrIssueNotFound, key)
		}
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}

	var issue issueJSON
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("parse issue response: %w", err)
	}
	return issue.toEntity()
}

// CreateIssue creates an issue and returns its key.
func (c *Client) CreateIssue(ctx context.Context, fields map[string]any) (string, error) {
	data, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return "", fmt.Errorf("marshal create request: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, c.URL+"/rest/api/2/issue", data)
	if err != nil {
		return "", fmt.Errorf("create issue: %w", err)
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("parse create response: %w", err)
	}
	if created.Key == "" {
		return "", errors.New("create issue: response has no key")
	}
	return created.Key, nil
}

// UpdateIssue sets fields on an existing issue.
func (c *Client) UpdateIssue(ctx context.Context, key string, fields map[string]any) error {
	data, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return fmt.Errorf("marshal update request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/2/issue/%s", c.URL, url.PathEscape(key))
	if _, err := c.doRequest(ctx, http.MethodPut, apiURL, data); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return fmt.Errorf("%w: %s", entities.ErrIssueNotFound, key)
		}
		return fmt.Errorf("update issue %s: %w", key, err)
	}
	return nil
}

// DeleteIssue removes an issue. Deleting an already missing issue succeeds.
func (c *Client) DeleteIssue(ctx context.Context, key string) error {
	apiURL := fmt.Sprintf("%s/rest/api/2/issue/%s", c.URL, url.PathEscape(key))
	if _, err := c.doRequest(ctx, http.MethodDelete, apiURL, nil); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil
		}
		return fmt.Errorf("delete issue %s: %w", key, err)
	}
	return nil
}

// Transitions lists the workflow transitions currently available on an issue.
func (c *Client) Transitions(ctx context.Context, key string) ([]entities.JiraTransition, error) {
	apiURL := fmt.Sprintf("%s/rest/api/2/issue/%s/transitions?expand=transitions.fields", c.URL, url.PathEscape(key))

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", entities.ErrIssueNotFound, key)
		}
		return nil, fmt.Errorf("get transitions for %s: %w", key, err)
	}

	var resp struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			To   struct {
				Name string `json:"name"`
			} `json:"to"`
		} `json:"transitions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse transitions response: %w", err)
	}

	out := make([]entities.JiraTransition, 0, len(resp.Transitions))
	for _, t := range resp.Transitions {
		out = append(out, entities.JiraTransition{ID: t.ID, Name: t.Name, To: t.To.Name})
	}
	return out, nil
}

// DoTransition moves an issue through a transition.
func (c *Client) DoTransition(ctx context.Context, key, transitionID string) error {
	data, err := json.Marshal(map[string]any{"transition": map[string]string{"id": transitionID}})
	if err != nil {
		return fmt.Errorf("marshal transition request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/2/issue/%s/transitions", c.URL, url.PathEscape(key))
	if _, err := c.doRequest(ctx, http.MethodPost, apiURL, data); err != nil {
		return fmt.Errorf("transition %s: %w", key, err)
	}
	return nil
}

// FieldIDs maps field names to ids. The list is fetched once per client.
func (c *Client) FieldIDs(ctx context.Context) (map[string]string, error) {
	c.fieldsMu.Lock()
	defer c.fieldsMu.Unlock()
	if c.fields != nil {
		return c.fields, nil
	}

	body, err := c.doRequest(ctx, http.MethodGet, c.URL+"/rest/api/2/field", nil)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}

	var list []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parse fields response: %w", err)
	}

	fields := make(map[string]string, len(list))
	for _, f := range list {
		// First one wins: Jira allows duplicate names.
		if _, dup := fields[f.Name]; !dup {
			fields[f.Name] = f.ID
		}
	}
	c.fields = fields
	return fields, nil
}

// SearchIssues runs a JQL query and returns all matching issues, handling pagination.
func (c *Client) SearchIssues(ctx context.Context, jql string) ([]entities.JiraIssue, error) {
	var all []entities.JiraIssue
	startAt := 0
	const maxResults = 100

	for {
		params := url.Values{
			"jql":        {jql},
			"startAt":    {fmt.Sprintf("%d", startAt)},
			"maxResults": {fmt.Sprintf("%d", maxResults)},
		}
		body, err := c.doRequest(ctx, http.MethodGet, c.URL+"/rest/api/2/search?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("search issues: %w", err)
		}

		var result struct {
			Total  int         `json:"total"`
			Issues []issueJSON `json:"issues"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("parse search response: %w", err)
		}

		for _, raw := range result.Issues {
			issue, err := raw.toEntity()
			if err != nil {
				return nil, err
			}
			all = append(all, *issue)
		}

		if len(result.Issues) == 0 || startAt+len(result.Issues) >= result.Total {
			break
		}
		startAt += len(result.Issues)
	}

	return all, nil
}

// doRequest executes an authenticated HTTP request and returns the response body.
// Transient failures (network errors, 429 and 5xx) are retried with exponential backoff,
// except for POSTs: the server may have applied one before failing, so a failed POST
// goes back to the caller, which re-reads the issue state before trying again.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body []byte) ([]byte, error) {
	if c.URL == "" {
		return nil, errors.New("jira URL not configured")
	}

	var out []byte
	op := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}

		c.setAuth(req)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{Method: method, URL: apiURL, StatusCode: resp.StatusCode, Body: string(respBody)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				c.log.Warnw("jira request failed", "method", method, "url", apiURL, "status", resp.StatusCode)
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		out = respBody
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.MaxElapsed
	var policy backoff.BackOff = bo
	if c.MaxElapsed == 0 || method == http.MethodPost {
		policy = &backoff.StopBackOff{}
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

// setAuth uses basic auth when a username is configured, a bearer token otherwise.
func (c *Client) setAuth(req *http.Request) {
	if c.APIToken == "" {
		return
	}
	if c.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
