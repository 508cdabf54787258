package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Jawayria/openedx-webhooks/internal/entities"

	"github.com/google/uuid"
)

func newJobID() string {
	return uuid.NewString()
}

func (u *Usecase) newJob(kind entities.JobKind, groupID string, payload any) (entities.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return entities.Job{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return entities.Job{
		ID:      u.newID(),
		GroupID: groupID,
		Kind:    kind,
		Payload: raw,
		State:   entities.JobPending,
		RunAt:   u.now().UTC(),
	}, nil
}

func (u *Usecase) enqueue(ctx context.Context, kind entities.JobKind, payload any) (*entities.Job, error) {
	ctx, cancel := withTimeout(ctx, u.timeout)
	defer cancel()

	job, err := u.newJob(kind, "", payload)
	if err != nil {
		return nil, err
	}
	if err := u.jobs.CreateJobs(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	u.log.Infow("job enqueued", "job_id", job.ID, "kind", kind)
	return &job, nil
}

// EnqueuePullRequestChanged queues tracking of a pull request from a webhook.
func (u *Usecase) EnqueuePullRequestChanged(ctx context.Context, pr entities.PullRequest) (*entities.Job, error) {
	if _, _, ok := entities.SplitRepo(pr.Repo); !ok || pr.Number <= 0 {
		return nil, fmt.Errorf("%w: pull request %q #%d", entities.ErrInvalidArgument, pr.Repo, pr.Number)
	}
	return u.enqueue(ctx, entities.JobPullRequestChanged, entities.PullRequestPayload{PullRequest: pr})
}

// EnqueueProcessPR queues forced tracking of a pull request.
func (u *Usecase) EnqueueProcessPR(ctx context.Context, repo string, number int) (*entities.Job, error) {
	if _, _, ok := entities.SplitRepo(repo); !ok || number <= 0 {
		return nil, fmt.Errorf("%w: repo and number are required", entities.ErrInvalidArgument)
	}
	return u.enqueue(ctx, entities.JobProcessPR, entities.RepoPayload{Repo: repo, Number: number})
}

// EnqueueRescan queues a rescan of one repository.
func (u *Usecase) EnqueueRescan(ctx context.Context, repo string) (*entities.Job, error) {
	if repo == "" {
		repo = u.settings.DefaultRescanRepo
	}
	if _, _, ok := entities.SplitRepo(repo); !ok {
		return nil, fmt.Errorf("%w: repo %q", entities.ErrInvalidArgument, repo)
	}
	return u.enqueue(ctx, entities.JobRescanRepository, entities.RepoPayload{Repo: repo})
}

// EnqueueSyncLabels queues a label synchronization of one repository.
func (u *Usecase) EnqueueSyncLabels(ctx context.Context, repo string) (*entities.Job, error) {
	if _, _, ok := entities.SplitRepo(repo); !ok {
		return nil, fmt.Errorf("%w: repo %q", entities.ErrInvalidArgument, repo)
	}
	return u.enqueue(ctx, entities.JobSyncLabels, entities.RepoPayload{Repo: repo})
}

// EnqueueActivity queues recording of GitHub activity on tracking issues.
func (u *Usecase) EnqueueActivity(ctx context.Context, act entities.Activity) (*entities.Job, error) {
	if act.HTMLURL == "" {
		return nil, fmt.Errorf("%w: pull request url is required", entities.ErrInvalidArgument)
	}
	return u.enqueue(ctx, entities.JobGitHubActivity, act)
}

// EnqueueOrganizationRescan queues one rescan job per repository of org, as a group.
func (u *Usecase) EnqueueOrganizationRescan(ctx context.Context, org string) (*entities.JobGroup, error) {
	ctx, cancel := withTimeout(ctx, u.timeout)
	defer cancel()

	if org == "" {
		return nil, fmt.Errorf("%w: organization is required", entities.ErrInvalidArgument)
	}
	repos, err := u.github.ListOrgRepos(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("list repositories of %s: %w", org, err)
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("%w: organization %s has no repositories", entities.ErrNotFound, org)
	}

	groupID := u.newID()
	jobs := make([]entities.Job, 0, len(repos))
	for _, repo := range repos {
		job, err := u.newJob(entities.JobRescanRepository, groupID, entities.RepoPayload{Repo: repo})
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := u.jobs.CreateJobs(ctx, jobs...); err != nil {
		return nil, fmt.Errorf("enqueue rescan of %s: %w", org, err)
	}
	u.log.Infow("organization rescan enqueued", "org", org, "group_id", groupID, "repos", len(repos))
	return groupOf(groupID, jobs), nil
}

// JobStatus returns one job.
func (u *Usecase) JobStatus(ctx context.Context, id string) (*entities.Job, error) {
	ctx, cancel := withTimeout(ctx, u.timeout)
	defer cancel()

	if id == "" {
		return nil, fmt.Errorf("%w: job id is required", entities.ErrInvalidArgument)
	}
	return u.jobs.GetJob(ctx, id)
}

// GroupStatus returns the jobs of a group with per-state counts.
func (u *Usecase) GroupStatus(ctx context.Context, id string) (*entities.JobGroup, error) {
	ctx, cancel := withTimeout(ctx, u.timeout)
	defer cancel()

	if id == "" {
		return nil, fmt.Errorf("%w: group id is required", entities.ErrInvalidArgument)
	}
	jobs, err := u.jobs.ListGroupJobs(ctx, id)
	if err != nil {
		return nil, err
	}
	return groupOf(id, jobs), nil
}

func groupOf(id string, jobs []entities.Job) *entities.JobGroup {
	g := &entities.JobGroup{ID: id, Jobs: jobs, Counts: map[entities.JobState]int{}}
	for _, j := range jobs {
		g.Counts[j.State]++
	}
	return g
}

// HandleJob runs a claimed job and returns the result to store as its info.
func (u *Usecase) HandleJob(ctx context.Context, job entities.Job) (any, error) {
	switch job.Kind {
	case entities.JobPullRequestChanged:
		var p entities.PullRequestPayload
		if err := decodePayload(job, &p); err != nil {
			return nil, err
		}
		return u.PullRequestChanged(ctx, p.PullRequest, false)

	case entities.JobProcessPR:
		var p entities.RepoPayload
		if err := decodePayload(job, &p); err != nil {
			return nil, err
		}
		return u.ProcessPullRequest(ctx, p.Repo, p.Number)

	case entities.JobRescanRepository:
		var p entities.RepoPayload
		if err := decodePayload(job, &p); err != nil {
			return nil, err
		}
		return u.RescanRepository(ctx, p.Repo, func(ctx context.Context, prog entities.RescanProgress) {
			u.reportProgress(ctx, job.ID, prog)
		})

	case entities.JobGitHubActivity:
		var act entities.Activity
		if err := decodePayload(job, &act); err != nil {
			return nil, err
		}
		n, err := u.RecordActivity(ctx, act)
		if err != nil {
			return nil, err
		}
		return map[string]int{"updated": n}, nil

	case entities.JobSyncLabels:
		var p entities.RepoPayload
		if err := decodePayload(job, &p); err != nil {
			return nil, err
		}
		if err := u.SynchronizeLabels(ctx, p.Repo); err != nil {
			return nil, err
		}
		return map[string]string{"repo": p.Repo}, nil
	}
	return nil, fmt.Errorf("%w: unknown job kind %q", entities.ErrInvalidArgument, job.Kind)
}

func (u *Usecase) reportProgress(ctx context.Context, jobID string, prog entities.RescanProgress) {
	raw, err := json.Marshal(prog)
	if err != nil {
		return
	}
	if err := u.jobs.UpdateJobInfo(ctx, jobID, raw); err != nil {
		u.log.Warnw("failed to record job progress", "job_id", jobID, "error", err)
	}
}

func decodePayload(job entities.Job, dst any) error {
	if err := json.Unmarshal(job.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", entities.ErrInvalidArgument, job.Kind, err)
	}
	return nil
}
