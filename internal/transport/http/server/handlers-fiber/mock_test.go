package handlers_fiber

import (
	"context"

	"github.com/Jawayria/openedx-webhooks/internal/entities"

	"github.com/stretchr/testify/mock"
)

type usecaseMock struct {
	mock.Mock
}

func (m *usecaseMock) PullRequestChanged(ctx context.Context, pr entities.PullRequest, force bool) (entities.TrackingResult, error) {
	args := m.Called(ctx, pr, force)
	return args.Get(0).(entities.TrackingResult), args.Error(1)
}

func (m *usecaseMock) ProcessPullRequest(ctx context.Context, repo string, number int) (entities.TrackingResult, error) {
	args := m.Called(ctx, repo, number)
	return args.Get(0).(entities.TrackingResult), args.Error(1)
}

func (m *usecaseMock) TransitionIssue(ctx context.Context, key, status string) (bool, error) {
	args := m.Called(ctx, key, status)
	return args.Bool(0), args.Error(1)
}

func (m *usecaseMock) RecordActivity(ctx context.Context, act entities.Activity) (int, error) {
	args := m.Called(ctx, act)
	return args.Int(0), args.Error(1)
}

func (m *usecaseMock) SynchronizeLabels(ctx context.Context, repo string) error {
	return m.Called(ctx, repo).Error(0)
}

func (m *usecaseMock) RescanRepository(ctx context.Context, repo string, progress func(context.Context, entities.RescanProgress)) (entities.RescanResult, error) {
	args := m.Called(ctx, repo, progress)
	return args.Get(0).(entities.RescanResult), args.Error(1)
}

func (m *usecaseMock) RescanOrganization(ctx context.Context, org string) ([]entities.RescanResult, error) {
	args := m.Called(ctx, org)
	res, _ := args.Get(0).([]entities.RescanResult)
	return res, args.Error(1)
}

func (m *usecaseMock) job(args mock.Arguments) (*entities.Job, error) {
	j, _ := args.Get(0).(*entities.Job)
	return j, args.Error(1)
}

func (m *usecaseMock) EnqueuePullRequestChanged(ctx context.Context, pr entities.PullRequest) (*entities.Job, error) {
	return m.job(m.Called(ctx, pr))
}

func (m *usecaseMock) EnqueueProcessPR(ctx context.Context, repo string, number int) (*entities.Job, error) {
	return m.job(m.Called(ctx, repo, number))
}

func (m *usecaseMock) EnqueueRescan(ctx context.Context, repo string) (*entities.Job, error) {
	return m.job(m.Called(ctx, repo))
}

func (m *usecaseMock) EnqueueOrganizationRescan(ctx context.Context, org string) (*entities.JobGroup, error) {
	args := m.Called(ctx, org)
	g, _ := args.Get(0).(*entities.JobGroup)
	return g, args.Error(1)
}

func (m *usecaseMock) EnqueueSyncLabels(ctx context.Context, repo string) (*entities.Job, error) {
	return m.job(m.Called(ctx, repo))
}

func (m *usecaseMock) EnqueueActivity(ctx context.Context, act entities.Activity) (*entities.Job, error) {
	return m.job(m.Called(ctx, act))
}

func (m *usecaseMock) JobStatus(ctx context.Context, id string) (*entities.Job, error) {
	return m.job(m.Called(ctx, id))
}

func (m *usecaseMock) GroupStatus(ctx context.Context, id string) (*entities.JobGroup, error) {
	args := m.Called(ctx, id)
	g, _ := args.Get(0).(*entities.JobGroup)
	return g, args.Error(1)
}

func (m *usecaseMock) HandleJob(ctx context.Context, job entities.Job) (any, error) {
	args := m.Called(ctx, job)
	return args.Get(0), args.Error(1)
}
