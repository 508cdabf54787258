// Package domain implements the pull request tracker: it reconciles GitHub pull
// requests with their Jira tracking issues and runs the background jobs doing so.
package domain

import (
	"context"
	"time"

	"github.com/Jawayria/openedx-webhooks/internal/botcomment"
	"github.com/Jawayria/openedx-webhooks/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/Jawayria/openedx-webhooks/internal/usecase/domain"

// Ports groups the outbound adapters the tracker works with.
type Ports struct {
	GitHub    repository.GitHubInterface
	Jira      repository.JiraInterface
	Directory repository.DirectoryInterface
	Jobs      repository.JobInterface
	// Locks serializes reconciliation of one pull request.
	Locks repository.LockerInterface
}

// Settings holds the deployment specific values used when writing to GitHub and Jira.
type Settings struct {
	// URLField is the id of the Jira field holding the pull request URL.
	URLField string
	// DefaultRescanRepo is rescanned when no repository is given.
	DefaultRescanRepo string
	// RescanConcurrency bounds inline organization rescans.
	RescanConcurrency int
}

// Usecase struct implements all usecase interfaces.
type Usecase struct {
	ctx       context.Context
	log       *zap.SugaredLogger
	github    repository.GitHubInterface
	jira      repository.JiraInterface
	directory repository.DirectoryInterface
	jobs      repository.JobInterface
	locks     repository.LockerInterface
	renderer  *botcomment.Renderer
	settings  Settings
	timeout   time.Duration
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
}

// New constructs a new usecase layer with its dependencies.
func New(
	log *zap.SugaredLogger,
	ctx context.Context,
	ports Ports,
	renderer *botcomment.Renderer,
	settings Settings,
	timeout time.Duration,
) *Usecase {
	if settings.RescanConcurrency <= 0 {
		settings.RescanConcurrency = 4
	}
	return &Usecase{
		ctx:       ctx,
		log:       log.Named("tracker"),
		github:    ports.GitHub,
		jira:      ports.Jira,
		directory: ports.Directory,
		jobs:      ports.Jobs,
		locks:     ports.Locks,
		renderer:  renderer,
		settings:  settings,
		timeout:   timeout,
		tracer:    otel.Tracer(instrumentationName),
		now:       time.Now,
		newID:     newJobID,
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
