// Package repotools reads the repo-tools data files (people.yaml, orgs.yaml,
// labels.yaml) that describe contributors, organizations and shared labels.
package repotools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Jawayria/openedx-webhooks/config"
	"github.com/Jawayria/openedx-webhooks/internal/entities"

	"go.uber.org/zap"
)

const (
	peopleFile = "people.yaml"
	orgsFile   = "orgs.yaml"
	labelsFile = "labels.yaml"
)

// FileReader reads a file from a GitHub repository.
type FileReader interface {
	ReadFile(ctx context.Context, repo, ref, path string) ([]byte, error)
}

// Source returns the raw bytes of a data file by name.
type Source interface {
	Read(ctx context.Context, name string) ([]byte, error)
}

// GitHubSource reads data files from a repository through the contents API.
type GitHubSource struct {
	Reader FileReader
	Repo   string
	Ref    string
}

// Read implements Source.
func (s GitHubSource) Read(ctx context.Context, name string) ([]byte, error) {
	return s.Reader.ReadFile(ctx, s.Repo, s.Ref, name)
}

// DirSource reads data files from a local checkout.
type DirSource struct {
	Dir string
}

// Read implements Source.
func (s DirSource) Read(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Dir, name))
}

type cached struct {
	value   any
	fetched time.Time
}

// Directory serves parsed data files, caching each for a TTL.
type Directory struct {
	log *zap.SugaredLogger
	src Source
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	cache map[string]cached
}

// New builds a Directory for the configured source.
func New(log *zap.SugaredLogger, cfg config.RepoToolsConfig, reader FileReader) (*Directory, error) {
	var src Source
	switch cfg.Source {
	case "github":
		src = GitHubSource{Reader: reader, Repo: cfg.Repo, Ref: cfg.Ref}
	case "dir":
		src = DirSource{Dir: cfg.Dir}
	default:
		return nil, fmt.Errorf("unknown repotools source: %s", cfg.Source)
	}
	return NewWithSource(log, src, cfg.CacheTTL), nil
}

// NewWithSource builds a Directory over any Source.
func NewWithSource(log *zap.SugaredLogger, src Source, ttl time.Duration) *Directory {
	return &Directory{
		log:   log.Named("repotools"),
		src:   src,
		ttl:   ttl,
		now:   time.Now,
		cache: map[string]cached{},
	}
}

// People returns people.yaml keyed by GitHub login.
func (d *Directory) People(ctx context.Context) (map[string]entities.Person, error) {
	v, err := d.load(ctx, peopleFile, func(data []byte) (any, error) { return parsePeople(data) })
	if err != nil {
		return nil, err
	}
	return v.(map[string]entities.Person), nil
}

// Orgs returns orgs.yaml keyed by organization name.
func (d *Directory) Orgs(ctx context.Context) (map[string]entities.Org, error) {
	v, err := d.load(ctx, orgsFile, func(data []byte) (any, error) { return parseOrgs(data) })
	if err != nil {
		return nil, err
	}
	return v.(map[string]entities.Org), nil
}

// Labels returns labels.yaml in file order.
func (d *Directory) Labels(ctx context.Context) ([]entities.LabelSpec, error) {
	v, err := d.load(ctx, labelsFile, func(data []byte) (any, error) { return parseLabels(data) })
	if err != nil {
		return nil, err
	}
	return v.([]entities.LabelSpec), nil
}

func (d *Directory) load(ctx context.Context, name string, parse func([]byte) (any, error)) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.cache[name]; ok && d.now().Sub(c.fetched) < d.ttl {
		return c.value, nil
	}

	data, err := d.src.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	v, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	d.cache[name] = cached{value: v, fetched: d.now()}
	d.log.Debugw("loaded data file", "file", name)
	return v, nil
}
