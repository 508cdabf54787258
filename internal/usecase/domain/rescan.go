package domain

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Jawayria/openedx-webhooks/internal/entities"

	"golang.org/x/sync/errgroup"
)

// AllReposPrefix selects every repository of an organization in a rescan request.
const AllReposPrefix = "all:"

// ParseOrgTarget returns the organization of an "all:ORG" rescan target.
func ParseOrgTarget(target string) (string, bool) {
	org, ok := strings.CutPrefix(target, AllReposPrefix)
	if !ok || org == "" || strings.Contains(org, "/") {
		return "", false
	}
	return org, true
}

// RescanRepository tracks every open pull request of repo that has no tracking
// issue yet. progress, when set, is called after each page.
func (u *Usecase) RescanRepository(
	ctx context.Context,
	repo string,
	progress func(context.Context, entities.RescanProgress),
) (entities.RescanResult, error) {
	if repo == "" {
		repo = u.settings.DefaultRescanRepo
	}
	res := entities.RescanResult{Repo: repo, Created: map[int]string{}}
	if _, _, ok := entities.SplitRepo(repo); !ok {
		return res, fmt.Errorf("%w: repo %q", entities.ErrInvalidArgument, repo)
	}

	ctx, span := u.tracer.Start(ctx, "RescanRepository")
	defer span.End()

	for page := 1; page > 0; {
		prs, next, err := u.github.ListOpenPullRequests(ctx, repo, page)
		if err != nil {
			return res, fmt.Errorf("list pull requests of %s: %w", repo, err)
		}
		for _, pr := range prs {
			if err := u.rescanPullRequest(ctx, pr, &res); err != nil {
				return res, err
			}
		}
		if progress != nil {
			progress(ctx, entities.RescanProgress{Repo: repo, CurrentPage: page, Created: len(res.Created)})
		}
		page = next
	}

	u.log.Infow("repository rescanned", "repo", repo, "created", len(res.Created))
	return res, nil
}

func (u *Usecase) rescanPullRequest(ctx context.Context, pr entities.PullRequest, res *entities.RescanResult) error {
	found, err := u.scanBotComments(ctx, pr)
	if err != nil {
		return err
	}
	if found.issueKey != "" {
		return nil
	}
	a, err := u.classifyAuthor(ctx, pr)
	if err != nil {
		return err
	}
	if a.Internal {
		return nil
	}

	tr, err := u.track(ctx, pr, &a, false)
	if err != nil {
		return fmt.Errorf("track %s#%d: %w", pr.Repo, pr.Number, err)
	}
	if tr.JiraKey != "" && tr.Changed {
		res.Created[pr.Number] = tr.JiraKey
	}
	return nil
}

// RescanOrganization rescans every repository of org concurrently.
func (u *Usecase) RescanOrganization(ctx context.Context, org string) ([]entities.RescanResult, error) {
	if org == "" {
		return nil, fmt.Errorf("%w: organization is required", entities.ErrInvalidArgument)
	}
	repos, err := u.github.ListOrgRepos(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("list repositories of %s: %w", org, err)
	}

	var (
		mu      sync.Mutex
		results = make([]entities.RescanResult, 0, len(repos))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.settings.RescanConcurrency)
	for _, repo := range repos {
		g.Go(func() error {
			res, err := u.RescanRepository(gctx, repo, nil)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b entities.RescanResult) int {
		return strings.Compare(a.Repo, b.Repo)
	})
	return results, nil
}
