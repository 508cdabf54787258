package domain

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/Jawayria/openedx-webhooks/internal/entities"
)

// author is what people.yaml and orgs.yaml say about a pull request author.
type author struct {
	Person     *entities.Person // nil for unknown or expired entries
	Bot        bool
	Internal   bool
	Contractor bool
	Agreement  bool
	Committer  bool
}

var blendedTitle = regexp.MustCompile(`(?i)^\s*\[\s*BD\s*-\s*(\d+)\s*\]`)

// blendedProjectID extracts n from a "[BD-n]" title prefix.
func blendedProjectID(title string) (int, bool) {
	m := blendedTitle.FindStringSubmatch(title)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// classifyAuthor evaluates the author as of the pull request creation date.
func (u *Usecase) classifyAuthor(ctx context.Context, pr entities.PullRequest) (author, error) {
	people, err := u.directory.People(ctx)
	if err != nil {
		return author{}, fmt.Errorf("read people: %w", err)
	}
	orgs, err := u.directory.Orgs(ctx)
	if err != nil {
		return author{}, fmt.Errorf("read orgs: %w", err)
	}

	at := pr.CreatedAt
	if at.IsZero() {
		at = u.now()
	}

	a := author{Bot: pr.AuthorType == entities.AuthorTypeBot}
	p, ok := people[pr.Author]
	if !ok || !p.ActiveOn(at) {
		return a, nil
	}

	a.Person = &p
	a.Bot = a.Bot || p.IsRobot
	a.Agreement = p.HasAgreement()
	a.Committer = p.CommitterFor(pr.Repo)
	a.Internal = p.Internal
	a.Contractor = p.Contractor
	if org, ok := orgs[p.EffectiveInstitution()]; ok {
		a.Internal = a.Internal || org.Internal
		a.Contractor = a.Contractor || org.Contractor
	}
	return a, nil
}

// institution is the author's institution for the Customer field, "" when unknown.
func (a author) institution() string {
	if a.Person == nil {
		return ""
	}
	return a.Person.Institution
}
