package entities

import (
	"slices"
	"time"
)

// AgreementNone is the people.yaml value meaning "no contributor agreement".
const AgreementNone = "none"

// Person is an entry of people.yaml.
type Person struct {
	Login       string
	Name        string
	Institution string
	Agreement   string
	ExpiresOn   *time.Time
	IsRobot     bool
	Internal    bool
	Contractor  bool
	Committer   *CommitterScope
}

// CommitterScope lists where a person has core committer rights.
type CommitterScope struct {
	Orgs  []string
	Repos []string
}

// Org is an entry of orgs.yaml.
type Org struct {
	Name       string
	Internal   bool
	Contractor bool
}

// HasAgreement reports whether the person signed any contributor agreement.
func (p Person) HasAgreement() bool {
	return p.Agreement != "" && p.Agreement != AgreementNone
}

// ActiveOn reports whether the entry is still valid on the given date.
// An entry expires at the start of its expires_on day.
func (p Person) ActiveOn(at time.Time) bool {
	if p.ExpiresOn == nil {
		return true
	}
	y, m, d := at.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := p.ExpiresOn.UTC().Date()
	expires := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return day.Before(expires)
}

// EffectiveInstitution is the institution, which only counts under an agreement.
func (p Person) EffectiveInstitution() string {
	if !p.HasAgreement() {
		return ""
	}
	return p.Institution
}

// CommitterFor reports whether the person is a core committer on repo ("owner/name").
func (p Person) CommitterFor(repo string) bool {
	if p.Committer == nil {
		return false
	}
	owner, _, _ := SplitRepo(repo)
	return slices.Contains(p.Committer.Orgs, owner) || slices.Contains(p.Committer.Repos, repo)
}
