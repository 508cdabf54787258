package repotools

import (
	"fmt"
	"time"

	"github.com/Jawayria/openedx-webhooks/internal/entities"

	"gopkg.in/yaml.v3"
)

type personYAML struct {
	Name        string        `yaml:"name"`
	Institution string        `yaml:"institution"`
	Agreement   string        `yaml:"agreement"`
	ExpiresOn   *time.Time    `yaml:"expires_on"`
	IsRobot     bool          `yaml:"is_robot"`
	Internal    bool          `yaml:"internal"`
	Contractor  bool          `yaml:"contractor"`
	Committer   committerYAML `yaml:"committer"`
}

// committerYAML accepts both the legacy boolean form ("committer: true", meaning
// an internal author) and the scoped form with orgs and repos.
type committerYAML struct {
	legacy bool
	scope  *entities.CommitterScope
}

func (c *committerYAML) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&c.legacy)
	}
	var scope struct {
		Orgs  []string `yaml:"orgs"`
		Repos []string `yaml:"repos"`
	}
	if err := value.Decode(&scope); err != nil {
		return err
	}
	c.scope = &entities.CommitterScope{Orgs: scope.Orgs, Repos: scope.Repos}
	return nil
}

type orgYAML struct {
	Internal   bool `yaml:"internal"`
	Committer  bool `yaml:"committer"`
	Contractor bool `yaml:"contractor"`
}

type labelYAML struct {
	Color       string `yaml:"color"`
	Description string `yaml:"description"`
	Delete      bool   `yaml:"delete"`
}

func parsePeople(data []byte) (map[string]entities.Person, error) {
	var raw map[string]personYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]entities.Person, len(raw))
	for login, p := range raw {
		out[login] = entities.Person{
			Login:       login,
			Name:        p.Name,
			Institution: p.Institution,
			Agreement:   p.Agreement,
			ExpiresOn:   p.ExpiresOn,
			IsRobot:     p.IsRobot,
			Internal:    p.Internal || p.Committer.legacy,
			Contractor:  p.Contractor,
			Committer:   p.Committer.scope,
		}
	}
	return out, nil
}

func parseOrgs(data []byte) (map[string]entities.Org, error) {
	var raw map[string]orgYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]entities.Org, len(raw))
	for name, o := range raw {
		out[name] = entities.Org{
			Name:       name,
			Internal:   o.Internal || o.Committer,
			Contractor: o.Contractor,
		}
	}
	return out, nil
}

// parseLabels keeps the order of the file, so labels are created predictably.
func parseLabels(data []byte) ([]entities.LabelSpec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping of label names", root.Line)
	}

	out := make([]entities.LabelSpec, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		var l labelYAML
		if err := root.Content[i+1].Decode(&l); err != nil {
			return nil, fmt.Errorf("label %q: %w", root.Content[i].Value, err)
		}
		out = append(out, entities.LabelSpec{
			Label: entities.Label{
				Name:        root.Content[i].Value,
				Color:       l.Color,
				Description: l.Description,
			},
			Delete: l.Delete,
		})
	}
	return out, nil
}
