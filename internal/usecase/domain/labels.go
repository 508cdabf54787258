package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Jawayria/openedx-webhooks/internal/entities"
)

// SynchronizeLabels makes the repository labels match labels.yaml.
func (u *Usecase) SynchronizeLabels(ctx context.Context, repo string) error {
	if _, _, ok := entities.SplitRepo(repo); !ok {
		return fmt.Errorf("%w: repo %q", entities.ErrInvalidArgument, repo)
	}
	specs, err := u.directory.Labels(ctx)
	if err != nil {
		return fmt.Errorf("read labels: %w", err)
	}
	existing, err := u.github.ListLabels(ctx, repo)
	if err != nil {
		return fmt.Errorf("list labels: %w", err)
	}

	byName := make(map[string]entities.Label, len(existing))
	for _, l := range existing {
		byName[strings.ToLower(l.Name)] = l
	}

	for _, spec := range specs {
		have, ok := byName[strings.ToLower(spec.Name)]
		switch {
		case spec.Delete:
			if !ok {
				continue
			}
			u.log.Infow("deleting label", "repo", repo, "label", have.Name)
			if err := u.github.DeleteLabel(ctx, repo, have.Name); err != nil && !errors.Is(err, entities.ErrNotFound) {
				return fmt.Errorf("delete label %q: %w", have.Name, err)
			}
		case !ok:
			u.log.Infow("creating label", "repo", repo, "label", spec.Name)
			if err := u.github.CreateLabel(ctx, repo, spec.Label); err != nil {
				return fmt.Errorf("create label %q: %w", spec.Name, err)
			}
		case labelDiffers(have, spec.Label):
			u.log.Infow("updating label", "repo", repo, "label", spec.Name)
			if err := u.github.EditLabel(ctx, repo, have.Name, spec.Label); err != nil {
				return fmt.Errorf("edit label %q: %w", spec.Name, err)
			}
		}
	}
	return nil
}

func labelDiffers(have, want entities.Label) bool {
	if want.Color != "" && !strings.EqualFold(strings.TrimPrefix(have.Color, "#"), strings.TrimPrefix(want.Color, "#")) {
		return true
	}
	return want.Description != "" && have.Description != want.Description
}
