package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Jawayria/openedx-webhooks/internal/entities"
	"github.com/Jawayria/openedx-webhooks/internal/usecase/domain"

	"github.com/spf13/cobra"
)

// Inline commands run one tracker task in the foreground and print its result.

var rescanCmd = &cobra.Command{
	Use:   "rescan [REPO | all:ORG]",
	Short: "Track every open pull request of a repository that has no Jira issue yet",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := ""
		if len(args) == 1 {
			target = args[0]
		}
		return runInline(cmd, func(ctx context.Context, a *app) (any, error) {
			if org, ok := domain.ParseOrgTarget(target); ok {
				return a.uc.RescanOrganization(ctx, org)
			}
			return a.uc.RescanRepository(ctx, target, func(_ context.Context, p entities.RescanProgress) {
				a.log.Infow("rescan progress", "repo", p.Repo, "page", p.CurrentPage, "created", p.Created)
			})
		})
	},
}

var processPRCmd = &cobra.Command{
	Use:   "process-pr REPO NUMBER",
	Short: "Track one pull request, even a contractor's",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[1])
		if err != nil || number <= 0 {
			return fmt.Errorf("%w: NUMBER must be a positive integer, got %q", entities.ErrInvalidArgument, args[1])
		}
		return runInline(cmd, func(ctx context.Context, a *app) (any, error) {
			return a.uc.ProcessPullRequest(ctx, args[0], number)
		})
	},
}

var syncLabelsCmd = &cobra.Command{
	Use:   "sync-labels REPO",
	Short: "Make the labels of a repository match labels.yaml",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInline(cmd, func(ctx context.Context, a *app) (any, error) {
			if err := a.uc.SynchronizeLabels(ctx, args[0]); err != nil {
				return nil, err
			}
			return map[string]string{"repo": args[0], "status": "synchronized"}, nil
		})
	},
}

func runInline(cmd *cobra.Command, task func(context.Context, *app) (any, error)) error {
	a, err := newApp(cmd.Context(), "memory")
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close(context.Background())
	}()

	out, err := task(cmd.Context(), a)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
