// Package main is the openedx-webhooks binary: the webhook server, the job
// worker and a few operator commands that run tracker tasks inline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "openedx-webhooks",
	Short:         "Track Open edX pull requests in Jira",
	Long:          `Receives GitHub webhooks for Open edX repositories and keeps a Jira issue, labels and bot comments in sync with every community pull request.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(serveCmd, workerCmd, rescanCmd, processPRCmd, syncLabelsCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
