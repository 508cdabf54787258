package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the job worker pool only",
	Long:  `Claims queued jobs from the shared job store and runs them. Requires the postgres job store.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), "")
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close(context.Background())
		}()

		if a.cfg.Queue.Backend == "memory" {
			return errors.New("the worker command needs a shared job store; set QUEUE_BACKEND=postgres")
		}

		pool, err := a.newPool()
		if err != nil {
			return err
		}
		a.log.Infow("worker started", "workers", a.cfg.Queue.Workers)
		if err := pool.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		a.log.Infow("worker stopped")
		return nil
	},
}
