package main

import (
	"context"
	"errors"

	"github.com/Jawayria/openedx-webhooks/internal/transport/http/middleware"
	"github.com/Jawayria/openedx-webhooks/internal/transport/http/server/handlers-fiber"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveWorkers bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "")
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close(context.Background())
		}()

		cfg := a.cfg
		if cfg.Queue.Backend == "memory" && !serveWorkers {
			a.log.Warnw("memory job store without embedded workers: queued jobs will never run")
		}

		serv := fiber.New(fiber.Config{
			ReadTimeout:           cfg.HTTP.RequestTimeout,
			WriteTimeout:          cfg.HTTP.RequestTimeout,
			DisableStartupMessage: true,
		})
		serv.Use(recover.New())
		serv.Use(requestid.New())
		serv.Use(middleware.RequestLogger(a.log))

		serv.Get("/healthz", func(c *fiber.Ctx) error {
			if err := a.store.Ping(c.UserContext()); err != nil {
				a.log.Warnw("health check failed", "error", err)
				return c.SendStatus(fiber.StatusServiceUnavailable)
			}
			return c.SendStatus(fiber.StatusOK)
		})

		h := handlers_fiber.NewHandler(a.log, a.uc, cfg.GitHub.WebhookSecret)
		handlers_fiber.RegisterHandlers(serv, h, middleware.AdminAuth(a.log, cfg.Server.AdminToken))

		g, gctx := errgroup.WithContext(ctx)
		if serveWorkers {
			pool, err := a.newPool()
			if err != nil {
				return err
			}
			g.Go(func() error {
				return pool.Run(gctx)
			})
		}

		g.Go(func() error {
			a.log.Infow("listening", "addr", cfg.ServerAddr())
			return serv.Listen(cfg.ServerAddr())
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := serv.ShutdownWithContext(shutdownCtx); err != nil {
				a.log.Warnw("server shutdown", "timeout", cfg.Server.ShutdownTimeout, "error", err)
			}
			return nil
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		a.log.Infow("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWorkers, "workers", true, "Run the job worker pool in the same process")
}
