package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camaraproject/release-bot/pkg/cli/config"
	ghcontroller "github.com/camaraproject/release-bot/pkg/controller/github"
	controller "github.com/camaraproject/release-bot/pkg/controller/http"
	ghinfra "github.com/camaraproject/release-bot/pkg/infra/github"
	"github.com/camaraproject/release-bot/pkg/usecase"
	"github.com/camaraproject/release-bot/pkg/utils/queue"
	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		serverCfg config.Server
		githubCfg config.GitHub
		sentryCfg config.Sentry
	)

	flags := append(serverCfg.Flags(), githubCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			sentryEnabled, err := sentryCfg.Configure()
			if err != nil {
				return err
			}
			if sentryEnabled {
				defer sentry.Flush(2 * time.Second)
			}

			privateKey, err := githubCfg.LoadPrivateKey()
			if err != nil {
				return err
			}

			ghClient, err := ghinfra.NewClient(githubCfg.AppID, githubCfg.InstallationID, privateKey)
			if err != nil {
				return err
			}

			workflow := usecase.NewWorkflow(ghClient)

			var queueOpts []queue.Option
			if sentryEnabled {
				// Failed work units are invisible to webhook callers,
				// so they go to error monitoring as well as the log.
				queueOpts = append(queueOpts, queue.WithErrorHook(func(err error) {
					sentry.CaptureException(err)
				}))
			}
			workQueue := queue.New(serverCfg.QueueBuffer, queueOpts...)
			processor := ghcontroller.NewEventProcessor(workflow, workQueue)

			logger.Info("Starting release-bot server",
				slog.String("addr", serverCfg.Addr),
				slog.Int64("github_app_id", githubCfg.AppID),
				slog.Bool("sentry", sentryEnabled),
			)

			server, err := controller.NewServer(
				ctx,
				processor,
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(githubCfg.WebhookSecret),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			// Drain queued release work so partially applied mutations
			// are not abandoned mid-sequence.
			processor.Shutdown()

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
