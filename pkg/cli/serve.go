package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/cli/config"
	controller "github.com/team11/cloudrun-deployer/pkg/controller/http"
	"github.com/team11/cloudrun-deployer/pkg/usecase"
	"github.com/team11/cloudrun-deployer/pkg/utils/async"
	"github.com/urfave/cli/v3"
)

func cmdServe(loggerCfg *config.Logger) *cli.Command {
	var (
		serverCfg  config.Server
		webhookCfg config.Webhook
		pipeCfg    pipelineConfig
	)

	flags := append(serverCfg.Flags(), webhookCfg.Flags()...)
	flags = append(flags, pipeCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server receiving GitHub push webhooks",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, pipe, err := pipeCfg.build(ctx, loggerCfg)
			if err != nil {
				return err
			}
			defer pipe.close()

			logger := ctxlog.From(ctx)
			logger.Info("Starting deployer server",
				slog.String("addr", serverCfg.Addr),
			)

			// Create use cases
			webhookUC := usecase.NewWebhook(pipe.deploy)
			runUC := usecase.NewRuns(pipe.repo)

			// Create HTTP server with options
			server, err := controller.NewServer(
				ctx,
				webhookUC,
				runUC,
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(webhookCfg.Secret),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverCfg.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			// Runs already dispatched keep going until they finish or the timeout expires
			if err := async.Wait(shutdownCtx); err != nil {
				logger.Warn("Runs still in progress at shutdown", slog.Any("error", err))
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
