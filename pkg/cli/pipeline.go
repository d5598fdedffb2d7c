package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/cli/config"
	"github.com/team11/cloudrun-deployer/pkg/domain/interfaces"
	"github.com/team11/cloudrun-deployer/pkg/infra/cloudrun"
	"github.com/team11/cloudrun-deployer/pkg/infra/gcloud"
	"github.com/team11/cloudrun-deployer/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// pipelineConfig gathers every setting needed to run the deployment pipeline
type pipelineConfig struct {
	target    config.Target
	auth      config.Auth
	github    config.GitHub
	pipeline  config.Pipeline
	firestore config.Firestore
	storage   config.Storage
	slack     config.Slack
}

func (c *pipelineConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, c.target.Flags()...)
	flags = append(flags, c.auth.Flags()...)
	flags = append(flags, c.github.Flags()...)
	flags = append(flags, c.pipeline.Flags()...)
	flags = append(flags, c.firestore.Flags()...)
	flags = append(flags, c.storage.Flags()...)
	flags = append(flags, c.slack.Flags()...)
	return flags
}

// pipeline is the assembled deploy use case and the storage it writes to
type pipeline struct {
	deploy interfaces.DeployUseCase
	repo   interfaces.RunRepository
	close  func()
}

// build assembles the deploy use case. The returned context carries a logger
// that also masks the target's secret values, on top of secrets registered
// on loggerCfg by the root command.
func (c *pipelineConfig) build(ctx context.Context, loggerCfg *config.Logger) (context.Context, *pipeline, error) {
	target, err := c.target.Load()
	if err != nil {
		return ctx, nil, err
	}

	logger, err := loggerCfg.Configure(append(target.SecretValues(), c.slack.WebhookURL, c.github.PrivateKey)...)
	if err != nil {
		return ctx, nil, err
	}
	slog.SetDefault(logger)
	ctx = ctxlog.With(ctx, logger)

	source, err := c.github.NewSourceFetcher()
	if err != nil {
		return ctx, nil, goerr.Wrap(err, "failed to configure checkout")
	}

	backend, err := c.firestore.NewBackend(ctx)
	if err != nil {
		return ctx, nil, goerr.Wrap(err, "failed to configure run records")
	}
	closers := []func() error{backend.Close}

	opts := []usecase.DeployOption{
		usecase.WithWorkDir(c.pipeline.WorkDir),
		usecase.WithServiceDescriber(cloudrun.New()),
	}

	if c.pipeline.Serialize {
		opts = append(opts, usecase.WithLocker(backend.Locker, c.pipeline.LockTTL))
	}

	logStore, err := c.storage.NewLogStore(ctx)
	if err != nil {
		_ = backend.Close()
		return ctx, nil, goerr.Wrap(err, "failed to configure log archive")
	}
	if logStore != nil {
		opts = append(opts, usecase.WithLogStore(logStore))
		closers = append(closers, logStore.Close)
	}

	if notifier := c.slack.NewNotifier(); notifier != nil {
		opts = append(opts, usecase.WithNotifier(notifier))
	}

	ctxlog.From(ctx).Info("Pipeline configured",
		slog.Any("target", target),
		slog.String("checkout", c.github.Checkout),
		slog.Bool("serialize", c.pipeline.Serialize),
		slog.Bool("firestore", c.firestore.ProjectID != ""),
		slog.Bool("log_archive", logStore != nil),
	)

	deploy := usecase.NewDeploy(
		source,
		c.auth.NewAuthenticator(),
		gcloud.New(gcloud.WithBinary(c.pipeline.GcloudPath)),
		backend.Repository,
		target,
		opts...,
	)

	return ctx, &pipeline{
		deploy: deploy,
		repo:   backend.Repository,
		close: func() {
			for _, fn := range closers {
				if err := fn(); err != nil {
					ctxlog.From(ctx).Warn("Failed to close client", "error", err)
				}
			}
		},
	}, nil
}
