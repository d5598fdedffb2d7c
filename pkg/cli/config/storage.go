package config

import (
	"context"

	"github.com/team11/cloudrun-deployer/pkg/infra/storage"
	"github.com/urfave/cli/v3"
)

// Storage holds step log archive configuration
type Storage struct {
	Bucket string
	Prefix string
}

// Flags returns CLI flags for the log archive
func (c *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-bucket",
			Usage:       "GCS bucket for step logs. Logs are not archived if empty.",
			Destination: &c.Bucket,
			Sources:     cli.EnvVars("DEPLOYER_LOG_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "log-prefix",
			Usage:       "Object name prefix in the log bucket",
			Destination: &c.Prefix,
			Sources:     cli.EnvVars("DEPLOYER_LOG_PREFIX"),
		},
	}
}

// NewLogStore returns the GCS log store, or nil if no bucket is set
func (c *Storage) NewLogStore(ctx context.Context) (*storage.LogStore, error) {
	if c.Bucket == "" {
		return nil, nil
	}
	return storage.New(ctx, c.Bucket, c.Prefix)
}
