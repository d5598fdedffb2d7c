package config

import (
	"time"

	"github.com/urfave/cli/v3"
)

// Pipeline holds run execution settings
type Pipeline struct {
	Serialize  bool
	LockTTL    time.Duration
	WorkDir    string
	GcloudPath string
}

// Flags returns CLI flags for pipeline execution
func (c *Pipeline) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "serialize",
			Usage:       "Allow only one run per service at a time",
			Destination: &c.Serialize,
			Sources:     cli.EnvVars("DEPLOYER_SERIALIZE"),
		},
		&cli.DurationFlag{
			Name:        "lock-ttl",
			Usage:       "Expiry of the deploy lock taken with --serialize",
			Value:       30 * time.Minute,
			Destination: &c.LockTTL,
			Sources:     cli.EnvVars("DEPLOYER_LOCK_TTL"),
		},
		&cli.StringFlag{
			Name:        "work-dir",
			Usage:       "Parent directory of run workspaces. Defaults to the system temp dir.",
			Destination: &c.WorkDir,
			Sources:     cli.EnvVars("DEPLOYER_WORK_DIR"),
		},
		&cli.StringFlag{
			Name:        "gcloud-path",
			Usage:       "Path to the gcloud executable",
			Value:       "gcloud",
			Destination: &c.GcloudPath,
			Sources:     cli.EnvVars("DEPLOYER_GCLOUD_PATH"),
		},
	}
}
