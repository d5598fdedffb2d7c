package config

import (
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
	"github.com/team11/cloudrun-deployer/pkg/utils/errutil"
	"github.com/urfave/cli/v3"
)

// Sentry holds error reporting configuration
type Sentry struct {
	DSN string `masq:"secret"`
	Env string
}

// Flags returns CLI flags for Sentry
func (c *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN. Errors are only logged if empty.",
			Destination: &c.DSN,
			Sources:     cli.EnvVars("DEPLOYER_SENTRY_DSN"),
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment",
			Value:       "production",
			Destination: &c.Env,
			Sources:     cli.EnvVars("DEPLOYER_SENTRY_ENV"),
		},
	}
}

// Configure initializes error reporting
func (c *Sentry) Configure() error {
	return errutil.InitSentry(c.DSN, c.Env, types.Version)
}
