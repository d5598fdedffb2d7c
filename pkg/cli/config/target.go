package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

// Target holds the deployment target. Values left empty are read from File.
type Target struct {
	ServiceAccount           string `masq:"secret"`
	ProjectID                string `masq:"secret"`
	WorkloadIdentityProvider string `masq:"secret"`
	Region                   string
	File                     string
}

// Flags returns CLI flags for the deployment target. The secondary env names
// match the secrets and variables of the Actions workflow.
func (c *Target) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "service-account",
			Usage:       "Service account email to impersonate",
			Destination: &c.ServiceAccount,
			Sources:     cli.EnvVars("DEPLOYER_SERVICE_ACCOUNT", "WIF_SERVICE_ACCOUNT"),
		},
		&cli.StringFlag{
			Name:        "project-id",
			Usage:       "Google Cloud project to deploy into",
			Destination: &c.ProjectID,
			Sources:     cli.EnvVars("DEPLOYER_PROJECT_ID", "WIF_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "workload-identity-provider",
			Usage:       "Full resource name of the workload identity provider",
			Destination: &c.WorkloadIdentityProvider,
			Sources:     cli.EnvVars("DEPLOYER_WORKLOAD_IDENTITY_PROVIDER", "WIF_PROVIDER"),
		},
		&cli.StringFlag{
			Name:        "region",
			Usage:       "Cloud Run region",
			Destination: &c.Region,
			Sources:     cli.EnvVars("DEPLOYER_REGION", "REGION"),
		},
		&cli.StringFlag{
			Name:        "target-file",
			Usage:       "TOML file with default target values",
			Destination: &c.File,
			Sources:     cli.EnvVars("DEPLOYER_TARGET_FILE"),
		},
	}
}

// Load returns the target. Flags and env take precedence over the file.
func (c *Target) Load() (model.Target, error) {
	target := model.Target{
		ServiceAccount:           c.ServiceAccount,
		ProjectID:                c.ProjectID,
		WorkloadIdentityProvider: c.WorkloadIdentityProvider,
		Region:                   c.Region,
	}

	if c.File == "" {
		return target, nil
	}

	data, err := os.ReadFile(c.File)
	if err != nil {
		return model.Target{}, goerr.Wrap(err, "failed to read target file", goerr.V("path", c.File))
	}

	var base model.Target
	if err := toml.Unmarshal(data, &base); err != nil {
		return model.Target{}, goerr.Wrap(err, "failed to parse target file", goerr.V("path", c.File))
	}

	target.Merge(base)
	return target, nil
}
