package config

import (
	"github.com/team11/cloudrun-deployer/pkg/infra/wif"
	"github.com/urfave/cli/v3"
)

// Auth holds identity assertion configuration
type Auth struct {
	IDTokenFile string
}

// Flags returns CLI flags for authentication
func (c *Auth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "id-token-file",
			Usage:       "File holding the OIDC token to exchange. Defaults to the Actions runner OIDC endpoint.",
			Destination: &c.IDTokenFile,
			Sources:     cli.EnvVars("DEPLOYER_ID_TOKEN_FILE"),
		},
	}
}

// NewAuthenticator builds the workload identity federation authenticator
func (c *Auth) NewAuthenticator() *wif.Authenticator {
	if c.IDTokenFile != "" {
		return wif.New(&wif.FileAssertion{Path: c.IDTokenFile})
	}
	return wif.New(wif.NewActionsOIDCFromEnv())
}
