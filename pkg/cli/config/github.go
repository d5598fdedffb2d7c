package config

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/interfaces"
	"github.com/team11/cloudrun-deployer/pkg/infra/git"
	"github.com/team11/cloudrun-deployer/pkg/infra/github"
	"github.com/urfave/cli/v3"
)

const (
	CheckoutGit     = "git"
	CheckoutZipball = "zipball"
)

// Webhook holds webhook receiver configuration
type Webhook struct {
	Secret string `masq:"secret"`
}

// Flags returns CLI flags for webhook configuration
func (c *Webhook) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-webhook-secret",
			Usage:       "GitHub webhook secret",
			Required:    true,
			Destination: &c.Secret,
			Sources:     cli.EnvVars("DEPLOYER_GITHUB_WEBHOOK_SECRET"),
		},
	}
}

// GitHub holds GitHub App and checkout configuration
type GitHub struct {
	AppID          int64
	InstallationID int64
	PrivateKey     string `masq:"secret"`
	PrivateKeyFile string
	Checkout       string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID used for private repository checkout",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("DEPLOYER_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("DEPLOYER_GITHUB_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-private-key",
			Usage:       "GitHub App private key (PEM)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("DEPLOYER_GITHUB_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-private-key-file",
			Usage:       "Path to the GitHub App private key",
			Destination: &c.PrivateKeyFile,
			Sources:     cli.EnvVars("DEPLOYER_GITHUB_PRIVATE_KEY_FILE"),
		},
		&cli.StringFlag{
			Name:        "checkout",
			Usage:       "Checkout strategy (git, zipball)",
			Value:       CheckoutGit,
			Destination: &c.Checkout,
			Sources:     cli.EnvVars("DEPLOYER_CHECKOUT"),
		},
	}
}

// Enabled reports whether GitHub App credentials are configured
func (c *GitHub) Enabled() bool {
	return c.AppID != 0 && c.InstallationID != 0
}

func (c *GitHub) privateKey() ([]byte, error) {
	if c.PrivateKey != "" {
		return []byte(c.PrivateKey), nil
	}
	if c.PrivateKeyFile == "" {
		return nil, goerr.New("GitHub App private key is not configured")
	}
	data, err := os.ReadFile(c.PrivateKeyFile)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read GitHub App private key", goerr.V("path", c.PrivateKeyFile))
	}
	return data, nil
}

// NewClient creates the GitHub App client, or nil if the App is not configured
func (c *GitHub) NewClient() (interfaces.GitHubClient, error) {
	if !c.Enabled() {
		return nil, nil
	}
	key, err := c.privateKey()
	if err != nil {
		return nil, err
	}
	return github.NewClient(c.AppID, c.InstallationID, key)
}

// NewSourceFetcher builds the checkout implementation for the configured strategy
func (c *GitHub) NewSourceFetcher() (interfaces.SourceFetcher, error) {
	client, err := c.NewClient()
	if err != nil {
		return nil, err
	}

	switch c.Checkout {
	case CheckoutGit, "":
		var opts []git.Option
		if client != nil {
			opts = append(opts, git.WithToken(func(ctx context.Context) (string, error) {
				return client.InstallationToken(ctx)
			}))
		}
		return git.New(opts...), nil

	case CheckoutZipball:
		if client == nil {
			return nil, goerr.New("zipball checkout requires GitHub App credentials")
		}
		return github.NewZipballSource(client), nil

	default:
		return nil, goerr.New("unknown checkout strategy", goerr.V("checkout", c.Checkout))
	}
}
