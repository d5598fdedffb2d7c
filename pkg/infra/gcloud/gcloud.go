package gcloud

import (
	"context"
	"os"
	"strconv"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
)

// CLI runs gcloud against a run workspace
type CLI struct {
	bin    string
	runner Runner
}

// Option configures CLI
type Option func(*CLI)

// WithBinary sets the gcloud executable path
func WithBinary(path string) Option {
	return func(c *CLI) {
		if path != "" {
			c.bin = path
		}
	}
}

// WithRunner replaces the command runner
func WithRunner(r Runner) Option {
	return func(c *CLI) {
		c.runner = r
	}
}

// New creates a CLI
func New(opts ...Option) *CLI {
	c := &CLI{
		bin:    "gcloud",
		runner: execRunner{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetProjectArgs returns the arguments of the project-set command
func SetProjectArgs(projectID string) []string {
	return []string{"config", "set", "project", projectID}
}

// DeployArgs returns the arguments of the deploy command. Everything except the
// region is literal.
func DeployArgs(region string) []string {
	return []string{
		"run", "deploy", types.ServiceName,
		"--source", ".",
		"--port", strconv.Itoa(types.ServicePort),
		"--allow-unauthenticated",
		"--region", region,
		"--quiet",
	}
}

// SetProject makes projectID the active project of the workspace configuration
func (c *CLI) SetProject(ctx context.Context, ws *model.Workspace, projectID string) (*model.CommandResult, error) {
	if projectID == "" {
		return nil, goerr.New("project ID is empty")
	}

	ctxlog.From(ctx).Info("Setting active project")
	return c.run(ctx, ws, ws.Root, SetProjectArgs(projectID))
}

// Deploy builds the container from the checked-out source and deploys it
func (c *CLI) Deploy(ctx context.Context, ws *model.Workspace, region string) (*model.CommandResult, error) {
	if region == "" {
		return nil, goerr.New("deploy region is empty")
	}
	if ws.SourceDir == "" {
		return nil, goerr.New("source directory is not prepared")
	}

	ctxlog.From(ctx).Info("Deploying service",
		"service", types.ServiceName,
		"region", region,
	)
	return c.run(ctx, ws, ws.SourceDir, DeployArgs(region))
}

func (c *CLI) run(ctx context.Context, ws *model.Workspace, dir string, args []string) (*model.CommandResult, error) {
	result, err := c.runner.Run(ctx, &Command{
		Name: c.bin,
		Args: args,
		Dir:  dir,
		Env:  Environ(ws),
	})
	if err != nil {
		return result, goerr.Wrap(err, "gcloud failed", goerr.V("subcommand", args[0]))
	}
	return result, nil
}

// Environ returns the process environment isolated to the workspace
func Environ(ws *model.Workspace) []string {
	env := os.Environ()
	env = append(env,
		"CLOUDSDK_CONFIG="+ws.ConfigDir,
		"CLOUDSDK_CORE_DISABLE_PROMPTS=1",
	)
	if ws.CredentialFile != "" {
		env = append(env,
			"CLOUDSDK_AUTH_CREDENTIAL_FILE_OVERRIDE="+ws.CredentialFile,
			"GOOGLE_APPLICATION_CREDENTIALS="+ws.CredentialFile,
		)
	}
	return env
}
