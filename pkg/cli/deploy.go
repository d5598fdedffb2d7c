package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/cli/config"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// commitFlags identify the commit to deploy. Defaults come from the Actions
// runner environment.
type commitFlags struct {
	Repository string
	Ref        string
	SHA        string
	Actor      string
	ServerURL  string
	DeliveryID string
}

func (c *commitFlags) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository",
			Usage:       "Repository to deploy (owner/name)",
			Destination: &c.Repository,
			Sources:     cli.EnvVars("GITHUB_REPOSITORY"),
		},
		&cli.StringFlag{
			Name:        "ref",
			Usage:       "Pushed ref",
			Value:       "refs/heads/" + types.DeployBranch,
			Destination: &c.Ref,
			Sources:     cli.EnvVars("GITHUB_REF"),
		},
		&cli.StringFlag{
			Name:        "sha",
			Usage:       "Commit SHA to deploy",
			Destination: &c.SHA,
			Sources:     cli.EnvVars("GITHUB_SHA"),
		},
		&cli.StringFlag{
			Name:        "actor",
			Usage:       "User who triggered the deploy",
			Destination: &c.Actor,
			Sources:     cli.EnvVars("GITHUB_ACTOR"),
		},
		&cli.StringFlag{
			Name:        "server-url",
			Usage:       "GitHub server URL used to build the clone URL",
			Value:       "https://github.com",
			Destination: &c.ServerURL,
			Sources:     cli.EnvVars("GITHUB_SERVER_URL"),
		},
		&cli.StringFlag{
			Name:        "delivery-id",
			Usage:       "Idempotency key. A second deploy with the same key is skipped.",
			Destination: &c.DeliveryID,
			Sources:     cli.EnvVars("DEPLOYER_DELIVERY_ID"),
		},
	}
}

// Trigger builds the trigger from the flags
func (c *commitFlags) Trigger() (*model.Trigger, error) {
	owner, repo, ok := strings.Cut(c.Repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, goerr.New("repository must be owner/name", goerr.V("repository", c.Repository))
	}

	trigger := &model.Trigger{
		DeliveryID: types.DeliveryID(c.DeliveryID),
		Owner:      owner,
		Repo:       repo,
		Ref:        c.Ref,
		CommitSHA:  c.SHA,
		Actor:      c.Actor,
		CloneURL:   strings.TrimSuffix(c.ServerURL, "/") + "/" + c.Repository + ".git",
	}
	if err := trigger.Validate(); err != nil {
		return nil, err
	}
	return trigger, nil
}

func cmdDeploy(loggerCfg *config.Logger) *cli.Command {
	var (
		commit  commitFlags
		pipeCfg pipelineConfig
	)

	return &cli.Command{
		Name:    "deploy",
		Aliases: []string{"d"},
		Usage:   "Run the deployment pipeline once for a commit",
		Flags:   append(commit.Flags(), pipeCfg.Flags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			trigger, err := commit.Trigger()
			if err != nil {
				return err
			}

			ctx, pipe, err := pipeCfg.build(ctx, loggerCfg)
			if err != nil {
				return err
			}
			defer pipe.close()

			if !trigger.IsDeployable() {
				ctxlog.From(ctx).Info("Ref does not trigger a deployment", "ref", trigger.Ref)
				return nil
			}

			run, runErr := pipe.deploy.Deploy(ctx, trigger)
			if run == nil && runErr == nil {
				ctxlog.From(ctx).Info("Deploy already handled", "delivery_id", trigger.DeliveryID)
				return nil
			}
			if run != nil {
				printSummary(os.Stderr, run)
			}
			return runErr
		},
	}
}

// printSummary writes a human-readable report of a finished run
func printSummary(w io.Writer, run *model.Run) {
	bold := color.New(color.Bold)
	ok := color.New(color.FgGreen)
	ng := color.New(color.FgRed)
	skip := color.New(color.FgHiBlack)

	_, _ = bold.Fprintf(w, "Run %s (%s@%s)\n", run.ID, run.Trigger.FullName(), run.Trigger.CommitSHA)
	for _, step := range run.Steps {
		switch step.Status {
		case model.StepSucceeded:
			_, _ = ok.Fprintf(w, "  ✔ %s", step.Name)
			fmt.Fprintf(w, " (%s)\n", step.FinishedAt.Sub(step.StartedAt).Round(time.Millisecond))
		case model.StepFailed:
			_, _ = ng.Fprintf(w, "  ✘ %s: %s\n", step.Name, step.Error)
		default:
			_, _ = skip.Fprintf(w, "  - %s (%s)\n", step.Name, step.Status)
		}
		if step.LogURI != "" {
			fmt.Fprintf(w, "      log: %s\n", step.LogURI)
		}
	}

	switch run.Status {
	case model.RunSucceeded:
		_, _ = ok.Fprintln(w, "Deploy succeeded")
		if run.ServiceURI != "" {
			fmt.Fprintf(w, "  url: %s\n", run.ServiceURI)
		}
		if run.Revision != "" {
			fmt.Fprintf(w, "  revision: %s\n", run.Revision)
		}
	default:
		_, _ = ng.Fprintf(w, "Deploy failed (%s)\n", run.FailureKind)
	}
}
