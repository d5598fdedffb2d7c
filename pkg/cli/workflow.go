package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/workflow"
	"github.com/urfave/cli/v3"
)

func cmdWorkflow() *cli.Command {
	var (
		output string
		opts   = workflow.DefaultOptions()
	)

	return &cli.Command{
		Name:  "workflow",
		Usage: "Render the pipeline as a GitHub Actions workflow",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "Write the workflow to this file instead of stdout",
				Destination: &output,
			},
			&cli.StringFlag{
				Name:        "name",
				Usage:       "Workflow name",
				Value:       opts.Name,
				Destination: &opts.Name,
			},
			&cli.StringFlag{
				Name:        "runs-on",
				Usage:       "Runner label",
				Value:       opts.RunsOn,
				Destination: &opts.RunsOn,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			out, err := workflow.RenderAndLint(opts)
			if err != nil {
				return err
			}

			if output == "" {
				_, err := os.Stdout.Write(out)
				return err
			}

			if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				return goerr.Wrap(err, "failed to create output directory", goerr.V("path", output))
			}
			if err := os.WriteFile(output, out, 0644); err != nil {
				return goerr.Wrap(err, "failed to write workflow", goerr.V("path", output))
			}

			ctxlog.From(ctx).Info("Workflow written", "path", output)
			return nil
		},
	}
}
