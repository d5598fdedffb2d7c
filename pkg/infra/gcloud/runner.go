package gcloud

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
)

// Command is one invocation of an external program
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// Runner executes commands. The default implementation uses os/exec.
type Runner interface {
	Run(ctx context.Context, cmd *Command) (*model.CommandResult, error)
}

type execRunner struct{}

// Run runs the command and captures combined output. A non-zero exit is an error
// and the result is still returned.
func (execRunner) Run(ctx context.Context, cmd *Command) (*model.CommandResult, error) {
	var out bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.Stdout = &out
	c.Stderr = &out

	start := time.Now()
	err := c.Run()
	result := &model.CommandResult{
		Args:     append([]string{cmd.Name}, cmd.Args...),
		Output:   out.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		return result, goerr.Wrap(err, "command failed",
			goerr.V("command", cmd.Name),
			goerr.V("exit_code", result.ExitCode),
		)
	}

	return result, nil
}
