package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/gt"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
)

func TestCommitFlags_Trigger(t *testing.T) {
	t.Run("actions environment", func(t *testing.T) {
		f := commitFlags{
			Repository: "team11/game-server",
			Ref:        "refs/heads/main",
			SHA:        "abc123",
			Actor:      "alice",
			ServerURL:  "https://github.com/",
		}
		trigger, err := f.Trigger()
		gt.NoError(t, err)
		gt.Value(t, trigger.Owner).Equal("team11")
		gt.Value(t, trigger.Repo).Equal("game-server")
		gt.Value(t, trigger.CloneURL).Equal("https://github.com/team11/game-server.git")
		gt.True(t, trigger.IsDeployable())
	})

	t.Run("feature branch is valid but not deployable", func(t *testing.T) {
		f := commitFlags{Repository: "team11/game-server", Ref: "refs/heads/feature", SHA: "abc123"}
		trigger, err := f.Trigger()
		gt.NoError(t, err)
		gt.False(t, trigger.IsDeployable())
	})

	testCases := []struct {
		name  string
		flags commitFlags
	}{
		{name: "missing repository", flags: commitFlags{Ref: "refs/heads/main", SHA: "abc"}},
		{name: "repository without owner", flags: commitFlags{Repository: "game-server", Ref: "refs/heads/main", SHA: "abc"}},
		{name: "missing sha", flags: commitFlags{Repository: "team11/game-server", Ref: "refs/heads/main"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.flags.Trigger()
			gt.Error(t, err)
		})
	}
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	run := model.NewRun("run-1", model.Trigger{Owner: "team11", Repo: "game-server", CommitSHA: "abc123"}, now)
	run.Steps[0].Begin(now)
	run.Steps[0].Succeed(now.Add(2 * time.Second))
	run.Steps[1].Begin(now)
	run.Steps[1].Fail(now, "federation input is empty")
	run.Steps[2].Skip()
	run.Steps[3].Skip()
	run.Finish(now, model.FailureAuth, "authentication failed")

	var buf bytes.Buffer
	printSummary(&buf, run)
	out := buf.String()

	gt.True(t, strings.Contains(out, "Run run-1 (team11/game-server@abc123)"))
	gt.True(t, strings.Contains(out, "✔ checkout (2s)"))
	gt.True(t, strings.Contains(out, "✘ authenticate: federation input is empty"))
	gt.True(t, strings.Contains(out, "- deploy (skipped)"))
	gt.True(t, strings.Contains(out, "Deploy failed (auth)"))
}
