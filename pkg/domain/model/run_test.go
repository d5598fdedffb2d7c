package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
)

func TestNewRun(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := model.NewRun("run-1", model.Trigger{CommitSHA: "abc"}, now)

	gt.Value(t, run.Status).Equal(model.RunQueued)
	gt.Value(t, run.CreatedAt).Equal(now)
	gt.A(t, run.Steps).Length(4)

	want := []model.StepName{model.StepCheckout, model.StepAuthenticate, model.StepSetProject, model.StepDeploy}
	for i, step := range run.Steps {
		gt.Value(t, step.Name).Equal(want[i])
		gt.Value(t, step.Status).Equal(model.StepPending)
	}
}

func TestRun_Lifecycle(t *testing.T) {
	now := time.Now()
	run := model.NewRun("run-1", model.Trigger{}, now)

	run.Start(now)
	gt.Value(t, run.Status).Equal(model.RunRunning)
	gt.False(t, run.IsFinished())

	run.Step(model.StepCheckout).Begin(now)
	run.Step(model.StepCheckout).Fail(now, "boom")
	run.Step(model.StepAuthenticate).Skip()
	run.Finish(now, model.FailureSource, "boom")

	gt.Value(t, run.Status).Equal(model.RunFailed)
	gt.Value(t, run.FailureKind).Equal(model.FailureSource)
	gt.Value(t, run.FailedStep().Name).Equal(model.StepCheckout)
	gt.True(t, run.IsFinished())
}

func TestRun_FinishSuccess(t *testing.T) {
	run := model.NewRun("run-1", model.Trigger{}, time.Now())
	run.Finish(time.Now(), "", "")
	gt.Value(t, run.Status).Equal(model.RunSucceeded)
	gt.Value(t, run.FailedStep()).Nil()
}

func TestRun_Clone(t *testing.T) {
	run := model.NewRun("run-1", model.Trigger{}, time.Now())
	c := run.Clone()
	c.Steps[0].Status = model.StepFailed

	gt.Value(t, run.Steps[0].Status).Equal(model.StepPending)
}

func TestWrapStepError(t *testing.T) {
	base := errors.New("exit status 1")
	for step, kind := range model.StepFailure {
		err := model.WrapStepError(step, base)
		gt.Value(t, model.KindOf(err)).Equal(kind)
		gt.True(t, errors.Is(err, base))
	}

	gt.Value(t, model.KindOf(base)).Equal(model.FailureKind(""))
}
