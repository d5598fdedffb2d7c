package model

import (
	"slices"
	"time"

	"github.com/team11/cloudrun-deployer/pkg/domain/types"
)

// StepName identifies a pipeline step
type StepName string

const (
	StepCheckout     StepName = "checkout"
	StepAuthenticate StepName = "authenticate"
	StepSetProject   StepName = "set_project"
	StepDeploy       StepName = "deploy"
)

// PipelineSteps is the fixed execution order of every run
var PipelineSteps = []StepName{
	StepCheckout,
	StepAuthenticate,
	StepSetProject,
	StepDeploy,
}

// StepStatus is the state of a single step
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// RunStatus is the state of a whole run
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// StepResult records one step of a run
type StepResult struct {
	Name       StepName   `json:"name" firestore:"name"`
	Status     StepStatus `json:"status" firestore:"status"`
	StartedAt  time.Time  `json:"started_at,omitzero" firestore:"started_at"`
	FinishedAt time.Time  `json:"finished_at,omitzero" firestore:"finished_at"`
	Error      string     `json:"error,omitempty" firestore:"error"`
	LogURI     string     `json:"log_uri,omitempty" firestore:"log_uri"`
}

// Run is one execution of the deployment pipeline for one push
type Run struct {
	ID          types.RunID  `json:"id" firestore:"id"`
	Trigger     Trigger      `json:"trigger" firestore:"trigger"`
	Status      RunStatus    `json:"status" firestore:"status"`
	Steps       []StepResult `json:"steps" firestore:"steps"`
	FailureKind FailureKind  `json:"failure_kind,omitempty" firestore:"failure_kind"`
	Error       string       `json:"error,omitempty" firestore:"error"`
	ServiceURI  string       `json:"service_uri,omitempty" firestore:"service_uri"`
	Revision    string       `json:"revision,omitempty" firestore:"revision"`
	CreatedAt   time.Time    `json:"created_at" firestore:"created_at"`
	StartedAt   time.Time    `json:"started_at,omitzero" firestore:"started_at"`
	FinishedAt  time.Time    `json:"finished_at,omitzero" firestore:"finished_at"`
}

// NewRun creates a queued run with every pipeline step pending
func NewRun(id types.RunID, trigger Trigger, now time.Time) *Run {
	steps := make([]StepResult, len(PipelineSteps))
	for i, name := range PipelineSteps {
		steps[i] = StepResult{Name: name, Status: StepPending}
	}

	return &Run{
		ID:        id,
		Trigger:   trigger,
		Status:    RunQueued,
		Steps:     steps,
		CreatedAt: now,
	}
}

// Step returns the step record by name, or nil
func (r *Run) Step(name StepName) *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// Start marks the run as running
func (r *Run) Start(now time.Time) {
	r.Status = RunRunning
	r.StartedAt = now
}

// Finish sets the terminal status. A nil err means success.
func (r *Run) Finish(now time.Time, kind FailureKind, errMsg string) {
	r.FinishedAt = now
	if kind == "" && errMsg == "" {
		r.Status = RunSucceeded
		return
	}
	r.Status = RunFailed
	r.FailureKind = kind
	r.Error = errMsg
}

// FailedStep returns the first failed step, or nil
func (r *Run) FailedStep() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Status == StepFailed {
			return &r.Steps[i]
		}
	}
	return nil
}

// IsFinished reports whether the run reached a terminal status
func (r *Run) IsFinished() bool {
	return r.Status == RunSucceeded || r.Status == RunFailed
}

// Clone returns a deep copy
func (r *Run) Clone() *Run {
	c := *r
	c.Steps = slices.Clone(r.Steps)
	return &c
}

// Begin marks the step as running
func (s *StepResult) Begin(now time.Time) {
	s.Status = StepRunning
	s.StartedAt = now
}

// Succeed marks the step as succeeded
func (s *StepResult) Succeed(now time.Time) {
	s.Status = StepSucceeded
	s.FinishedAt = now
}

// Fail marks the step as failed with a message
func (s *StepResult) Fail(now time.Time, msg string) {
	s.Status = StepFailed
	s.FinishedAt = now
	s.Error = msg
}

// Skip marks the step as not executed
func (s *StepResult) Skip() {
	s.Status = StepSkipped
}
