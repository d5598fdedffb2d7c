package model

import "github.com/m-mizutani/goerr/v2"

// FailureKind classifies why a run failed
type FailureKind string

const (
	FailureSource  FailureKind = "source"
	FailureAuth    FailureKind = "auth"
	FailureProject FailureKind = "project"
	FailureDeploy  FailureKind = "deploy"
	FailureLocked  FailureKind = "locked"
)

var (
	ErrTagSource  = goerr.NewTag("source")
	ErrTagAuth    = goerr.NewTag("auth")
	ErrTagProject = goerr.NewTag("project")
	ErrTagDeploy  = goerr.NewTag("deploy")
	ErrTagLocked  = goerr.NewTag("locked")
)

// StepFailure maps each pipeline step to the failure kind it produces
var StepFailure = map[StepName]FailureKind{
	StepCheckout:     FailureSource,
	StepAuthenticate: FailureAuth,
	StepSetProject:   FailureProject,
	StepDeploy:       FailureDeploy,
}

// WrapStepError wraps err with the tag of the step it came from
func WrapStepError(name StepName, err error) error {
	switch name {
	case StepCheckout:
		return goerr.Wrap(err, "checkout failed", goerr.T(ErrTagSource))
	case StepAuthenticate:
		return goerr.Wrap(err, "authentication failed", goerr.T(ErrTagAuth))
	case StepSetProject:
		return goerr.Wrap(err, "set project failed", goerr.T(ErrTagProject))
	case StepDeploy:
		return goerr.Wrap(err, "deploy failed", goerr.T(ErrTagDeploy))
	}
	return goerr.Wrap(err, "step failed", goerr.V("step", name))
}

// KindOf returns the failure kind carried by err's tags, or empty string
func KindOf(err error) FailureKind {
	switch {
	case goerr.HasTag(err, ErrTagLocked):
		return FailureLocked
	case goerr.HasTag(err, ErrTagSource):
		return FailureSource
	case goerr.HasTag(err, ErrTagAuth):
		return FailureAuth
	case goerr.HasTag(err, ErrTagProject):
		return FailureProject
	case goerr.HasTag(err, ErrTagDeploy):
		return FailureDeploy
	}
	return ""
}
