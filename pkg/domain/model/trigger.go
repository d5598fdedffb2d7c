package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
)

const branchRefPrefix = "refs/heads/"

// zeroSHA is sent as the "after" commit when a branch is deleted
const zeroSHA = "0000000000000000000000000000000000000000"

// Trigger represents a push that may start a deployment run
type Trigger struct {
	DeliveryID types.DeliveryID `json:"delivery_id" firestore:"delivery_id"`
	Owner      string           `json:"owner" firestore:"owner"`           // Repository owner
	Repo       string           `json:"repo" firestore:"repo"`             // Repository name
	Ref        string           `json:"ref" firestore:"ref"`               // Full git ref, e.g. refs/heads/main
	CommitSHA  string           `json:"commit_sha" firestore:"commit_sha"` // Commit to deploy
	Actor      string           `json:"actor" firestore:"actor"`           // User who pushed
	CloneURL   string           `json:"clone_url" firestore:"clone_url"`
	Deleted    bool             `json:"deleted,omitempty" firestore:"deleted"`
}

// Branch returns the branch name of the ref, or empty string for non-branch refs
func (t *Trigger) Branch() string {
	if !strings.HasPrefix(t.Ref, branchRefPrefix) {
		return ""
	}
	return strings.TrimPrefix(t.Ref, branchRefPrefix)
}

// FullName returns owner/repo
func (t *Trigger) FullName() string {
	return t.Owner + "/" + t.Repo
}

// IsDeployable reports whether the push should start a run
func (t *Trigger) IsDeployable() bool {
	if t.Deleted || t.CommitSHA == "" || t.CommitSHA == zeroSHA {
		return false
	}
	return t.Branch() == types.DeployBranch
}

// Validate checks that the trigger carries enough information to check out source
func (t *Trigger) Validate() error {
	if t.Owner == "" || t.Repo == "" {
		return goerr.New("repository is not specified", goerr.V("owner", t.Owner), goerr.V("repo", t.Repo))
	}
	if t.CommitSHA == "" {
		return goerr.New("commit SHA is not specified", goerr.V("repo", t.FullName()))
	}
	if t.Ref == "" {
		return goerr.New("ref is not specified", goerr.V("repo", t.FullName()))
	}
	return nil
}
