package interfaces

import (
	"context"
	"time"

	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
)

// SourceFetcher retrieves repository content at the triggering commit into dir
type SourceFetcher interface {
	Fetch(ctx context.Context, trigger *model.Trigger, dir string) (*model.Checkout, error)
}

// Authenticator exchanges a federated identity assertion for a short-lived credential
type Authenticator interface {
	Authenticate(ctx context.Context, target *model.Target, ws *model.Workspace) (*model.Credential, error)
}

// CloudCLI drives the cloud command-line interface
type CloudCLI interface {
	SetProject(ctx context.Context, ws *model.Workspace, projectID string) (*model.CommandResult, error)
	Deploy(ctx context.Context, ws *model.Workspace, region string) (*model.CommandResult, error)
}

// ServiceDescriber looks up the deployed service
type ServiceDescriber interface {
	Describe(ctx context.Context, cred *model.Credential, projectID, region, service string) (*model.ServiceInfo, error)
}

// RunRepository stores run records
type RunRepository interface {
	PutRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id types.RunID) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*model.Run, error)

	// ClaimDelivery atomically records that a webhook delivery started runID.
	// It returns false if the delivery was claimed before.
	ClaimDelivery(ctx context.Context, id types.DeliveryID, runID types.RunID) (bool, error)
	// ReleaseDelivery removes the claim if it is still held by runID.
	ReleaseDelivery(ctx context.Context, id types.DeliveryID, runID types.RunID) error
}

// Locker provides mutual exclusion between runs deploying the same service
type Locker interface {
	Acquire(ctx context.Context, key string, holder types.RunID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string, holder types.RunID) error
}

// LogStore archives step output
type LogStore interface {
	Put(ctx context.Context, runID types.RunID, step model.StepName, content []byte) (string, error)
}

// Notifier reports finished runs
type Notifier interface {
	NotifyRun(ctx context.Context, run *model.Run) error
}
