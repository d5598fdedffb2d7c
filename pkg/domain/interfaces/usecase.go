package interfaces

import (
	"context"

	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
)

// WebhookUseCase defines the interface for webhook event processing
type WebhookUseCase interface {
	// ProcessEvent processes a webhook event. It returns the started run, or nil when
	// the event does not start one.
	ProcessEvent(ctx context.Context, event *model.WebhookEvent) (*model.Run, error)
}

// DeployUseCase runs the deployment pipeline
type DeployUseCase interface {
	// Prepare records a queued run for the trigger. It returns nil when the
	// delivery was already handled.
	Prepare(ctx context.Context, trigger *model.Trigger) (*model.Run, error)

	// Execute runs checkout, authenticate, set-project and deploy in order and
	// stops at the first failure.
	Execute(ctx context.Context, run *model.Run) error

	// Deploy is Prepare followed by Execute
	Deploy(ctx context.Context, trigger *model.Trigger) (*model.Run, error)
}

// RunUseCase exposes run records
type RunUseCase interface {
	GetRun(ctx context.Context, id types.RunID) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*model.Run, error)
}
