package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/team11/cloudrun-deployer/pkg/domain/interfaces"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/utils/async"
)

type webhookUseCase struct {
	deploy interfaces.DeployUseCase
}

// NewWebhook creates a new instance of WebhookUseCase
func NewWebhook(deploy interfaces.DeployUseCase) interfaces.WebhookUseCase {
	return &webhookUseCase{deploy: deploy}
}

// ProcessEvent starts a run for a push to the deploy branch. The run executes
// asynchronously; the returned run is a snapshot of its queued state.
func (uc *webhookUseCase) ProcessEvent(ctx context.Context, event *model.WebhookEvent) (*model.Run, error) {
	logger := ctxlog.From(ctx)

	logger.Info("Processing webhook event",
		"id", event.ID,
		"type", event.Type,
		"repository", event.Repository,
		"sender", event.Sender,
		"supported", event.IsSupportedEvent(),
	)

	if !event.IsSupportedEvent() {
		logger.Warn("Unsupported event received", "type", event.Type)
		return nil, nil
	}

	trigger := event.Push
	if !trigger.IsDeployable() {
		logger.Info("Push does not trigger a deployment",
			"ref", trigger.Ref,
			"deleted", trigger.Deleted,
			"commit_sha", trigger.CommitSHA,
		)
		return nil, nil
	}

	run, err := uc.deploy.Prepare(ctx, trigger)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}

	snapshot := run.Clone()
	async.Dispatch(ctx, func(ctx context.Context) error {
		return uc.deploy.Execute(ctx, run)
	})

	return snapshot, nil
}
