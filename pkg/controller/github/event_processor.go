package github

import (
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
)

// NewEvent converts a payload parsed by github.ParseWebHook into a webhook event.
// Payloads other than push and ping become EventTypeUnknown.
func NewEvent(deliveryID, eventType string, payload any, receivedAt time.Time) (*model.WebhookEvent, error) {
	event := &model.WebhookEvent{
		ID:         deliveryID,
		Type:       model.WebhookEventType(eventType),
		ReceivedAt: receivedAt,
	}

	// Use Get*() helper methods for nil-safe field access
	switch e := payload.(type) {
	case *github.PushEvent:
		trigger, err := TriggerFromPush(deliveryID, e)
		if err != nil {
			return nil, err
		}
		event.Type = model.EventTypePush
		event.Repository = e.GetRepo().GetFullName()
		event.Sender = trigger.Actor
		event.Push = trigger

	case *github.PingEvent:
		event.Type = model.EventTypePing
		event.Sender = e.GetSender().GetLogin()

	default:
		event.Type = model.EventTypeUnknown
	}

	return event, nil
}

// TriggerFromPush extracts the deployment trigger from a push event
func TriggerFromPush(deliveryID string, event *github.PushEvent) (*model.Trigger, error) {
	if event.GetRepo() == nil {
		return nil, goerr.New("missing repository information in push event",
			goerr.V("delivery_id", deliveryID))
	}

	repo := event.GetRepo()
	owner := repo.GetOwner().GetLogin()
	if owner == "" {
		owner = repo.GetOwner().GetName()
	}

	actor := event.GetSender().GetLogin()
	if actor == "" {
		actor = event.GetPusher().GetName()
	}

	trigger := &model.Trigger{
		DeliveryID: types.DeliveryID(deliveryID),
		Owner:      owner,
		Repo:       repo.GetName(),
		Ref:        event.GetRef(),
		CommitSHA:  event.GetAfter(),
		Actor:      actor,
		CloneURL:   repo.GetCloneURL(),
		Deleted:    event.GetDeleted(),
	}

	if trigger.Owner == "" || trigger.Repo == "" || trigger.Ref == "" {
		return nil, goerr.New("missing required fields in push event",
			goerr.V("owner", trigger.Owner),
			goerr.V("repo", trigger.Repo),
			goerr.V("ref", trigger.Ref),
		)
	}

	return trigger, nil
}
