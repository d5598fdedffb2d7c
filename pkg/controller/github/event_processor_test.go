package github_test

import (
	"testing"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/gt"

	githubcontroller "github.com/team11/cloudrun-deployer/pkg/controller/github"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
)

func newPushEvent(ref, after string) *github.PushEvent {
	return &github.PushEvent{
		Ref:   github.Ptr(ref),
		After: github.Ptr(after),
		Repo: &github.PushEventRepository{
			Name:     github.Ptr("game-server"),
			FullName: github.Ptr("team11/game-server"),
			CloneURL: github.Ptr("https://github.com/team11/game-server.git"),
			Owner:    &github.User{Login: github.Ptr("team11")},
		},
		Sender: &github.User{Login: github.Ptr("alice")},
	}
}

func TestTriggerFromPush(t *testing.T) {
	trigger, err := githubcontroller.TriggerFromPush("delivery-1", newPushEvent("refs/heads/main", "abc123"))
	gt.NoError(t, err)

	gt.Value(t, *trigger).Equal(model.Trigger{
		DeliveryID: types.DeliveryID("delivery-1"),
		Owner:      "team11",
		Repo:       "game-server",
		Ref:        "refs/heads/main",
		CommitSHA:  "abc123",
		Actor:      "alice",
		CloneURL:   "https://github.com/team11/game-server.git",
	})
	gt.True(t, trigger.IsDeployable())
}

func TestTriggerFromPush_Fallbacks(t *testing.T) {
	event := newPushEvent("refs/heads/main", "abc123")
	event.Repo.Owner = &github.User{Name: github.Ptr("team11")}
	event.Sender = nil
	event.Pusher = &github.CommitAuthor{Name: github.Ptr("bob")}

	trigger, err := githubcontroller.TriggerFromPush("delivery-1", event)
	gt.NoError(t, err)
	gt.Value(t, trigger.Owner).Equal("team11")
	gt.Value(t, trigger.Actor).Equal("bob")
}

func TestTriggerFromPush_Invalid(t *testing.T) {
	t.Run("missing repository", func(t *testing.T) {
		event := newPushEvent("refs/heads/main", "abc123")
		event.Repo = nil
		_, err := githubcontroller.TriggerFromPush("delivery-1", event)
		gt.Error(t, err)
	})

	t.Run("missing ref", func(t *testing.T) {
		event := newPushEvent("", "abc123")
		_, err := githubcontroller.TriggerFromPush("delivery-1", event)
		gt.Error(t, err)
	})
}

func TestNewEvent(t *testing.T) {
	now := time.Now()

	t.Run("push", func(t *testing.T) {
		event, err := githubcontroller.NewEvent("delivery-1", "push", newPushEvent("refs/heads/main", "abc123"), now)
		gt.NoError(t, err)
		gt.Value(t, event.Type).Equal(model.EventTypePush)
		gt.Value(t, event.Repository).Equal("team11/game-server")
		gt.Value(t, event.Sender).Equal("alice")
		gt.Value(t, event.Push).NotNil()
		gt.True(t, event.IsSupportedEvent())
	})

	t.Run("branch deletion is parsed but not deployable", func(t *testing.T) {
		push := newPushEvent("refs/heads/main", "0000000000000000000000000000000000000000")
		push.Deleted = github.Ptr(true)
		event, err := githubcontroller.NewEvent("delivery-2", "push", push, now)
		gt.NoError(t, err)
		gt.True(t, event.Push.Deleted)
		gt.False(t, event.Push.IsDeployable())
	})

	t.Run("ping", func(t *testing.T) {
		event, err := githubcontroller.NewEvent("delivery-3", "ping", &github.PingEvent{Zen: github.Ptr("Keep it logically awesome.")}, now)
		gt.NoError(t, err)
		gt.Value(t, event.Type).Equal(model.EventTypePing)
		gt.False(t, event.IsSupportedEvent())
	})

	t.Run("other events are unknown", func(t *testing.T) {
		event, err := githubcontroller.NewEvent("delivery-4", "issues", &github.IssuesEvent{Action: github.Ptr("opened")}, now)
		gt.NoError(t, err)
		gt.Value(t, event.Type).Equal(model.EventTypeUnknown)
		gt.False(t, event.IsSupportedEvent())
	})
}
