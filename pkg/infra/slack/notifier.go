package slack

import (
	"context"
	"fmt"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
)

// Notifier posts run results to a Slack incoming webhook
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// Option configures Notifier
type Option func(*Notifier)

// WithHTTPClient replaces the client used to post messages
func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) {
		n.httpClient = client
	}
}

// New creates a Notifier for the incoming webhook URL
func New(webhookURL string, opts ...Option) *Notifier {
	n := &Notifier{webhookURL: webhookURL}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NotifyRun posts one message describing a finished run
func (n *Notifier) NotifyRun(ctx context.Context, run *model.Run) error {
	msg := BuildMessage(run)

	var err error
	if n.httpClient != nil {
		err = slack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.httpClient, msg)
	} else {
		err = slack.PostWebhookContext(ctx, n.webhookURL, msg)
	}
	if err != nil {
		return goerr.Wrap(err, "failed to post slack message", goerr.V("run_id", run.ID))
	}
	return nil
}

// BuildMessage renders the notification for run
func BuildMessage(run *model.Run) *slack.WebhookMessage {
	color := "good"
	title := fmt.Sprintf("Deploy succeeded: %s", run.Trigger.FullName())
	if run.Status == model.RunFailed {
		color = "danger"
		title = fmt.Sprintf("Deploy failed: %s", run.Trigger.FullName())
	}

	fields := []slack.AttachmentField{
		{Title: "Run", Value: run.ID.String(), Short: true},
		{Title: "Commit", Value: shortSHA(run.Trigger.CommitSHA), Short: true},
	}
	if run.Trigger.Actor != "" {
		fields = append(fields, slack.AttachmentField{Title: "Actor", Value: run.Trigger.Actor, Short: true})
	}
	if step := run.FailedStep(); step != nil {
		fields = append(fields,
			slack.AttachmentField{Title: "Failed step", Value: string(step.Name), Short: true},
			slack.AttachmentField{Title: "Error", Value: step.Error},
		)
	} else if run.FailureKind != "" {
		fields = append(fields, slack.AttachmentField{Title: "Error", Value: run.Error})
	}
	if run.ServiceURI != "" {
		fields = append(fields, slack.AttachmentField{Title: "URL", Value: run.ServiceURI})
	}

	return &slack.WebhookMessage{
		Text: title,
		Attachments: []slack.Attachment{
			{Color: color, Fields: fields},
		},
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
