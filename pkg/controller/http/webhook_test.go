package http_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	controller "github.com/team11/cloudrun-deployer/pkg/controller/http"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
)

const testSecret = "test-secret"

// mockWebhookUseCase starts a run for every deployable push
type mockWebhookUseCase struct {
	events []*model.WebhookEvent
	err    error
}

func (m *mockWebhookUseCase) ProcessEvent(ctx context.Context, event *model.WebhookEvent) (*model.Run, error) {
	m.events = append(m.events, event)
	if m.err != nil {
		return nil, m.err
	}
	if !event.IsSupportedEvent() || !event.Push.IsDeployable() {
		return nil, nil
	}
	return model.NewRun(types.RunID("run-1"), *event.Push, time.Now()), nil
}

// generateSignature generates HMAC-SHA256 signature for testing
func generateSignature(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func pushPayload(ref string) []byte {
	payload, _ := json.Marshal(map[string]any{
		"ref":     ref,
		"before":  "1111111111111111111111111111111111111111",
		"after":   "2222222222222222222222222222222222222222",
		"deleted": false,
		"repository": map[string]any{
			"name":      "game-server",
			"full_name": "team11/game-server",
			"clone_url": "https://github.com/team11/game-server.git",
			"owner":     map[string]any{"login": "team11"},
		},
		"sender": map[string]any{"login": "alice"},
	})
	return payload
}

func newWebhookRequest(eventType string, payload []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/hooks/github", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-GitHub-Delivery", "test-delivery")
	req.Header.Set("X-Hub-Signature-256", signature)
	return req
}

func TestWebhookHandler_SignatureVerification(t *testing.T) {
	payload := pushPayload("refs/heads/main")

	tests := []struct {
		name           string
		secret         string
		signature      string
		wantStatusCode int
	}{
		{
			name:           "Valid signature",
			secret:         testSecret,
			signature:      generateSignature(testSecret, payload),
			wantStatusCode: http.StatusAccepted,
		},
		{
			name:           "Invalid signature",
			secret:         testSecret,
			signature:      "sha256=invalid",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "Missing signature",
			secret:         testSecret,
			signature:      "",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "Signed with another secret",
			secret:         testSecret,
			signature:      generateSignature("other-secret", payload),
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "Server without secret rejects everything",
			secret:         "",
			signature:      generateSignature("", payload),
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockWebhookUseCase{}
			handler := controller.NewWebhookHandler(tt.secret, uc)

			w := httptest.NewRecorder()
			handler.Handle(w, newWebhookRequest("push", payload, tt.signature))

			gt.Value(t, w.Code).Equal(tt.wantStatusCode)
			if tt.wantStatusCode == http.StatusUnauthorized {
				gt.A(t, uc.events).Length(0)
			}
		})
	}
}

func TestWebhookHandler_Events(t *testing.T) {
	tests := []struct {
		name           string
		eventType      string
		payload        []byte
		wantStatusCode int
		wantStatus     string
		wantRunID      string
	}{
		{
			name:           "Push to main starts a run",
			eventType:      "push",
			payload:        pushPayload("refs/heads/main"),
			wantStatusCode: http.StatusAccepted,
			wantStatus:     "accepted",
			wantRunID:      "run-1",
		},
		{
			name:           "Push to feature branch is ignored",
			eventType:      "push",
			payload:        pushPayload("refs/heads/feature"),
			wantStatusCode: http.StatusOK,
			wantStatus:     "ignored",
		},
		{
			name:           "Ping is ignored",
			eventType:      "ping",
			payload:        []byte(`{"zen":"Design for failure.","hook_id":1}`),
			wantStatusCode: http.StatusOK,
			wantStatus:     "ignored",
		},
		{
			name:           "Other event is ignored",
			eventType:      "issues",
			payload:        []byte(`{"action":"opened","issue":{"number":1}}`),
			wantStatusCode: http.StatusOK,
			wantStatus:     "ignored",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockWebhookUseCase{}
			handler := controller.NewWebhookHandler(testSecret, uc)

			w := httptest.NewRecorder()
			handler.Handle(w, newWebhookRequest(tt.eventType, tt.payload, generateSignature(testSecret, tt.payload)))

			gt.Value(t, w.Code).Equal(tt.wantStatusCode)

			var resp map[string]string
			gt.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			gt.Value(t, resp["status"]).Equal(tt.wantStatus)
			gt.Value(t, resp["run_id"]).Equal(tt.wantRunID)
		})
	}
}

func TestWebhookHandler_PushEventFields(t *testing.T) {
	uc := &mockWebhookUseCase{}
	handler := controller.NewWebhookHandler(testSecret, uc)
	payload := pushPayload("refs/heads/main")

	w := httptest.NewRecorder()
	handler.Handle(w, newWebhookRequest("push", payload, generateSignature(testSecret, payload)))

	gt.A(t, uc.events).Length(1)
	event := uc.events[0]
	gt.Value(t, event.ID).Equal("test-delivery")
	gt.Value(t, event.Type).Equal(model.EventTypePush)
	gt.Value(t, event.Push.DeliveryID).Equal(types.DeliveryID("test-delivery"))
	gt.Value(t, event.Push.CommitSHA).Equal("2222222222222222222222222222222222222222")
	gt.Value(t, event.Push.Owner).Equal("team11")
}

func TestWebhookHandler_BadPayload(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		payload   []byte
	}{
		{name: "Broken JSON", eventType: "push", payload: []byte(`{"ref":`)},
		{name: "Push without repository", eventType: "push", payload: []byte(`{"ref":"refs/heads/main","after":"abc"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockWebhookUseCase{}
			handler := controller.NewWebhookHandler(testSecret, uc)

			w := httptest.NewRecorder()
			handler.Handle(w, newWebhookRequest(tt.eventType, tt.payload, generateSignature(testSecret, tt.payload)))

			gt.Value(t, w.Code).Equal(http.StatusBadRequest)
			gt.A(t, uc.events).Length(0)
		})
	}
}

func TestWebhookHandler_UseCaseError(t *testing.T) {
	uc := &mockWebhookUseCase{err: errors.New("firestore unavailable")}
	handler := controller.NewWebhookHandler(testSecret, uc)
	payload := pushPayload("refs/heads/main")

	w := httptest.NewRecorder()
	handler.Handle(w, newWebhookRequest("push", payload, generateSignature(testSecret, payload)))

	gt.Value(t, w.Code).Equal(http.StatusInternalServerError)
}
