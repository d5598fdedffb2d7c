package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	controller "github.com/team11/cloudrun-deployer/pkg/controller/http"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
	"github.com/team11/cloudrun-deployer/pkg/infra/memory"
	"github.com/team11/cloudrun-deployer/pkg/usecase"
)

func newRunsServer(t *testing.T) *controller.Server {
	t.Helper()
	ctx := context.Background()
	repo := memory.NewRepository()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b"} {
		run := model.NewRun(types.RunID(id), model.Trigger{
			Owner:     "team11",
			Repo:      "game-server",
			Ref:       "refs/heads/main",
			CommitSHA: "abc123",
		}, now.Add(time.Duration(i)*time.Minute))
		gt.NoError(t, repo.PutRun(ctx, run))
	}

	server, err := controller.NewServer(ctx, &mockWebhookUseCase{}, usecase.NewRuns(repo),
		controller.WithWebhookSecret(testSecret))
	gt.NoError(t, err)
	return server
}

func TestRunsHandler_List(t *testing.T) {
	server := newRunsServer(t)

	w := httptest.NewRecorder()
	server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs?limit=1", nil))
	gt.Value(t, w.Code).Equal(http.StatusOK)

	var resp struct {
		Runs []model.Run `json:"runs"`
	}
	gt.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	gt.A(t, resp.Runs).Length(1)
	gt.Value(t, resp.Runs[0].ID).Equal(types.RunID("run-b"))
	gt.A(t, resp.Runs[0].Steps).Length(4)
}

func TestRunsHandler_ListInvalidLimit(t *testing.T) {
	server := newRunsServer(t)

	w := httptest.NewRecorder()
	server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs?limit=abc", nil))
	gt.Value(t, w.Code).Equal(http.StatusBadRequest)
}

func TestRunsHandler_Get(t *testing.T) {
	server := newRunsServer(t)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/run-a", nil))
		gt.Value(t, w.Code).Equal(http.StatusOK)

		var run model.Run
		gt.NoError(t, json.NewDecoder(w.Body).Decode(&run))
		gt.Value(t, run.ID).Equal(types.RunID("run-a"))
		gt.Value(t, run.Status).Equal(model.RunQueued)
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/missing", nil))
		gt.Value(t, w.Code).Equal(http.StatusNotFound)
	})
}
