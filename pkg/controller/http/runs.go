package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/interfaces"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
)

// RunsHandler serves run records
type RunsHandler struct {
	runUC interfaces.RunUseCase
}

// NewRunsHandler creates a new RunsHandler
func NewRunsHandler(runUC interfaces.RunUseCase) *RunsHandler {
	return &RunsHandler{runUC: runUC}
}

type listRunsResponse struct {
	Runs []*model.Run `json:"runs"`
}

// List handles GET /runs?limit=N
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, goerr.New("invalid limit", goerr.V("limit", v)), http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.runUC.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}

	writeJSON(w, r, http.StatusOK, listRunsResponse{Runs: runs})
}

// Get handles GET /runs/{id}
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := types.RunID(chi.URLParam(r, "id"))

	run, err := h.runUC.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	if run == nil {
		writeError(w, goerr.New("run not found", goerr.V("run_id", id)), http.StatusNotFound)
		return
	}

	writeJSON(w, r, http.StatusOK, run)
}
