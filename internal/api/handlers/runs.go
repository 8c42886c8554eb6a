package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/jhquant/internal/audit"
	"github.com/wonny/jhquant/pkg/logger"
)

// maxListLimit caps ?limit on run listings
const maxListLimit = 200

// RunStore reads the run journal
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]audit.RunRecord, error)
	GetRun(ctx context.Context, runID string) (*audit.RunRecord, error)
}

// RunsHandler serves the run journal
type RunsHandler struct {
	store  RunStore
	logger *logger.Logger
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(store RunStore, log *logger.Logger) *RunsHandler {
	return &RunsHandler{store: store, logger: log}
}

// List returns recent runs, newest first
// GET /api/runs?limit=20
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// Summary aggregates hits of recent runs per strategy
// GET /api/runs/summary?limit=20
func (h *RunsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":       len(runs),
		"strategies": audit.Summarize(runs),
	})
}

// Get returns one run
// GET /api/runs/{id}
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, err := h.store.GetRun(r.Context(), id)
	if errors.Is(err, audit.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("run_id", id).Error("Failed to get run")
		respondError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return audit.DefaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}
