package handlers

import (
	"net/http"
	"sort"

	"github.com/wonny/jhquant/internal/scheduler"
)

// JobReporter exposes scheduler statistics
type JobReporter interface {
	GetJobStats() map[string]scheduler.JobStats
}

// JobsHandler serves scheduled job status
type JobsHandler struct {
	jobs JobReporter
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(jobs JobReporter) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// List returns every job sorted by name
// GET /api/jobs
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	stats := h.jobs.GetJobStats()

	out := make([]scheduler.JobStats, 0, len(stats))
	for _, st := range stats {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobName < out[j].JobName })

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  out,
		"count": len(out),
	})
}
