package scheduler

import (
	"context"
	"time"
)

// Job is one cron-driven unit of work
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string
	Run(ctx context.Context) error
	// Schedule is a six-field cron expression ("0 30 18 * * 1-5") or a descriptor ("@daily")
	Schedule() string
}

// JobResult is one execution of a job, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped,omitempty"` // ended by ErrSkipRetry
	Error     string        `json:"error,omitempty"`
}

// maxHistory is the number of results kept per job
const maxHistory = 100

// JobHistory keeps the most recent results of one job, oldest first
type JobHistory struct {
	Results []JobResult
}

// AddResult appends result, dropping the oldest beyond maxHistory
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > maxHistory {
		h.Results = h.Results[len(h.Results)-maxHistory:]
	}
}

// Latest returns the newest result
func (h *JobHistory) Latest() (JobResult, bool) {
	if len(h.Results) == 0 {
		return JobResult{}, false
	}
	return h.Results[len(h.Results)-1], true
}

// Failures counts failed results; skipped runs are not failures
func (h *JobHistory) Failures() int {
	n := 0
	for _, r := range h.Results {
		if !r.Success && !r.Skipped {
			n++
		}
	}
	return n
}

// ConsecutiveFailures counts failures since the last success
func (h *JobHistory) ConsecutiveFailures() int {
	n := 0
	for i := len(h.Results) - 1; i >= 0; i-- {
		r := h.Results[i]
		if r.Success {
			break
		}
		if !r.Skipped {
			n++
		}
	}
	return n
}

// SuccessRate is successes over non-skipped results (0.0 - 1.0)
func (h *JobHistory) SuccessRate() float64 {
	counted, ok := 0, 0
	for _, r := range h.Results {
		if r.Skipped {
			continue
		}
		counted++
		if r.Success {
			ok++
		}
	}
	if counted == 0 {
		return 0
	}
	return float64(ok) / float64(counted)
}

// lastWhere returns the start of the newest result matching keep
func (h *JobHistory) lastWhere(keep func(JobResult) bool) *time.Time {
	for i := len(h.Results) - 1; i >= 0; i-- {
		if keep(h.Results[i]) {
			t := h.Results[i].StartTime
			return &t
		}
	}
	return nil
}
