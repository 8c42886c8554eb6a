package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/jhquant/pkg/logger"
	"github.com/wonny/jhquant/pkg/metrics"
)

type countingJob struct {
	name     string
	schedule string
	calls    int32
	failFor  int32 // first n calls fail
	err      error
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	n := atomic.AddInt32(&j.calls, 1)
	if n <= j.failFor {
		if j.err != nil {
			return j.err
		}
		return fmt.Errorf("attempt %d failed", n)
	}
	return nil
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(logger.Nop(), Options{Location: time.UTC, MaxRetries: 2, RetryDelay: time.Millisecond})
	t.Cleanup(s.Stop)
	return s
}

func waitHistory(t *testing.T, s *Scheduler, job string) []JobResult {
	t.Helper()
	var results []JobResult
	require.Eventually(t, func() bool {
		results, _ = s.GetJobHistory(job)
		return len(results) > 0
	}, 2*time.Second, 5*time.Millisecond)
	return results
}

func TestAddJob_Duplicate(t *testing.T) {
	s := newTestScheduler(t)
	job := &countingJob{name: "daily_screening", schedule: "0 30 8 * * *"}

	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job))
	assert.Equal(t, []string{"daily_screening"}, s.GetAllJobs())
}

func TestAddJob_BadSchedule(t *testing.T) {
	s := newTestScheduler(t)
	// 초 필드가 없는 5필드 표현식은 거부
	assert.Error(t, s.AddJob(&countingJob{name: "x", schedule: "30 8 * * *"}))
}

func TestNextRun_UsesLocation(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	s := New(logger.Nop(), Options{Location: shanghai})
	require.NoError(t, s.AddJob(&countingJob{name: "daily_screening", schedule: "0 30 8 * * *"}))
	s.Start()
	defer s.Stop()

	var next time.Time
	require.Eventually(t, func() bool {
		next, _ = s.NextRun("daily_screening")
		return !next.IsZero()
	}, time.Second, 5*time.Millisecond)

	local := next.In(shanghai)
	assert.Equal(t, 8, local.Hour())
	assert.Equal(t, 30, local.Minute())
}

func TestRunJob_RetriesThenSucceeds(t *testing.T) {
	s := newTestScheduler(t)
	job := &countingJob{name: "flaky", schedule: "@daily", failFor: 2}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flaky"))
	results := waitHistory(t, s, "flaky")

	assert.True(t, results[0].Success)
	assert.Equal(t, 3, results[0].Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&job.calls))
}

func TestRunJob_GivesUp(t *testing.T) {
	s := newTestScheduler(t)
	job := &countingJob{name: "broken", schedule: "@daily", failFor: 100}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("broken"))
	results := waitHistory(t, s, "broken")

	assert.False(t, results[0].Success)
	assert.Equal(t, "attempt 3 failed", results[0].Error)

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.FailureCount)
	assert.Equal(t, 1, stats.ConsecutiveFailures)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestRunJob_SkipRetry(t *testing.T) {
	s := newTestScheduler(t)
	job := &countingJob{name: "busy", schedule: "@daily", failFor: 100, err: fmt.Errorf("%w: busy", ErrSkipRetry)}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("busy"))
	results := waitHistory(t, s, "busy")
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.calls))
	assert.True(t, results[0].Skipped)

	stats := s.GetJobStats()["busy"]
	assert.Equal(t, 1, stats.SkippedCount)
	assert.Equal(t, 0, stats.FailureCount)
	assert.Nil(t, stats.LastFailure)
}

func TestRunJob_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(logger.Nop(), Options{Location: time.UTC, Metrics: metrics.New(reg)})
	t.Cleanup(s.Stop)
	require.NoError(t, s.AddJob(&countingJob{name: "data_backfill", schedule: "@daily"}))

	require.NoError(t, s.RunJob("data_backfill"))
	waitHistory(t, s, "data_backfill")

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP jhquant_job_runs_total Scheduled job executions by outcome
# TYPE jhquant_job_runs_total counter
jhquant_job_runs_total{job="data_backfill",outcome="success"} 1
`), "jhquant_job_runs_total")
	assert.NoError(t, err)
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@daily"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))
	assert.Error(t, s.RunJob("a"))

	_, err := s.NextRun("a")
	assert.Error(t, err)
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Equal(t, 0.0, h.SuccessRate())
	_, ok := h.Latest()
	assert.False(t, ok)

	for i := 0; i < maxHistory+10; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, maxHistory)
	assert.InDelta(t, 0.5, h.SuccessRate(), 1e-9)
	assert.Equal(t, maxHistory/2, h.Failures())
	assert.Equal(t, 1, h.ConsecutiveFailures())
}

func TestJobHistory_SkippedNotFailures(t *testing.T) {
	h := &JobHistory{}
	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Error: "db down"})
	h.AddResult(JobResult{Skipped: true, Error: "busy"})
	h.AddResult(JobResult{Error: "db down"})

	assert.Equal(t, 2, h.Failures())
	assert.Equal(t, 2, h.ConsecutiveFailures())
	assert.InDelta(t, 1.0/3.0, h.SuccessRate(), 1e-9)

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, "db down", latest.Error)
}

func TestErrSkipRetryWrapped(t *testing.T) {
	err := fmt.Errorf("%w: run already in progress", ErrSkipRetry)
	assert.True(t, errors.Is(err, ErrSkipRetry))
}
