package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/jhquant/pkg/logger"
	"github.com/wonny/jhquant/pkg/metrics"
)

// ErrSkipRetry marks a job error that must not be retried
var ErrSkipRetry = errors.New("skip retry")

// Options configure a Scheduler
type Options struct {
	Location   *time.Location
	MaxRetries int
	RetryDelay time.Duration
	Metrics    *metrics.Recorder // optional
}

// DefaultOptions returns 2 retries one minute apart in the local zone
func DefaultOptions() Options {
	return Options{
		Location:   time.Local,
		MaxRetries: 2,
		RetryDelay: 1 * time.Minute,
	}
}

// Scheduler manages scheduled jobs
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	jobs    map[string]Job
	entries map[string]cron.EntryID
	history map[string]*JobHistory
	mu      sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Retry configuration
	maxRetries int
	retryDelay time.Duration
	metrics    *metrics.Recorder
}

// New creates a new scheduler; cron expressions carry a seconds field
func New(log *logger.Logger, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:       cron.New(cron.WithSeconds(), cron.WithLocation(opts.Location)),
		logger:     log.WithComponent("scheduler"),
		jobs:       make(map[string]Job),
		entries:    make(map[string]cron.EntryID),
		history:    make(map[string]*JobHistory),
		ctx:        ctx,
		cancel:     cancel,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		metrics:    opts.Metrics,
	}
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobName := job.Name()

	if _, exists := s.jobs[jobName]; exists {
		return fmt.Errorf("job %s already exists", jobName)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.runJob(job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", jobName, err)
	}

	s.jobs[jobName] = job
	s.entries[jobName] = id
	s.history[jobName] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// RemoveJob removes a job from the scheduler
func (s *Scheduler) RemoveJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[jobName]; !exists {
		return fmt.Errorf("job %s not found", jobName)
	}

	s.cron.Remove(s.entries[jobName])
	delete(s.jobs, jobName)
	delete(s.entries, jobName)
	s.logger.WithField("job", jobName).Info("Job removed from scheduler")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop stops the scheduler, cancels running jobs and waits for them
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	stopped := s.cron.Stop()
	s.cancel()
	<-stopped.Done()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// NextRun returns the next activation time of a job
func (s *Scheduler) NextRun(jobName string) (time.Time, error) {
	s.mu.RLock()
	id, exists := s.entries[jobName]
	s.mu.RUnlock()

	if !exists {
		return time.Time{}, fmt.Errorf("job %s not found", jobName)
	}
	return s.cron.Entry(id).Next, nil
}

// RunJob runs a specific job immediately (outside of schedule)
func (s *Scheduler) RunJob(jobName string) error {
	s.mu.RLock()
	job, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job %s not found", jobName)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(job)
	}()
	return nil
}

// runJob executes a job with retry logic
func (s *Scheduler) runJob(job Job) {
	jobName := job.Name()
	log := s.logger.WithField("job", jobName)
	result := JobResult{JobName: jobName, StartTime: time.Now()}

	log.Info("Job started")

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		result.Attempts = attempt + 1
		err := job.Run(s.ctx)
		if err == nil {
			result.Success = true
			break
		}

		lastErr = err
		if errors.Is(err, ErrSkipRetry) {
			result.Skipped = true
			break
		}
		if s.ctx.Err() != nil {
			break
		}

		log.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Warn("Job execution failed, retrying")

		if attempt < s.maxRetries {
			select {
			case <-s.ctx.Done():
			case <-time.After(s.retryDelay):
			}
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	if !result.Success && lastErr != nil {
		result.Error = lastErr.Error()
	}

	s.record(result)

	s.mu.Lock()
	streak := 0
	if history, exists := s.history[jobName]; exists {
		history.AddResult(result)
		streak = history.ConsecutiveFailures()
	}
	s.mu.Unlock()

	fields := map[string]interface{}{
		"duration": result.Duration,
		"attempts": result.Attempts,
	}
	switch {
	case result.Success:
		log.WithFields(fields).Info("Job completed successfully")
	case result.Skipped:
		fields["reason"] = result.Error
		log.WithFields(fields).Warn("Job skipped")
	default:
		fields["error"] = result.Error
		fields["consecutive_failures"] = streak
		log.WithFields(fields).Error("Job failed after all retries")
	}
}

func (s *Scheduler) record(result JobResult) {
	if s.metrics == nil {
		return
	}
	outcome := "failed"
	switch {
	case result.Success:
		outcome = "success"
	case result.Skipped:
		outcome = "skipped"
	}
	s.metrics.RecordJob(result.JobName, outcome)
	s.metrics.ObserveDuration("job_"+result.JobName, result.Duration)
}

// GetJobHistory returns the history for a specific job
func (s *Scheduler) GetJobHistory(jobName string) ([]JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.history[jobName]
	if !exists {
		return nil, fmt.Errorf("job %s not found", jobName)
	}

	out := make([]JobResult, len(history.Results))
	copy(out, history.Results)
	return out, nil
}

// GetAllJobs returns all registered job names, sorted
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]string, 0, len(s.jobs))
	for jobName := range s.jobs {
		jobs = append(jobs, jobName)
	}
	sort.Strings(jobs)

	return jobs
}

// GetJobStats returns statistics for all registered jobs
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats)

	for jobName, job := range s.jobs {
		history := s.history[jobName]
		failed := history.Failures()

		st := JobStats{
			JobName:             jobName,
			Schedule:            job.Schedule(),
			TotalRuns:           len(history.Results),
			FailureCount:        failed,
			SuccessRate:         history.SuccessRate(),
			ConsecutiveFailures: history.ConsecutiveFailures(),
			LastSuccess:         history.lastWhere(func(r JobResult) bool { return r.Success }),
			LastFailure:         history.lastWhere(func(r JobResult) bool { return !r.Success && !r.Skipped }),
		}
		for _, r := range history.Results {
			if r.Success {
				st.SuccessCount++
			} else if r.Skipped {
				st.SkippedCount++
			}
		}
		if latest, ok := history.Latest(); ok {
			last := latest.StartTime
			st.LastRun = &last
		}
		if next := s.cron.Entry(s.entries[jobName]).Next; !next.IsZero() {
			st.NextRun = &next
		}

		stats[jobName] = st
	}

	return stats
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName             string     `json:"job_name"`
	Schedule            string     `json:"schedule"`
	TotalRuns           int        `json:"total_runs"`
	SuccessCount        int        `json:"success_count"`
	FailureCount        int        `json:"failure_count"`
	SkippedCount        int        `json:"skipped_count"`
	SuccessRate         float64    `json:"success_rate"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastRun             *time.Time `json:"last_run,omitempty"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastFailure         *time.Time `json:"last_failure,omitempty"`
	NextRun             *time.Time `json:"next_run,omitempty"`
}
