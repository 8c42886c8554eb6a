package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/jhquant/internal/runner"
	"github.com/wonny/jhquant/internal/scheduler"
	"github.com/wonny/jhquant/pkg/logger"
)

// Screener runs one screening pass
type Screener interface {
	Run(ctx context.Context, rc runner.RunConfig) (*runner.RunResult, error)
}

// DailyScreeningJob runs the screener on schedule
// ⭐ SSOT: 일일 스크리닝 스케줄은 이 Job에서만
type DailyScreeningJob struct {
	screener Screener
	schedule string
	logger   *logger.Logger
}

// NewDailyScreeningJob creates a new daily screening job
func NewDailyScreeningJob(s Screener, schedule string, log *logger.Logger) *DailyScreeningJob {
	return &DailyScreeningJob{
		screener: s,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *DailyScreeningJob) Name() string {
	return "daily_screening"
}

// Schedule returns the cron schedule
func (j *DailyScreeningJob) Schedule() string {
	return j.schedule
}

// Run executes the screening
func (j *DailyScreeningJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled screening")

	res, err := j.screener.Run(ctx, runner.RunConfig{})
	if errors.Is(err, runner.ErrRunInProgress) {
		// 수동 실행이 이미 돌고 있으면 재시도하지 않는다
		return fmt.Errorf("%w: %v", scheduler.ErrSkipRetry, err)
	}
	if err != nil {
		return fmt.Errorf("screening: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":  res.RunID,
		"outcome": res.Outcome,
		"sent":    res.Sent,
	}).Info("Scheduled screening completed")
	return nil
}
