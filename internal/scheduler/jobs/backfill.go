package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/jhquant/internal/runner"
	"github.com/wonny/jhquant/pkg/logger"
)

// BackfillJob refreshes the bar store after the market closes so the morning run starts warm
type BackfillJob struct {
	backfiller runner.Backfiller
	lookback   int
	schedule   string
	logger     *logger.Logger
}

// NewBackfillJob creates a new backfill job
func NewBackfillJob(b runner.Backfiller, lookbackDays int, schedule string, log *logger.Logger) *BackfillJob {
	return &BackfillJob{
		backfiller: b,
		lookback:   lookbackDays,
		schedule:   schedule,
		logger:     log,
	}
}

// Name returns the job name
func (j *BackfillJob) Name() string {
	return "data_backfill"
}

// Schedule returns the cron schedule
func (j *BackfillJob) Schedule() string {
	return j.schedule
}

// Run executes the backfill
func (j *BackfillJob) Run(ctx context.Context) error {
	res, err := j.backfiller.Backfill(ctx, j.lookback)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"requested": res.Requested,
		"fetched":   res.Fetched,
		"failed":    res.Failed,
		"saved":     res.Saved,
	}).Info("Scheduled backfill completed")
	return nil
}
