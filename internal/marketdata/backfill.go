package marketdata

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/jhquant/internal/contracts"
	"github.com/wonny/jhquant/pkg/logger"
	"github.com/wonny/jhquant/pkg/metrics"
)

// BackfillConfig controls retry and pacing of a backfill
type BackfillConfig struct {
	Retries    int           // attempts per day
	RetryDelay time.Duration // pause between attempts
	Pacing     time.Duration // minimum gap between day requests
}

// DefaultBackfillConfig returns 3 attempts, 5s apart, one day every 500ms
func DefaultBackfillConfig() BackfillConfig {
	return BackfillConfig{
		Retries:    3,
		RetryDelay: 5 * time.Second,
		Pacing:     500 * time.Millisecond,
	}
}

// BackfillResult summarizes one backfill pass
type BackfillResult struct {
	Requested int   `json:"requested"` // missing days attempted
	Fetched   int   `json:"fetched"`   // days with data saved
	Empty     int   `json:"empty"`     // holidays / weekends
	Failed    int   `json:"failed"`
	Saved     int64 `json:"saved"` // rows inserted
}

// Backfiller fills calendar days missing from the store
// ⭐ SSOT: 누락 거래일 보충은 여기서만
type Backfiller struct {
	fetcher Fetcher
	store   Store
	logger  *logger.Logger
	metrics *metrics.Recorder
	cfg     BackfillConfig
	limiter *rate.Limiter
	now     func() time.Time
}

// NewBackfiller creates a backfiller; rec may be nil
func NewBackfiller(fetcher Fetcher, store Store, cfg BackfillConfig, log *logger.Logger, rec *metrics.Recorder) *Backfiller {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}

	limit := rate.Inf
	if cfg.Pacing > 0 {
		limit = rate.Every(cfg.Pacing)
	}

	return &Backfiller{
		fetcher: fetcher,
		store:   store,
		logger:  log.WithComponent("backfill"),
		metrics: rec,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// WithClock overrides the wall clock
func (b *Backfiller) WithClock(now func() time.Time) *Backfiller {
	b.now = now
	return b
}

// MissingDays lists calendar days in [today-lookback, today] absent from the store
func (b *Backfiller) MissingDays(ctx context.Context, lookbackDays int) []time.Time {
	today := contracts.TradeDay(b.now())
	start := today.AddDate(0, 0, -lookbackDays)

	existing := make(map[time.Time]bool)
	dates, err := b.store.TradeDates(ctx, start)
	if err != nil {
		// 조회 실패 시 전 구간을 다시 요청 (중복은 ON CONFLICT로 무시됨)
		b.logger.WithError(err).Warn("Failed to read stored trade dates")
	}
	for _, d := range dates {
		existing[contracts.TradeDay(d)] = true
	}

	var missing []time.Time
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		if !existing[d] {
			missing = append(missing, d)
		}
	}
	return missing
}

// Backfill fetches every missing day in ascending order.
// Per-day failures are logged and counted; only context cancellation aborts.
func (b *Backfiller) Backfill(ctx context.Context, lookbackDays int) (BackfillResult, error) {
	var result BackfillResult
	start := time.Now()

	missing := b.MissingDays(ctx, lookbackDays)
	if len(missing) == 0 {
		b.logger.Info("Data complete, nothing to backfill")
		return result, nil
	}

	b.logger.WithFields(map[string]interface{}{
		"lookback_days": lookbackDays,
		"missing_days":  len(missing),
		"first":         contracts.FormatTradeDate(missing[0]),
		"last":          contracts.FormatTradeDate(missing[len(missing)-1]),
	}).Info("Starting backfill")

	for _, day := range missing {
		if err := b.limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("backfill interrupted: %w", err)
		}
		result.Requested++

		bars, err := b.fetchWithRetry(ctx, day)
		if ctx.Err() != nil {
			return result, fmt.Errorf("backfill interrupted: %w", ctx.Err())
		}

		dayLog := b.logger.WithField("trade_date", contracts.FormatTradeDate(day))
		switch {
		case err != nil:
			result.Failed++
			b.record("failed", 0)
			dayLog.WithError(err).Error("Giving up on day")

		case len(bars) == 0:
			result.Empty++
			b.record("empty", 0)
			dayLog.Debug("No data (holiday?)")

		default:
			saved, err := b.store.SaveBars(ctx, bars)
			if err != nil {
				result.Failed++
				b.record("failed", 0)
				dayLog.WithError(err).Error("Save failed")
				continue
			}
			result.Fetched++
			result.Saved += saved
			b.record("fetched", int(saved))
			dayLog.WithFields(map[string]interface{}{
				"fetched": len(bars),
				"saved":   saved,
			}).Info("Day backfilled")
		}
	}

	if b.metrics != nil {
		b.metrics.ObserveDuration("backfill", time.Since(start))
	}

	b.logger.WithFields(map[string]interface{}{
		"requested": result.Requested,
		"fetched":   result.Fetched,
		"empty":     result.Empty,
		"failed":    result.Failed,
		"saved":     result.Saved,
	}).Info("Backfill complete")

	return result, nil
}

// fetchWithRetry tries one day up to cfg.Retries times
func (b *Backfiller) fetchWithRetry(ctx context.Context, day time.Time) ([]contracts.Bar, error) {
	var lastErr error
	for attempt := 1; attempt <= b.cfg.Retries; attempt++ {
		bars, err := b.fetcher.Daily(ctx, day)
		if err == nil {
			return bars, nil
		}
		lastErr = err

		b.logger.WithFields(map[string]interface{}{
			"trade_date": contracts.FormatTradeDate(day),
			"attempt":    attempt,
			"error":      err.Error(),
		}).Warn("Fetch failed")

		if attempt == b.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.cfg.RetryDelay):
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", b.cfg.Retries, lastErr)
}

func (b *Backfiller) record(result string, saved int) {
	if b.metrics != nil {
		b.metrics.RecordBackfillDay(result, saved)
	}
}
