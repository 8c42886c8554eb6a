package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/jhquant/internal/contracts"
	"github.com/wonny/jhquant/internal/marketdata"
	"github.com/wonny/jhquant/internal/notifier"
	"github.com/wonny/jhquant/internal/scoring"
	"github.com/wonny/jhquant/internal/strategy"
	"github.com/wonny/jhquant/pkg/logger"
	"github.com/wonny/jhquant/pkg/metrics"
	"github.com/wonny/jhquant/pkg/redis"
)

// journalTimeout bounds the journal write after a run
const journalTimeout = 10 * time.Second

// ErrRunInProgress is returned when a run is requested while another is executing
var ErrRunInProgress = errors.New("run already in progress")

// Run outcomes, also used as metric labels
const (
	OutcomeOK     = "ok"
	OutcomeNoData = "no_data"
	OutcomeError  = "error"
)

// History is the part of the bar store a run reads
type History interface {
	CountBars(ctx context.Context) (int64, error)
	LoadHistory(ctx context.Context, days int) ([]contracts.Bar, error)
}

// Backfiller fills missing trade dates before a run
type Backfiller interface {
	Backfill(ctx context.Context, lookbackDays int) (marketdata.BackfillResult, error)
}

// ResultCache stores the latest snapshot of each strategy
type ResultCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Publisher pushes finished snapshots to live subscribers
type Publisher interface {
	Publish(snap Snapshot)
}

// Journal keeps a history of finished runs
type Journal interface {
	SaveRun(ctx context.Context, res *RunResult) error
}

// Settings are the run knobs taken from configuration
type Settings struct {
	Active        []string
	TopN          int
	BackfillDays  int
	HistoryDays   int
	MinDataRows   int64
	FileOverrides strategy.Overrides // STRATEGY_CONFIG
	EnvOverrides  string             // STRATEGY_PARAMS (raw JSON)
	ConfigHash    string
	Location      *time.Location
	ResultTTL     time.Duration // zero means redis.TTLResult
}

// Deps are the collaborators of a Runner. Cache, Publisher, Journal, Backfiller and Metrics are optional.
type Deps struct {
	History    History
	Backfiller Backfiller
	Registry   *strategy.Registry
	Notifier   notifier.Notifier
	Cache      ResultCache
	Publisher  Publisher
	Journal    Journal
	Metrics    *metrics.Recorder
	Logger     *logger.Logger
}

// RunConfig controls one invocation
type RunConfig struct {
	Date         time.Time // message date; zero means now
	Test         bool      // start-up run
	SkipBackfill bool
	DryRun       bool // collect messages without sending or caching
}

// Snapshot is one strategy's cached and published result
type Snapshot struct {
	RunID      string          `json:"run_id"`
	Strategy   string          `json:"strategy"`
	Title      string          `json:"title"`
	Date       string          `json:"date"`
	Params     scoring.Params  `json:"params"`
	Report     strategy.Report `json:"report"`
	ConfigHash string          `json:"config_hash,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RunResult summarizes one invocation
type RunResult struct {
	RunID      string                     `json:"run_id"`
	Date       string                     `json:"date"`
	Test       bool                       `json:"test"`
	DryRun     bool                       `json:"dry_run"`
	Outcome    string                     `json:"outcome"`
	Rows       int64                      `json:"rows"`
	Backfill   *marketdata.BackfillResult `json:"backfill,omitempty"`
	Snapshots  []Snapshot                 `json:"snapshots"`
	Skipped    []string                   `json:"skipped,omitempty"`
	Sent       int                        `json:"sent"` // strategies with at least one match
	Messages   []string                   `json:"messages"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
}

// Runner executes the daily screening
// ⭐ SSOT: 보충 → 행 수 확인 → 이력 로드 → 전략별 실행/알림
type Runner struct {
	deps      Deps
	settings  Settings
	overrides strategy.Overrides
	logger    *logger.Logger
	now       func() time.Time
	mu        sync.Mutex
}

// New creates a runner. An unparsable EnvOverrides is logged and ignored.
func New(deps Deps, settings Settings) *Runner {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("runner")

	if deps.Notifier == nil {
		deps.Notifier = notifier.Nop{}
	}
	if deps.Registry == nil {
		deps.Registry = strategy.DefaultRegistry()
	}
	if settings.Location == nil {
		settings.Location = time.Local
	}
	if settings.ResultTTL <= 0 {
		settings.ResultTTL = redis.TTLResult
	}

	envOverrides, err := strategy.ParseOverrides(settings.EnvOverrides)
	if err != nil {
		log.WithError(err).Warn("STRATEGY_PARAMS is not valid JSON, ignored")
		envOverrides = strategy.Overrides{}
	}

	fileOverrides := settings.FileOverrides
	if fileOverrides == nil {
		fileOverrides = strategy.Overrides{}
	}

	return &Runner{
		deps:      deps,
		settings:  settings,
		overrides: fileOverrides.Merge(envOverrides),
		logger:    log,
		now:       time.Now,
	}
}

// WithClock replaces the wall clock (tests)
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Active returns the configured strategy names in run order
func (r *Runner) Active() []string {
	return append([]string(nil), r.settings.Active...)
}

// Overrides returns the effective layered overrides (file then env)
func (r *Runner) Overrides() strategy.Overrides {
	return strategy.Overrides{}.Merge(r.overrides)
}

// Run executes one screening pass. Only store failures and cancellation are errors;
// unknown strategies, bad overrides and notification failures are logged and skipped.
func (r *Runner) Run(ctx context.Context, rc RunConfig) (*RunResult, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	started := r.now()
	date := rc.Date
	if date.IsZero() {
		date = started
	}

	res := &RunResult{
		RunID:     uuid.NewString(),
		Date:      date.In(r.settings.Location).Format(MessageDateLayout),
		Test:      rc.Test,
		DryRun:    rc.DryRun,
		StartedAt: started,
	}
	log := r.logger.WithRun(res.RunID).WithFields(map[string]interface{}{
		"test":       rc.Test,
		"dry_run":    rc.DryRun,
		"strategies": r.settings.Active,
	})
	log.Info("Screening run started")

	err := r.execute(ctx, rc, res, log)

	res.FinishedAt = r.now()
	if err != nil {
		res.Outcome = OutcomeError
	}
	r.recordRun(res)
	if !rc.DryRun {
		r.journal(ctx, res, log)
	}

	if err != nil {
		log.WithError(err).Error("Screening run failed")
		return res, err
	}
	log.WithFields(map[string]interface{}{
		"outcome":  res.Outcome,
		"sent":     res.Sent,
		"duration": res.FinishedAt.Sub(started),
	}).Info("Screening run finished")
	return res, nil
}

func (r *Runner) execute(ctx context.Context, rc RunConfig, res *RunResult, log *logger.Logger) error {
	if !rc.SkipBackfill && r.deps.Backfiller != nil {
		bf, err := r.deps.Backfiller.Backfill(ctx, r.settings.BackfillDays)
		res.Backfill = &bf
		if err != nil {
			// 보충 실패는 기록만 하고 저장된 데이터로 계속 진행
			log.WithError(err).Warn("Backfill interrupted")
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}

	rows, err := r.deps.History.CountBars(ctx)
	if err != nil {
		return fmt.Errorf("count bars: %w", err)
	}
	res.Rows = rows
	log.WithField("rows", rows).Info("Stored bars counted")

	if rows < r.settings.MinDataRows {
		res.Outcome = OutcomeNoData
		r.send(ctx, rc, res, MsgInsufficientData)
		return nil
	}

	loadStart := time.Now()
	bars, err := r.deps.History.LoadHistory(ctx, r.settings.HistoryDays)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	r.observe("load_history", time.Since(loadStart))

	for _, name := range r.settings.Active {
		if err := ctx.Err(); err != nil {
			return err
		}

		snap, ok := r.runStrategy(name, bars, res, log)
		if !ok {
			res.Skipped = append(res.Skipped, name)
			continue
		}
		res.Snapshots = append(res.Snapshots, snap)

		r.send(ctx, rc, res, FormatReport(snap.Title, res.Date, snap.Report, r.settings.TopN))
		if !snap.Report.Empty() {
			res.Sent++
		}

		if !rc.DryRun {
			r.cache(ctx, snap, log)
			if r.deps.Publisher != nil {
				r.deps.Publisher.Publish(snap)
			}
		}
	}

	if res.Sent == 0 {
		r.send(ctx, rc, res, FormatNoSignals(res.Date))
	}
	res.Outcome = OutcomeOK
	return nil
}

// runStrategy resolves and evaluates one active strategy
func (r *Runner) runStrategy(name string, bars []contracts.Bar, res *RunResult, log *logger.Logger) (Snapshot, bool) {
	stratLog := log.WithStrategy(name)

	entry, ok := r.deps.Registry.Lookup(name)
	if !ok {
		stratLog.Warn("Strategy not registered, skipped")
		return Snapshot{}, false
	}

	params, err := entry.Params(r.overrides)
	if err != nil {
		stratLog.WithError(err).Warn("Invalid strategy parameters, skipped")
		return Snapshot{}, false
	}

	stratLog.WithField("min_score", params.MinScore).Info("Running strategy")
	start := time.Now()
	report := entry.Run(bars, params)
	r.observe("strategy_"+entry.Name, time.Since(start))

	r.recordStrategy(entry.Name, report)
	stratLog.WithFields(map[string]interface{}{
		"evaluated":       report.Evaluated,
		"matches":         len(report.Matches),
		"below_min_score": report.BelowMinScore,
		"dropped":         report.Dropped,
	}).Info("Strategy finished")

	return Snapshot{
		RunID:      res.RunID,
		Strategy:   entry.Name,
		Title:      entry.DisplayName(),
		Date:       res.Date,
		Params:     params,
		Report:     report,
		ConfigHash: r.settings.ConfigHash,
		CreatedAt:  r.now(),
	}, true
}

// send delivers text unless the run is dry; failures are logged and counted only
func (r *Runner) send(ctx context.Context, rc RunConfig, res *RunResult, text string) {
	res.Messages = append(res.Messages, text)
	if rc.DryRun {
		return
	}
	if err := r.deps.Notifier.Send(ctx, text); err != nil {
		r.logger.WithError(err).Warn("Notification failed")
		if r.deps.Metrics != nil {
			r.deps.Metrics.RecordNotifyFailure()
		}
	}
}

func (r *Runner) cache(ctx context.Context, snap Snapshot, log *logger.Logger) {
	if r.deps.Cache == nil {
		return
	}
	if err := r.deps.Cache.Set(ctx, redis.ResultKey(snap.Strategy), snap, r.settings.ResultTTL); err != nil {
		log.WithError(err).WithField("strategy", snap.Strategy).Warn("Result cache write failed")
	}
}

// journal persists the run even when ctx was cancelled mid-run
func (r *Runner) journal(ctx context.Context, res *RunResult, log *logger.Logger) {
	if r.deps.Journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := r.deps.Journal.SaveRun(ctx, res); err != nil {
		log.WithError(err).Warn("Run journal write failed")
	}
}

func (r *Runner) recordRun(res *RunResult) {
	if r.deps.Metrics == nil {
		return
	}
	r.deps.Metrics.RecordRun(res.Outcome, res.FinishedAt)
	r.deps.Metrics.ObserveDuration("run", res.FinishedAt.Sub(res.StartedAt))
}

func (r *Runner) recordStrategy(name string, report strategy.Report) {
	if r.deps.Metrics == nil {
		return
	}
	eliminated := make(map[string]int, len(report.Eliminated)+1)
	for reason, n := range report.Eliminated {
		eliminated[string(reason)] = n
	}
	if report.BelowMinScore > 0 {
		eliminated["below_min_score"] = report.BelowMinScore
	}
	r.deps.Metrics.RecordStrategy(name, report.Evaluated, len(report.Matches), eliminated)
}

func (r *Runner) observe(op string, d time.Duration) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveDuration(op, d)
	}
}
