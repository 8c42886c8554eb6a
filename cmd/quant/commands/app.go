package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/jhquant/internal/audit"
	"github.com/wonny/jhquant/internal/external/tushare"
	"github.com/wonny/jhquant/internal/marketdata"
	"github.com/wonny/jhquant/internal/notifier"
	"github.com/wonny/jhquant/internal/runner"
	"github.com/wonny/jhquant/internal/strategy"
	"github.com/wonny/jhquant/internal/strategyconfig"
	"github.com/wonny/jhquant/pkg/config"
	"github.com/wonny/jhquant/pkg/database"
	"github.com/wonny/jhquant/pkg/logger"
	"github.com/wonny/jhquant/pkg/metrics"
	"github.com/wonny/jhquant/pkg/redis"
)

// app holds every wired component of one process
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *database.DB
	redis      *redis.Client
	repo       *marketdata.Repository
	journal    *audit.Repository
	backfiller *marketdata.Backfiller
	notifier   *notifier.Telegram
	registry   *strategy.Registry
	strategies *strategyconfig.Config
	runner     *runner.Runner
	metrics    *metrics.Recorder
	metricsH   http.Handler
}

// loadConfig loads .env (and --env-file) then the environment
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newApp wires config → logger → db/redis → data → strategy.
// The runner is built separately by newRunner so callers can attach a publisher.
// ⭐ SSOT: 프로세스 조립은 여기서만
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log, registry: strategy.DefaultRegistry()}

	a.metricsH, a.metrics = newMetrics(cfg)

	if cfg.Strategy.ConfigPath != "" {
		sc, data, err := strategyconfig.Load(cfg.Strategy.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("strategy config: %w", err)
		}
		if err := strategyconfig.Resolve(sc, a.registry); err != nil {
			return nil, fmt.Errorf("strategy config: %w", err)
		}
		for _, w := range strategyconfig.Warn(sc, a.registry) {
			log.WithField("code", w.Code).Warn(w.Message)
		}
		log.WithFields(map[string]interface{}{
			"path":  cfg.Strategy.ConfigPath,
			"bytes": len(data),
		}).Info("Strategy config loaded")
		a.strategies = sc
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := database.New(connectCtx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.db = db

	a.redis, err = redis.New(connectCtx, cfg.Redis)
	if err != nil {
		// 캐시는 선택 사항: 실패 시 비활성 클라이언트로 계속
		log.WithError(err).Warn("Redis unavailable, result cache disabled")
		a.redis = redis.Disabled()
	}

	a.repo = marketdata.NewRepository(db)
	if err := a.repo.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	a.journal = audit.NewRepository(db.Pool)
	if err := a.journal.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	ts := tushare.NewClient(cfg.Tushare, log)
	if !ts.Enabled() {
		log.Warn("TUSHARE_TOKEN not set, backfill disabled")
	} else {
		a.backfiller = marketdata.NewBackfiller(ts, a.repo, marketdata.DefaultBackfillConfig(), log, a.metrics)
	}

	a.notifier = notifier.NewTelegram(cfg.Telegram, log)
	if !a.notifier.Enabled() {
		log.Warn("TG_TOKEN / TG_CHAT_ID not set, notifications disabled")
	}

	return a, nil
}

// newRunner builds a.runner; pub may be nil
func (a *app) newRunner(pub runner.Publisher) error {
	loc, err := a.cfg.Schedule.Location()
	if err != nil {
		return err
	}

	settings := runner.Settings{
		Active:       a.cfg.Strategy.Active,
		TopN:         a.cfg.Strategy.TopN,
		BackfillDays: a.cfg.Strategy.BackfillDays,
		HistoryDays:  a.cfg.Strategy.HistoryDays,
		MinDataRows:  int64(a.cfg.Strategy.MinDataRows),
		EnvOverrides: a.cfg.Strategy.ParamsJSON,
		Location:     loc,
		ResultTTL:    a.cfg.Redis.ResultTTL,
	}
	if sc := a.strategies; sc != nil {
		settings.FileOverrides = sc.Overrides()
		if len(sc.Active) > 0 && !a.cfg.Strategy.ActiveSet {
			settings.Active = sc.Active
		}
		if sc.TopN > 0 {
			settings.TopN = sc.TopN
		}
		if settings.ConfigHash, err = strategyconfig.Hash(sc); err != nil {
			return err
		}
	}

	deps := runner.Deps{
		History:   a.repo,
		Registry:  a.registry,
		Notifier:  a.notifier,
		Cache:     redis.NewCache(a.redis, "jhquant"),
		Publisher: pub,
		Journal:   a.journal,
		Metrics:   a.metrics,
		Logger:    a.log,
	}
	// nil *Backfiller는 인터페이스에 넣지 않는다
	if a.backfiller != nil {
		deps.Backfiller = a.backfiller
	}
	a.runner = runner.New(deps, settings)
	return nil
}

// newMetrics registers on the default registry when METRICS_ENABLED, otherwise on a private one
func newMetrics(cfg *config.Config) (http.Handler, *metrics.Recorder) {
	if cfg.MetricsEnabled {
		return promhttp.Handler(), metrics.New(prometheus.DefaultRegisterer)
	}
	return nil, metrics.New(prometheus.NewRegistry())
}

// Close releases connections
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
