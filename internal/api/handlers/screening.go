package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/jhquant/internal/runner"
	"github.com/wonny/jhquant/internal/scoring"
	"github.com/wonny/jhquant/internal/strategy"
	"github.com/wonny/jhquant/pkg/logger"
	"github.com/wonny/jhquant/pkg/redis"
)

// Screener runs one screening pass
type Screener interface {
	Run(ctx context.Context, rc runner.RunConfig) (*runner.RunResult, error)
	Overrides() strategy.Overrides
}

// ResultReader reads cached snapshots
type ResultReader interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
}

// Limiter admits manual runs
type Limiter interface {
	Allow(ctx context.Context, cfg redis.RateLimitConfig) (bool, int, error)
}

// ScreeningHandler serves strategy metadata, cached results and manual runs
// ⭐ SSOT: 스크리닝 API 핸들러는 이 구조체에서만
type ScreeningHandler struct {
	registry *strategy.Registry
	screener Screener
	results  ResultReader
	limiter  Limiter
	active   []string
	logger   *logger.Logger
}

// NewScreeningHandler creates a new screening handler
func NewScreeningHandler(
	reg *strategy.Registry,
	screener Screener,
	results ResultReader,
	limiter Limiter,
	active []string,
	log *logger.Logger,
) *ScreeningHandler {
	return &ScreeningHandler{
		registry: reg,
		screener: screener,
		results:  results,
		limiter:  limiter,
		active:   active,
		logger:   log,
	}
}

// StrategyInfo describes one registered strategy
type StrategyInfo struct {
	Name   string          `json:"name"`
	Title  string          `json:"title"`
	Active bool            `json:"active"`
	Params *scoring.Params `json:"params,omitempty"`
	Error  string          `json:"error,omitempty"` // override merge failure
}

// ListStrategies returns every registered strategy with its effective parameters
// GET /api/strategies
func (h *ScreeningHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	overrides := h.screener.Overrides()

	active := make(map[string]bool, len(h.active))
	for _, name := range h.active {
		if e, ok := h.registry.Lookup(name); ok {
			active[e.Name] = true
		}
	}

	entries := h.registry.Entries()
	out := make([]StrategyInfo, 0, len(entries))
	for _, e := range entries {
		info := StrategyInfo{Name: e.Name, Title: e.DisplayName(), Active: active[e.Name]}
		if p, err := e.Params(overrides); err != nil {
			info.Error = err.Error()
		} else {
			info.Params = &p
		}
		out = append(out, info)
	}

	respondJSON(w, http.StatusOK, out)
}

// Latest returns the cached snapshot of a strategy
// GET /api/strategies/{name}/latest
func (h *ScreeningHandler) Latest(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.registry.Lookup(mux.Vars(r)["name"])
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown strategy")
		return
	}

	var snap runner.Snapshot
	found, err := h.results.Get(r.Context(), redis.ResultKey(entry.Name), &snap)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read cached result")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve result")
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "No result yet")
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

// Run triggers a synchronous screening pass
// POST /api/run?dry_run=true&skip_backfill=true
func (h *ScreeningHandler) Run(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dryRun, err := parseBool(q.Get("dry_run"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'dry_run' (expected true/false)")
		return
	}
	skipBackfill, err := parseBool(q.Get("skip_backfill"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'skip_backfill' (expected true/false)")
		return
	}

	allowed, _, err := h.limiter.Allow(r.Context(), redis.ManualRunRateLimit)
	if err != nil {
		// 레이트 리미터 장애 시에도 수동 실행은 허용
		h.logger.WithError(err).Warn("Rate limiter unavailable")
	} else if !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(redis.ManualRunRateLimit.Window/time.Second)))
		respondError(w, http.StatusTooManyRequests, "Too many manual runs")
		return
	}

	res, err := h.screener.Run(r.Context(), runner.RunConfig{DryRun: dryRun, SkipBackfill: skipBackfill})
	switch {
	case errors.Is(err, runner.ErrRunInProgress):
		respondError(w, http.StatusConflict, "A run is already in progress")
		return
	case err != nil:
		h.logger.WithError(err).Error("Manual run failed")
		respondError(w, http.StatusInternalServerError, "Run failed")
		return
	}

	respondJSON(w, http.StatusOK, res)
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
