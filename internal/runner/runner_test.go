package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/jhquant/internal/contracts"
	"github.com/wonny/jhquant/internal/marketdata"
	"github.com/wonny/jhquant/internal/notifier"
	"github.com/wonny/jhquant/internal/strategy"
	"github.com/wonny/jhquant/pkg/metrics"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// series builds n flat days at scale k followed by one red shrink day.
// At k=1 and lastVol=300 the final row scores 93 under the defaults.
func series(symbol string, n int, k, lastVol float64) []contracts.Bar {
	bars := make([]contracts.Bar, 0, n+1)
	for i := 0; i < n; i++ {
		bars = append(bars, contracts.Bar{
			Symbol: symbol, TradeDate: day0.AddDate(0, 0, i),
			Open: 10 * k, High: 10.1 * k, Low: 9.9 * k, Close: 10 * k, Volume: 1000,
		})
	}
	return append(bars, contracts.Bar{
		Symbol: symbol, TradeDate: day0.AddDate(0, 0, n),
		Open: 10 * k, High: 10 * k, Low: 9.7 * k, Close: 9.95 * k, Volume: lastVol,
	})
}

type fakeHistory struct {
	bars     []contracts.Bar
	rows     int64
	countErr error
	loadErr  error
	days     int
}

func (f *fakeHistory) CountBars(context.Context) (int64, error) { return f.rows, f.countErr }

func (f *fakeHistory) LoadHistory(_ context.Context, days int) ([]contracts.Bar, error) {
	f.days = days
	return f.bars, f.loadErr
}

type fakeBackfiller struct {
	calls    int
	lookback int
	err      error
}

func (f *fakeBackfiller) Backfill(_ context.Context, lookback int) (marketdata.BackfillResult, error) {
	f.calls++
	f.lookback = lookback
	return marketdata.BackfillResult{Requested: 3, Fetched: 2, Empty: 1}, f.err
}

type memCache struct {
	mu   sync.Mutex
	data map[string]interface{}
	ttl  time.Duration
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]interface{})
	}
	c.data[key] = value
	c.ttl = ttl
	return nil
}

type capturePublisher struct{ snaps []Snapshot }

func (p *capturePublisher) Publish(s Snapshot) { p.snaps = append(p.snaps, s) }

type memJournal struct {
	runs []*RunResult
	err  error
	ctx  error
}

func (j *memJournal) SaveRun(ctx context.Context, res *RunResult) error {
	j.runs = append(j.runs, res)
	j.ctx = ctx.Err()
	return j.err
}

type failingNotifier struct{}

func (failingNotifier) Send(context.Context, string) error { return errors.New("telegram down") }

var runDate = time.Date(2024, 3, 11, 8, 30, 0, 0, time.UTC)

func marketFrame() []contracts.Bar {
	var bars []contracts.Bar
	bars = append(bars, series("000002.SZ", 60, 10, 300)...) // 83
	bars = append(bars, series("000001.SZ", 60, 1, 300)...)  // 93
	bars = append(bars, series("600000.SH", 60, 1, 900)...)  // 未极致缩量
	return bars
}

type harness struct {
	history  *fakeHistory
	backfill *fakeBackfiller
	notes    *notifier.Recorder
	cache    *memCache
	pub      *capturePublisher
	journal  *memJournal
	reg      *prometheus.Registry
	rec      *metrics.Recorder
}

func newHarness() *harness {
	reg := prometheus.NewRegistry()
	return &harness{
		history:  &fakeHistory{bars: marketFrame(), rows: 20000},
		backfill: &fakeBackfiller{},
		notes:    &notifier.Recorder{},
		cache:    &memCache{},
		pub:      &capturePublisher{},
		journal:  &memJournal{},
		reg:      reg,
		rec:      metrics.New(reg),
	}
}

func (h *harness) runner(s Settings) *Runner {
	if s.Active == nil {
		s.Active = []string{strategy.NameStandard}
	}
	if s.TopN == 0 {
		s.TopN = 10
	}
	s.BackfillDays = 200
	s.HistoryDays = 250
	s.MinDataRows = 10000
	s.Location = time.UTC

	return New(Deps{
		History:    h.history,
		Backfiller: h.backfill,
		Notifier:   h.notes,
		Cache:      h.cache,
		Publisher:  h.pub,
		Journal:    h.journal,
		Metrics:    h.rec,
	}, s).WithClock(func() time.Time { return runDate })
}

func assertRuns(t *testing.T, reg *prometheus.Registry, outcome string) {
	t.Helper()
	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP jhquant_runs_total Daily screening runs by outcome
# TYPE jhquant_runs_total counter
jhquant_runs_total{outcome="`+outcome+`"} 1
`), "jhquant_runs_total")
	assert.NoError(t, err)
}

func TestRun_SendsRankedReport(t *testing.T) {
	h := newHarness()
	res, err := h.runner(Settings{}).Run(context.Background(), RunConfig{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, "2024-03-11", res.Date)
	assert.Equal(t, int64(20000), res.Rows)
	assert.Equal(t, 1, h.backfill.calls)
	assert.Equal(t, 200, h.backfill.lookback)
	assert.Equal(t, 250, h.history.days)
	assert.Equal(t, 1, res.Sent)
	assert.NotEmpty(t, res.RunID)

	want := "🏆 **加权评分-极致缩量（标准） TOP 10** (2024-03-11)\n" +
		"---\n" +
		"📊 入选库：2 只\n\n" +
		"🥇 `000001.SZ` 💰9.95\n   **总分: 93** | 极致缩量93分|前低0.30倍|跌-0.5%\n\n" +
		"🥈 `000002.SZ` 💰99.50\n   **总分: 83** | 极致缩量83分|前低0.30倍|跌-0.5%\n"
	assert.Equal(t, []string{want}, h.notes.Messages())

	require.Len(t, res.Snapshots, 1)
	snap := res.Snapshots[0]
	assert.Equal(t, strategy.NameStandard, snap.Strategy)
	assert.Equal(t, 60.0, snap.Params.MinScore)

	cached, ok := h.cache.data["results:standard:latest"].(Snapshot)
	require.True(t, ok)
	assert.Equal(t, res.RunID, cached.RunID)
	assert.Equal(t, 48*time.Hour, h.cache.ttl)
	require.Len(t, h.pub.snaps, 1)

	assertRuns(t, h.reg, OutcomeOK)
}

func TestRun_InsufficientData(t *testing.T) {
	h := newHarness()
	h.history.rows = 9999

	res, err := h.runner(Settings{}).Run(context.Background(), RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoData, res.Outcome)
	assert.Equal(t, []string{"❌ 数据量过少，无法运行策略"}, h.notes.Messages())
	assert.Zero(t, h.history.days, "history must not be loaded")
	assert.Empty(t, h.pub.snaps)
}

func TestRun_EmptyResultAndNoSignals(t *testing.T) {
	h := newHarness()
	h.history.bars = series("600000.SH", 60, 1, 900)

	res, err := h.runner(Settings{}).Run(context.Background(), RunConfig{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"📭 **加权评分-极致缩量（标准）** (2024-03-11)\n\n今日无股票命中信号。",
		"⚠️ 今日所有策略均无信号 (2024-03-11)",
	}, h.notes.Messages())
	assert.Zero(t, res.Sent)
	// 빈 결과도 캐시/발행은 된다
	assert.Len(t, h.pub.snaps, 1)
}

func TestRun_EnvOverrideEmptiesResult(t *testing.T) {
	h := newHarness()
	res, err := h.runner(Settings{EnvOverrides: `{"standard": {"min_score": 95}}`}).
		Run(context.Background(), RunConfig{})
	require.NoError(t, err)

	require.Len(t, res.Snapshots, 1)
	assert.True(t, res.Snapshots[0].Report.Empty())
	assert.Equal(t, 2, res.Snapshots[0].Report.BelowMinScore)
	assert.Len(t, h.notes.Messages(), 2)
}

func TestRun_EnvOverridesWinOverFile(t *testing.T) {
	h := newHarness()
	r := h.runner(Settings{
		FileOverrides: strategy.Overrides{"standard": {"min_score": 95, "min_history": 30}},
		EnvOverrides:  `{"standard": {"min_score": 90}}`,
	})

	res, err := r.Run(context.Background(), RunConfig{})
	require.NoError(t, err)
	p := res.Snapshots[0].Params
	assert.Equal(t, 90.0, p.MinScore)
	assert.Equal(t, 30, p.MinHistory)
	assert.Len(t, res.Snapshots[0].Report.Matches, 1)
}

func TestRun_InvalidEnvJSONIgnored(t *testing.T) {
	h := newHarness()
	res, err := h.runner(Settings{EnvOverrides: `{not json`}).Run(context.Background(), RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
}

func TestRun_UnknownAndInvalidStrategiesSkipped(t *testing.T) {
	h := newHarness()
	r := h.runner(Settings{
		Active:       []string{"ghost", strategy.NameRelaxed, strategy.NameStandard},
		EnvOverrides: `{"relaxed": {"min_score": 150}}`,
	})

	res, err := r.Run(context.Background(), RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost", strategy.NameRelaxed}, res.Skipped)
	require.Len(t, res.Snapshots, 1)
	assert.Equal(t, strategy.NameStandard, res.Snapshots[0].Strategy)
}

func TestRun_LookupByTitle(t *testing.T) {
	h := newHarness()
	res, err := h.runner(Settings{Active: []string{"加权评分-极致缩量（宽松）"}}).
		Run(context.Background(), RunConfig{})
	require.NoError(t, err)
	require.Len(t, res.Snapshots, 1)
	assert.Equal(t, strategy.NameRelaxed, res.Snapshots[0].Strategy)
}

func TestRun_DryRunSendsNothing(t *testing.T) {
	h := newHarness()
	res, err := h.runner(Settings{}).Run(context.Background(), RunConfig{DryRun: true, SkipBackfill: true})
	require.NoError(t, err)

	assert.Len(t, res.Messages, 1)
	assert.Empty(t, h.notes.Messages())
	assert.Empty(t, h.cache.data)
	assert.Empty(t, h.pub.snaps)
	assert.Zero(t, h.backfill.calls)
	assert.Nil(t, res.Backfill)
}

func TestRun_BackfillErrorContinues(t *testing.T) {
	h := newHarness()
	h.backfill.err = errors.New("tushare down")

	res, err := h.runner(Settings{}).Run(context.Background(), RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, res.Outcome)
	require.NotNil(t, res.Backfill)
	assert.Equal(t, 2, res.Backfill.Fetched)
}

func TestRun_StoreErrors(t *testing.T) {
	h := newHarness()
	h.history.countErr = errors.New("connection refused")
	res, err := h.runner(Settings{}).Run(context.Background(), RunConfig{})
	require.Error(t, err)
	assert.Equal(t, OutcomeError, res.Outcome)
	assertRuns(t, h.reg, OutcomeError)

	h = newHarness()
	h.history.loadErr = errors.New("timeout")
	_, err = h.runner(Settings{}).Run(context.Background(), RunConfig{})
	assert.ErrorContains(t, err, "load history")
}

func TestRun_NotifyFailureCounted(t *testing.T) {
	h := newHarness()
	r := New(Deps{History: h.history, Notifier: failingNotifier{}, Metrics: h.rec}, Settings{
		Active: []string{strategy.NameStandard}, TopN: 10, MinDataRows: 1, Location: time.UTC,
	})

	_, err := r.Run(context.Background(), RunConfig{})
	require.NoError(t, err)
	err = testutil.GatherAndCompare(h.reg, strings.NewReader(`
# HELP jhquant_notify_failures_total Notifications that could not be delivered
# TYPE jhquant_notify_failures_total counter
jhquant_notify_failures_total 1
`), "jhquant_notify_failures_total")
	assert.NoError(t, err)
}

func TestRun_TopNLimitsLines(t *testing.T) {
	h := newHarness()
	res, err := h.runner(Settings{TopN: 1}).Run(context.Background(), RunConfig{DryRun: true})
	require.NoError(t, err)

	msg := res.Messages[0]
	assert.Contains(t, msg, "TOP 1**")
	assert.Contains(t, msg, "📊 入选库：2 只")
	assert.NotContains(t, msg, "000002.SZ")
}

func TestRun_ConcurrentRunRejected(t *testing.T) {
	h := newHarness()
	r := h.runner(Settings{})
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.Run(context.Background(), RunConfig{})
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestActiveReturnsCopy(t *testing.T) {
	r := newHarness().runner(Settings{Active: []string{"standard", "relaxed"}})
	active := r.Active()
	active[0] = "mutated"
	assert.Equal(t, []string{"standard", "relaxed"}, r.Active())
}

func TestRun_JournalRecordsRuns(t *testing.T) {
	h := newHarness()
	r := h.runner(Settings{})

	res, err := r.Run(context.Background(), RunConfig{})
	require.NoError(t, err)
	require.Len(t, h.journal.runs, 1)
	assert.Equal(t, res.RunID, h.journal.runs[0].RunID)

	// dry runs leave no trace
	_, err = r.Run(context.Background(), RunConfig{DryRun: true})
	require.NoError(t, err)
	assert.Len(t, h.journal.runs, 1)
}

func TestRun_JournalSurvivesCancelAndFailure(t *testing.T) {
	h := newHarness()
	h.journal.err = errors.New("db down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.runner(Settings{}).Run(ctx, RunConfig{SkipBackfill: true})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeError, res.Outcome)

	require.Len(t, h.journal.runs, 1)
	assert.NoError(t, h.journal.ctx)
}
