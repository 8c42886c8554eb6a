package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records screening and data-pipeline metrics with Prometheus
// ⭐ SSOT: 메트릭 이름은 여기서만 정의
type Recorder struct {
	runsTotal         *prometheus.CounterVec
	matches           *prometheus.GaugeVec
	eliminations      *prometheus.CounterVec
	evaluated         *prometheus.GaugeVec
	notifyFailures    prometheus.Counter
	backfillDays      *prometheus.CounterVec
	barsSaved         prometheus.Counter
	operationDuration *prometheus.HistogramVec
	lastSuccessfulRun prometheus.Gauge
	jobRuns           *prometheus.CounterVec
}

// New registers the collectors on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jhquant_runs_total",
				Help: "Daily screening runs by outcome",
			},
			[]string{"outcome"},
		),
		matches: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jhquant_strategy_matches",
				Help: "Qualifying symbols in the latest run of a strategy",
			},
			[]string{"strategy"},
		),
		eliminations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jhquant_strategy_eliminations_total",
				Help: "Rows eliminated by a hard gate, by reason",
			},
			[]string{"strategy", "reason"},
		),
		evaluated: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jhquant_strategy_evaluated",
				Help: "Symbols evaluated on the latest trade date",
			},
			[]string{"strategy"},
		),
		notifyFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "jhquant_notify_failures_total",
				Help: "Notifications that could not be delivered",
			},
		),
		backfillDays: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jhquant_backfill_days_total",
				Help: "Backfilled calendar days by result",
			},
			[]string{"result"},
		),
		barsSaved: f.NewCounter(
			prometheus.CounterOpts{
				Name: "jhquant_bars_saved_total",
				Help: "Daily bars written to the store",
			},
		),
		operationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jhquant_operation_duration_seconds",
				Help:    "Duration of pipeline operations in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900},
			},
			[]string{"operation"},
		),
		lastSuccessfulRun: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "jhquant_last_successful_run_timestamp_seconds",
				Help: "Unix time of the last completed run",
			},
		),
		jobRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jhquant_job_runs_total",
				Help: "Scheduled job executions by outcome",
			},
			[]string{"job", "outcome"},
		),
	}
}

// RecordRun counts a finished run ("ok", "no_data", "error")
func (r *Recorder) RecordRun(outcome string, at time.Time) {
	r.runsTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		r.lastSuccessfulRun.Set(float64(at.Unix()))
	}
}

// RecordStrategy records the outcome of one strategy evaluation
func (r *Recorder) RecordStrategy(strategy string, evaluated, matches int, eliminated map[string]int) {
	r.evaluated.WithLabelValues(strategy).Set(float64(evaluated))
	r.matches.WithLabelValues(strategy).Set(float64(matches))
	for reason, n := range eliminated {
		r.eliminations.WithLabelValues(strategy, reason).Add(float64(n))
	}
}

// RecordNotifyFailure counts an undelivered notification
func (r *Recorder) RecordNotifyFailure() {
	r.notifyFailures.Inc()
}

// RecordBackfillDay counts one backfilled day ("fetched", "empty", "failed")
func (r *Recorder) RecordBackfillDay(result string, saved int) {
	r.backfillDays.WithLabelValues(result).Inc()
	r.barsSaved.Add(float64(saved))
}

// ObserveDuration records how long an operation took
func (r *Recorder) ObserveDuration(op string, d time.Duration) {
	r.operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordJob counts a scheduled job execution ("success", "failed", "skipped")
func (r *Recorder) RecordJob(job, outcome string) {
	r.jobRuns.WithLabelValues(job, outcome).Inc()
}
