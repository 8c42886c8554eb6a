package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/jhquant/internal/api"
	"github.com/wonny/jhquant/internal/api/handlers"
	"github.com/wonny/jhquant/internal/runner"
	"github.com/wonny/jhquant/internal/scheduler"
	"github.com/wonny/jhquant/internal/scheduler/jobs"
	"github.com/wonny/jhquant/pkg/redis"
)

var (
	startSkipInitialRun bool
	startNoAPI          bool
)

// startCmd runs the long-lived process: start-up run, daily schedule, API
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "스케줄러 + API 서버 시작",
	Long: `시작 직후 1회 테스트 실행 후, SCHEDULE_CRON(기본 매일 08:30 Asia/Shanghai)에
daily_screening 작업을 실행합니다. 같은 프로세스에서 HTTP API(PORT)를 제공합니다.

등록되는 작업:
- daily_screening: SCHEDULE_CRON
- data_backfill: SCHEDULE_BACKFILL_CRON (설정 시)

Ctrl+C로 종료할 수 있습니다.

Example:
  go run ./cmd/quant start
  go run ./cmd/quant start --skip-initial-run --no-api`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().BoolVar(&startSkipInitialRun, "skip-initial-run", false, "do not run once at start-up")
	startCmd.Flags().BoolVar(&startNoAPI, "no-api", false, "do not serve the HTTP API")
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("🚀 JH-quant System Starting...")

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log

	hub := api.NewHub(log)
	if err := a.newRunner(hub); err != nil {
		return err
	}

	loc, err := a.cfg.Schedule.Location()
	if err != nil {
		return err
	}
	opts := scheduler.DefaultOptions()
	opts.Location = loc
	opts.Metrics = a.metrics
	sched := scheduler.New(log, opts)

	if err := sched.AddJob(jobs.NewDailyScreeningJob(a.runner, a.cfg.Schedule.Cron, log)); err != nil {
		return err
	}
	if a.cfg.Schedule.BackfillCron != "" && a.backfiller != nil {
		job := jobs.NewBackfillJob(a.backfiller, a.cfg.Strategy.BackfillDays, a.cfg.Schedule.BackfillCron, log)
		if err := sched.AddJob(job); err != nil {
			return err
		}
	}

	var server *api.Server
	serverErr := make(chan error, 1)
	if !startNoAPI {
		handler := handlers.NewScreeningHandler(
			a.registry,
			a.runner,
			redis.NewCache(a.redis, "jhquant"),
			redis.NewRateLimiter(a.redis, "jhquant"),
			a.runner.Active(),
			log,
		)
		router := api.NewRouter(api.Routes{
			Screening: handler,
			Runs:      handlers.NewRunsHandler(a.journal, log),
			Jobs:      handlers.NewJobsHandler(sched),
			Hub:       hub,
			Metrics:   a.metricsH,
			DB:        a.db,
			Cache:     a.redis,
		}, log)
		server = api.New(a.cfg, log, router)
		go func() { serverErr <- server.Run(ctx) }()
	}

	// 시작 시 1회 실행
	if !startSkipInitialRun {
		if _, err := a.runner.Run(ctx, runner.RunConfig{Test: true}); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Start-up run failed")
			if sendErr := a.notifier.Send(ctx, runner.FormatStartupError(err)); sendErr != nil {
				log.WithError(sendErr).Warn("Failed to report start-up error")
			}
		}
	}

	sched.Start()
	if next, err := sched.NextRun("daily_screening"); err == nil {
		log.WithField("next_run", next.Format(time.RFC3339)).Info("Daily screening scheduled")
	}

	select {
	case <-ctx.Done():
		// Run이 진행 중 요청을 정리할 때까지 대기
		if server != nil {
			if err := <-serverErr; err != nil {
				log.WithError(err).Error("API server shutdown failed")
			}
		}
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("API server stopped")
		}
	}

	sched.Stop()
	log.Info("JH-quant stopped")
	return nil
}
