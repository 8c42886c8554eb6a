package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/jhquant/internal/runner"
)

var (
	runTest         bool
	runDryRun       bool
	runSkipBackfill bool
	runDate         string
)

// runCmd runs one screening pass and exits
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "스크리닝 1회 실행",
	Long: `누락 거래일 보충 → 데이터 행 수 확인 → 이력 로드 → 활성 전략 실행 → Telegram 발송.

Example:
  go run ./cmd/quant run
  go run ./cmd/quant run --dry-run --skip-backfill
  go run ./cmd/quant run --date 2024-03-11`,
	RunE: runScreening,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runTest, "test", false, "mark the run as a test run")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print messages instead of sending them; no cache writes")
	runCmd.Flags().BoolVar(&runSkipBackfill, "skip-backfill", false, "use stored bars only")
	runCmd.Flags().StringVar(&runDate, "date", "", "message date (YYYY-MM-DD), default today")
}

func runScreening(cmd *cobra.Command, args []string) error {
	rc := runner.RunConfig{Test: runTest, DryRun: runDryRun, SkipBackfill: runSkipBackfill}
	if runDate != "" {
		d, err := time.Parse(runner.MessageDateLayout, runDate)
		if err != nil {
			return fmt.Errorf("invalid --date (expected YYYY-MM-DD): %w", err)
		}
		rc.Date = d
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.newRunner(nil); err != nil {
		return err
	}

	res, err := a.runner.Run(ctx, rc)
	if res != nil {
		PrintRunResult(res)
	}
	return err
}
