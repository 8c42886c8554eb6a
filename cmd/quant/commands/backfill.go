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
)

var backfillDays int

// backfillCmd fills missing trade dates without running strategies
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "누락 거래일 일봉 보충",
	Long: `최근 N일 중 DB에 없는 날짜의 일봉을 Tushare에서 가져와 저장합니다.
이미 저장된 (ts_code, trade_date)는 건너뜁니다.

Example:
  go run ./cmd/quant backfill
  go run ./cmd/quant backfill --days 30`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
	backfillCmd.Flags().IntVar(&backfillDays, "days", 0, "lookback in calendar days (default BACKFILL_DAYS)")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.backfiller == nil {
		return errors.New("TUSHARE_TOKEN is not set")
	}

	days := backfillDays
	if days <= 0 {
		days = a.cfg.Strategy.BackfillDays
	}

	PrintJobHeader("Backfill", [][2]string{
		{"Lookback", fmt.Sprintf("%d days", days)},
		{"Started", time.Now().Format(time.RFC3339)},
	})

	start := time.Now()
	res, err := a.backfiller.Backfill(ctx, days)
	fmt.Printf("[Backfill] requested=%d fetched=%d empty=%d failed=%d saved=%d\n",
		res.Requested, res.Fetched, res.Empty, res.Failed, res.Saved)
	if err != nil {
		return err
	}

	rows, err := a.repo.CountBars(ctx)
	if err != nil {
		return fmt.Errorf("count bars: %w", err)
	}
	PrintSuccess(fmt.Sprintf("Backfill completed in %.2fs, %d bars stored", time.Since(start).Seconds(), rows))
	return nil
}
