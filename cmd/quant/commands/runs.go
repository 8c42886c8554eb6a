package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/jhquant/internal/audit"
	"github.com/wonny/jhquant/pkg/database"
)

var (
	runsLimit   int
	runsSummary bool
)

// runsCmd prints the run journal
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "스크리닝 실행 이력 조회",
	Long: `screening_runs 테이블에 기록된 최근 실행 이력을 출력합니다.
--summary 는 전략별 적중 일수와 자주 선정된 종목을 집계합니다 (테스트 실행 제외).

Example:
  go run ./cmd/quant runs
  go run ./cmd/quant runs --limit 60 --summary`,
	RunE: listRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVar(&runsLimit, "limit", audit.DefaultListLimit, "number of recent runs")
	runsCmd.Flags().BoolVar(&runsSummary, "summary", false, "aggregate hits per strategy")
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	journal := audit.NewRepository(db.Pool)
	if err := journal.EnsureSchema(ctx); err != nil {
		return err
	}
	runs, err := journal.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		PrintInfo("no runs recorded yet")
		return nil
	}

	if runsSummary {
		PrintSummary(len(runs), audit.Summarize(runs))
		return nil
	}
	PrintRuns(runs)
	return nil
}

// PrintRuns prints one line per journaled run
func PrintRuns(runs []audit.RunRecord) {
	PrintDoubleSeparator()
	for _, r := range runs {
		mark := " "
		if r.Test {
			mark = "T"
		}
		fmt.Printf("%s %s  %s  %-8s sent=%d hits=%d  %s\n",
			mark, r.StartedAt.Format("2006-01-02 15:04"), r.Date.Format("2006-01-02"),
			r.Outcome, r.Sent, len(r.Hits), r.RunID)
	}
	PrintDoubleSeparator()
}

// PrintSummary prints per-strategy hit statistics
func PrintSummary(runs int, stats []audit.StrategyStats) {
	PrintJobHeader("Run Summary", [][2]string{{"Runs", fmt.Sprintf("%d", runs)}})
	for _, st := range stats {
		fmt.Printf("[%s] hit_days=%d hits=%d avg_score=%.1f last=%s\n",
			st.Strategy, st.HitDays, st.Hits, st.AvgScore, st.LastHit.Format("2006-01-02"))
		fmt.Printf("   frequent: %s\n", formatFrequent(st.Frequent))
	}
	PrintDoubleSeparator()
}

func formatFrequent(list []audit.SymbolCount) string {
	parts := make([]string, 0, len(list))
	for _, sc := range list {
		parts = append(parts, fmt.Sprintf("%s×%d", sc.Symbol, sc.Count))
	}
	return strings.Join(parts, " ")
}
