package commands

import (
	"fmt"
	"sort"

	"github.com/wonny/jhquant/internal/runner"
	"github.com/wonny/jhquant/internal/scoring"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintJobHeader prints a formatted job header
func PrintJobHeader(title string, fields [][2]string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	for _, f := range fields {
		fmt.Printf("  %-10s: %s\n", f[0], f[1])
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintRunResult prints the per-strategy summary and the outgoing messages
func PrintRunResult(res *runner.RunResult) {
	PrintJobHeader("Screening Run", [][2]string{
		{"Run ID", res.RunID},
		{"Date", res.Date},
		{"Outcome", res.Outcome},
		{"Rows", fmt.Sprintf("%d", res.Rows)},
	})

	if bf := res.Backfill; bf != nil {
		fmt.Printf("[Backfill] requested=%d fetched=%d empty=%d failed=%d saved=%d\n",
			bf.Requested, bf.Fetched, bf.Empty, bf.Failed, bf.Saved)
	}

	for _, snap := range res.Snapshots {
		r := snap.Report
		fmt.Printf("[%s] evaluated=%d matches=%d below_min=%d dropped=%d eliminated=%s\n",
			snap.Strategy, r.Evaluated, len(r.Matches), r.BelowMinScore, r.Dropped, formatEliminated(r.Eliminated))
	}
	for _, name := range res.Skipped {
		PrintWarning("skipped strategy: " + name)
	}

	for _, msg := range res.Messages {
		PrintSeparator()
		fmt.Println(msg)
	}
	PrintDoubleSeparator()
}

func formatEliminated(m map[scoring.Reason]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	out := "{"
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s:%d", k, m[scoring.Reason(k)])
	}
	return out + "}"
}
