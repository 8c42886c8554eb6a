package runner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wonny/jhquant/internal/strategy"
)

// MessageDateLayout is the date format of every operator message
const MessageDateLayout = "2006-01-02"

const (
	MsgInsufficientData = "❌ 数据量过少，无法运行策略"
	defaultReason       = "信号命中"
)

var medals = []string{"🥇", "🥈", "🥉"}

// FormatReport renders one strategy's outcome for Telegram (Markdown)
func FormatReport(title, date string, report strategy.Report, topN int) string {
	if report.Empty() {
		return fmt.Sprintf("📭 **%s** (%s)\n\n今日无股票命中信号。", title, date)
	}

	lines := []string{
		fmt.Sprintf("🏆 **%s TOP %d** (%s)", title, topN, date),
		"---",
		fmt.Sprintf("📊 入选库：%d 只\n", len(report.Matches)),
	}
	for i, m := range report.Top(topN) {
		reason := m.Reason
		if reason == "" {
			reason = defaultReason
		}
		lines = append(lines, fmt.Sprintf("%s `%s` 💰%.2f\n   **总分: %s** | %s\n",
			rankIcon(i), m.Symbol, m.Close, formatScore(m.Score.Total), reason))
	}
	return strings.Join(lines, "\n")
}

// FormatNoSignals is sent when no active strategy produced a match
func FormatNoSignals(date string) string {
	return fmt.Sprintf("⚠️ 今日所有策略均无信号 (%s)", date)
}

// FormatStartupError is sent when the start-up run fails
func FormatStartupError(err error) string {
	return fmt.Sprintf("❌ JH-quant 启动报错: %v", err)
}

func rankIcon(i int) string {
	if i < len(medals) {
		return medals[i]
	}
	return strconv.Itoa(i+1) + "."
}

// 점수는 정수면 소수점 없이
func formatScore(total float64) string {
	return strconv.FormatFloat(total, 'f', -1, 64)
}
