package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "JH-quant - A股 극致축량 스크리너",
	Long: `JH-quant Unified CLI

A股 일봉을 Tushare에서 보충하고, 가중 점수 기반 극도 거래량 축소 전략을
매일 실행해 상위 종목을 Telegram으로 발송합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant run --test
  go run ./cmd/quant start
  go run ./cmd/quant backfill --days 30
  go run ./cmd/quant strategies
  go run ./cmd/quant test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "additional .env file loaded before the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
