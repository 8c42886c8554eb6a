package config_test

import (
	"fmt"

	"github.com/wonny/jhquant/pkg/config"
)

// Example prints the knobs a screening run depends on
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	loc, err := cfg.Schedule.Location()
	if err != nil {
		fmt.Printf("Bad timezone: %v\n", err)
		return
	}

	fmt.Printf("Active strategies: %v (top %d)\n", cfg.Strategy.Active, cfg.Strategy.TopN)
	fmt.Printf("Daily run: %s in %s\n", cfg.Schedule.Cron, loc)
	fmt.Printf("History: %d days, backfill %d days, min rows %d\n",
		cfg.Strategy.HistoryDays, cfg.Strategy.BackfillDays, cfg.Strategy.MinDataRows)
	fmt.Printf("Telegram enabled: %v, Redis enabled: %v\n", cfg.Telegram.Enabled(), cfg.Redis.Enabled)
}
