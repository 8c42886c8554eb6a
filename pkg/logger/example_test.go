package logger_test

import (
	"errors"

	"github.com/wonny/jhquant/pkg/config"
	"github.com/wonny/jhquant/pkg/logger"
)

// Example_basic demonstrates basic logger usage
func Example_basic() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	// Create logger (SSOT)
	log := logger.New(cfg)

	log.Debug("This won't appear (level is info)")
	log.Info("Application started")
	log.Infof("Loaded %d bars", 250000)
}

// Example_withFields demonstrates structured logging for a strategy run
func Example_withFields() {
	log := logger.New(&config.Config{Env: "production", LogLevel: "info", LogFormat: "json"})

	runLog := log.WithComponent("runner").WithStrategy("standard")
	runLog.WithFields(map[string]interface{}{
		"evaluated": 4800,
		"matches":   7,
	}).Info("Strategy finished")

	runLog.WithError(errors.New("telegram: 429")).Warn("Notification failed")
}
