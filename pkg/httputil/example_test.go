package httputil_test

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/jhquant/pkg/config"
	"github.com/wonny/jhquant/pkg/httputil"
	"github.com/wonny/jhquant/pkg/logger"
)

// Example_paced demonstrates a retried, rate limited JSON call
func Example_paced() {
	log := logger.New(&config.Config{Env: "production", LogLevel: "info"})

	// Create HTTP client (SSOT)
	client := httputil.NewWithTimeout(log, 10*time.Second).
		WithRetry(3, 500*time.Millisecond).
		WithRateLimit(httputil.PerMinute(120))

	resp, err := client.PostJSON(context.Background(), "http://api.tushare.pro", map[string]string{"api_name": "trade_cal"})
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		return
	}

	var out map[string]interface{}
	if err := httputil.DecodeJSON(resp, &out); err != nil {
		fmt.Printf("Decode failed: %v\n", err)
		return
	}
	fmt.Printf("code: %v\n", out["code"])
}
