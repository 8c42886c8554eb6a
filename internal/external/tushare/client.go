package tushare

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wonny/jhquant/internal/contracts"
	"github.com/wonny/jhquant/pkg/config"
	"github.com/wonny/jhquant/pkg/httputil"
	"github.com/wonny/jhquant/pkg/logger"
)

// ErrNoToken is returned when no API token is configured
var ErrNoToken = errors.New("tushare: token not configured")

// DailyFields are the columns requested from the daily endpoint
var DailyFields = []string{"ts_code", "trade_date", "open", "high", "low", "close", "vol"}

// APIError is a non-zero code in a Tushare response envelope
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tushare: code %d: %s", e.Code, e.Message)
}

// Client handles communication with the Tushare Pro HTTP API
// ⭐ SSOT: Tushare API 호출은 이 클라이언트에서만
type Client struct {
	http    *httputil.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
	token   string
	baseURL string
}

// NewClient creates a new Tushare client paced at cfg.RatePerMin
func NewClient(cfg config.TushareConfig, log *logger.Logger) *Client {
	log = log.WithComponent("tushare")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		http: httputil.NewWithTimeout(log, timeout).
			WithRetry(2, time.Second).
			WithRateLimit(httputil.PerMinute(cfg.RatePerMin)),
		breaker: newBreaker(log),
		logger:  log,
		token:   cfg.Token,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// newBreaker opens after 5 consecutive failures and probes again after a minute
func newBreaker(log *logger.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tushare",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// Enabled reports whether a token is configured
func (c *Client) Enabled() bool {
	return c.token != ""
}

type request struct {
	APIName string                 `json:"api_name"`
	Token   string                 `json:"token"`
	Params  map[string]interface{} `json:"params"`
	Fields  string                 `json:"fields"`
}

type response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *Table `json:"data"`
}

// Query calls one API and returns its table
func (c *Client) Query(ctx context.Context, apiName string, params map[string]interface{}, fields []string) (*Table, error) {
	if !c.Enabled() {
		return nil, ErrNoToken
	}

	req := request{
		APIName: apiName,
		Token:   c.token,
		Params:  params,
		Fields:  strings.Join(fields, ","),
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.PostJSON(ctx, c.baseURL, req)
		if err != nil {
			return nil, err
		}

		var body response
		if err := httputil.DecodeJSON(resp, &body); err != nil {
			return nil, err
		}
		if body.Code != 0 {
			return nil, &APIError{Code: body.Code, Message: body.Msg}
		}
		if body.Data == nil {
			return &Table{}, nil
		}
		return body.Data, nil
	})
	if err != nil {
		return nil, fmt.Errorf("tushare %s: %w", apiName, err)
	}

	return out.(*Table), nil
}

// Daily fetches every symbol's bar for one trade date.
// Holidays return an empty slice and no error.
func (c *Client) Daily(ctx context.Context, tradeDate time.Time) ([]contracts.Bar, error) {
	table, err := c.Query(ctx, "daily", map[string]interface{}{
		"trade_date": contracts.FormatTradeDate(tradeDate),
	}, DailyFields)
	if err != nil {
		return nil, err
	}

	bars, skipped, err := table.Bars()
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		c.logger.WithFields(map[string]interface{}{
			"trade_date": contracts.FormatTradeDate(tradeDate),
			"skipped":    skipped,
		}).Warn("Skipped malformed daily rows")
	}

	return bars, nil
}
