package marketdata

import (
	"context"
	"time"

	"github.com/wonny/jhquant/internal/contracts"
)

// Store persists daily bars keyed by (ts_code, trade_date)
type Store interface {
	// EnsureSchema creates the bar table when missing
	EnsureSchema(ctx context.Context) error
	// SaveBars inserts bars, ignoring keys already stored; returns rows inserted
	SaveBars(ctx context.Context, bars []contracts.Bar) (int64, error)
	// LoadHistory returns bars of the last `days` calendar days ordered by ts_code, trade_date
	LoadHistory(ctx context.Context, days int) ([]contracts.Bar, error)
	// CountBars returns the total number of stored bars
	CountBars(ctx context.Context) (int64, error)
	// TradeDates returns the distinct stored dates on or after from
	TradeDates(ctx context.Context, from time.Time) ([]time.Time, error)
}

// Fetcher downloads every symbol's bar for one trade date
type Fetcher interface {
	Daily(ctx context.Context, tradeDate time.Time) ([]contracts.Bar, error)
}
