package contracts

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidBar is returned by Bar.Validate for rows that cannot enter the pipeline
var ErrInvalidBar = errors.New("invalid bar")

// Bar is one symbol's daily OHLCV observation
// ⭐ SSOT: 데이터 수집 → 지표 → 전략 사이의 유일한 시세 타입
type Bar struct {
	Symbol    string    `json:"ts_code"`
	TradeDate time.Time `json:"trade_date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"vol"`
}

// BarKey is the natural key of a Bar across the whole system
type BarKey struct {
	Symbol    string
	TradeDate time.Time
}

// Key returns the (symbol, trade_date) pair
func (b Bar) Key() BarKey {
	return BarKey{Symbol: b.Symbol, TradeDate: TradeDay(b.TradeDate)}
}

// IsRed reports whether the candle closed below its open
func (b Bar) IsRed() bool {
	return b.Close < b.Open
}

// Validate checks the fields every downstream stage relies on
func (b Bar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidBar)
	}
	if b.TradeDate.IsZero() {
		return fmt.Errorf("%w: %s: zero trade_date", ErrInvalidBar, b.Symbol)
	}

	prices := []struct {
		name  string
		value float64
	}{
		{"open", b.Open},
		{"high", b.High},
		{"low", b.Low},
		{"close", b.Close},
	}
	for _, p := range prices {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) || p.value <= 0 {
			return fmt.Errorf("%w: %s %s: %s=%v", ErrInvalidBar, b.Symbol, FormatTradeDate(b.TradeDate), p.name, p.value)
		}
	}
	if b.High < b.Low {
		return fmt.Errorf("%w: %s %s: high < low", ErrInvalidBar, b.Symbol, FormatTradeDate(b.TradeDate))
	}

	if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) || b.Volume < 0 {
		return fmt.Errorf("%w: %s %s: vol=%v", ErrInvalidBar, b.Symbol, FormatTradeDate(b.TradeDate), b.Volume)
	}

	return nil
}

// TradeDay truncates t to its calendar day in UTC
// 거래일은 시각 정보 없이 날짜로만 비교
func TradeDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseTradeDate parses the compact YYYYMMDD form used by Tushare
func ParseTradeDate(s string) (time.Time, error) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse trade_date %q: %w", s, err)
	}
	return t, nil
}

// FormatTradeDate renders t in the compact YYYYMMDD form
func FormatTradeDate(t time.Time) string {
	return t.Format("20060102")
}
