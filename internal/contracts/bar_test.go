package contracts

import (
	"errors"
	"math"
	"testing"
	"time"
)

func validBar() Bar {
	return Bar{
		Symbol:    "000001.SZ",
		TradeDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Open:      10.5,
		High:      10.8,
		Low:       10.1,
		Close:     10.2,
		Volume:    120000,
	}
}

func TestBar_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(b *Bar)
		wantErr bool
	}{
		{"valid", func(b *Bar) {}, false},
		{"zero volume allowed", func(b *Bar) { b.Volume = 0 }, false},
		{"empty symbol", func(b *Bar) { b.Symbol = "" }, true},
		{"zero date", func(b *Bar) { b.TradeDate = time.Time{} }, true},
		{"zero low", func(b *Bar) { b.Low = 0 }, true},
		{"negative close", func(b *Bar) { b.Close = -1 }, true},
		{"nan open", func(b *Bar) { b.Open = math.NaN() }, true},
		{"inf high", func(b *Bar) { b.High = math.Inf(1) }, true},
		{"high below low", func(b *Bar) { b.High = 9 }, true},
		{"negative volume", func(b *Bar) { b.Volume = -5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBar()
			tt.mutate(&b)
			err := b.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidBar) {
				t.Errorf("expected ErrInvalidBar, got %v", err)
			}
		})
	}
}

func TestBar_Key(t *testing.T) {
	b := validBar()
	b.TradeDate = time.Date(2024, 1, 15, 15, 30, 0, 0, time.FixedZone("CST", 8*3600))

	key := b.Key()
	if key.Symbol != "000001.SZ" {
		t.Errorf("expected symbol 000001.SZ, got %s", key.Symbol)
	}
	if !key.TradeDate.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected key date truncated to day, got %s", key.TradeDate)
	}
}

func TestParseTradeDate(t *testing.T) {
	d, err := ParseTradeDate("20240115")
	if err != nil {
		t.Fatalf("ParseTradeDate failed: %v", err)
	}
	if FormatTradeDate(d) != "20240115" {
		t.Errorf("round trip mismatch: %s", FormatTradeDate(d))
	}

	if _, err := ParseTradeDate("2024-01-15"); err == nil {
		t.Error("expected error for dashed date")
	}
}

func TestBar_IsRed(t *testing.T) {
	b := validBar()
	if !b.IsRed() {
		t.Error("close < open should be red")
	}
	b.Close = b.Open
	if b.IsRed() {
		t.Error("close == open should not be red")
	}
}
