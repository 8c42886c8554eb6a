package tushare

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/wonny/jhquant/internal/contracts"
)

// Table is the columnar payload of a Tushare response
type Table struct {
	Fields []string            `json:"fields"`
	Items  [][]json.RawMessage `json:"items"`
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Items)
}

// column returns the index of a field or -1
func (t *Table) column(name string) int {
	for i, f := range t.Fields {
		if f == name {
			return i
		}
	}
	return -1
}

// Bars maps rows to bars by field name.
// Rows with null or unparsable cells, or that fail validation, are skipped and counted.
func (t *Table) Bars() ([]contracts.Bar, int, error) {
	if t.Len() == 0 {
		return nil, 0, nil
	}

	idx := make(map[string]int, len(DailyFields))
	for _, f := range DailyFields {
		i := t.column(f)
		if i < 0 {
			return nil, 0, fmt.Errorf("tushare: response missing field %q", f)
		}
		idx[f] = i
	}

	bars := make([]contracts.Bar, 0, t.Len())
	skipped := 0
	for _, row := range t.Items {
		bar, ok := rowToBar(row, idx)
		if !ok || bar.Validate() != nil {
			skipped++
			continue
		}
		bars = append(bars, bar)
	}

	return bars, skipped, nil
}

func rowToBar(row []json.RawMessage, idx map[string]int) (contracts.Bar, bool) {
	cell := func(name string) (json.RawMessage, bool) {
		i := idx[name]
		if i >= len(row) {
			return nil, false
		}
		return row[i], true
	}

	var bar contracts.Bar

	raw, ok := cell("ts_code")
	if !ok || json.Unmarshal(raw, &bar.Symbol) != nil {
		return bar, false
	}

	var date string
	raw, ok = cell("trade_date")
	if !ok || json.Unmarshal(raw, &date) != nil {
		return bar, false
	}
	d, err := contracts.ParseTradeDate(date)
	if err != nil {
		return bar, false
	}
	bar.TradeDate = d

	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
		{"vol", &bar.Volume},
	} {
		raw, ok := cell(f.name)
		if !ok {
			return bar, false
		}
		v, ok := number(raw)
		if !ok {
			return bar, false
		}
		*f.dst = v
	}

	return bar, true
}

// number accepts a JSON number or a numeric string; null is rejected
func number(raw json.RawMessage) (float64, bool) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
