package indicator

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/jhquant/internal/contracts"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func series(symbol string, n int, fn func(i int) contracts.Bar) []contracts.Bar {
	bars := make([]contracts.Bar, n)
	for i := 0; i < n; i++ {
		b := fn(i)
		b.Symbol = symbol
		b.TradeDate = day0.AddDate(0, 0, i)
		bars[i] = b
	}
	return bars
}

func flat(i int) contracts.Bar {
	return contracts.Bar{Open: 11, High: 11, Low: 10, Close: 10, Volume: 1000}
}

func TestValue(t *testing.T) {
	v, ok := Some(1.5).Get()
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)

	assert.False(t, None().Valid())
	assert.False(t, Some(math.NaN()).Valid())
	assert.False(t, Some(math.Inf(-1)).Valid())
	assert.Equal(t, 999.0, None().Or(999))
	assert.Equal(t, 0.0, Some(0).Or(999))
}

func TestValue_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Value `json:"a"`
		B Value `json:"b"`
	}{Some(2.5), None()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2.5,"b":null}`, string(data))

	var got struct {
		A Value `json:"a"`
		B Value `json:"b"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, Some(2.5), got.A)
	assert.False(t, got.B.Valid())
}

func TestPercentChange_ZeroBase(t *testing.T) {
	assert.False(t, PercentChange(Some(5), Some(0)).Valid())
	assert.False(t, PercentChange(Some(5), None()).Valid())
	assert.InDelta(t, -10.0, PercentChange(Some(9), Some(10)).Or(0), 1e-9)
}

func TestRollingMean(t *testing.T) {
	xs := []Value{Some(1), Some(2), Some(3), Some(4)}
	got := RollingMean(xs, 3)

	assert.False(t, got[0].Valid())
	assert.False(t, got[1].Valid())
	assert.InDelta(t, 2.0, got[2].Or(0), 1e-12)
	assert.InDelta(t, 3.0, got[3].Or(0), 1e-12)
}

func TestRollingMean_MissingInWindow(t *testing.T) {
	xs := []Value{Some(1), None(), Some(3), Some(4), Some(5)}
	got := RollingMean(xs, 2)

	assert.False(t, got[1].Valid(), "window containing a missing reading is missing")
	assert.False(t, got[2].Valid())
	assert.InDelta(t, 3.5, got[3].Or(0), 1e-12)
	assert.InDelta(t, 4.5, got[4].Or(0), 1e-12)
}

func TestShiftThenRollingMin(t *testing.T) {
	xs := []Value{Some(5), Some(3), Some(4), Some(1)}
	got := RollingMin(Shift(xs, 1), 2)

	assert.False(t, got[0].Valid())
	assert.False(t, got[1].Valid())
	assert.InDelta(t, 3.0, got[2].Or(0), 1e-12) // min(5, 3)
	assert.InDelta(t, 3.0, got[3].Or(0), 1e-12) // min(3, 4), excludes current 1
}

func TestAnnotate_Empty(t *testing.T) {
	assert.Nil(t, Annotate(nil))
}

func TestAnnotate_WindowDepths(t *testing.T) {
	rows := Annotate(series("000001.SZ", 61, flat))
	require.Len(t, rows, 61)

	// MA60 first defined on the 60th bar
	assert.False(t, rows[58].Indicators.MA60.Valid())
	assert.True(t, rows[59].Indicators.MA60.Valid())

	// vol_ma20 on the 20th bar, prev_vol_min_20 on the 21st
	assert.False(t, rows[18].Indicators.VolMA20.Valid())
	assert.True(t, rows[19].Indicators.VolMA20.Valid())
	assert.False(t, rows[19].Indicators.PrevVolMin20.Valid())
	assert.True(t, rows[20].Indicators.PrevVolMin20.Valid())

	// amp_ma15 on the 15th bar
	assert.False(t, rows[13].Indicators.AmpMA15.Valid())
	assert.True(t, rows[14].Indicators.AmpMA15.Valid())

	// pct_change missing on the first bar only
	assert.False(t, rows[0].Indicators.PctChange.Valid())
	assert.True(t, rows[1].Indicators.PctChange.Valid())
}

func TestAnnotate_Values(t *testing.T) {
	bars := series("000001.SZ", 61, flat)
	bars[60] = contracts.Bar{
		Symbol:    "000001.SZ",
		TradeDate: bars[60].TradeDate,
		Open:      10, High: 10.2, Low: 9, Close: 9, Volume: 50,
	}

	rows := Annotate(bars)
	last := rows[60].Indicators

	assert.InDelta(t, (59*10.0+9)/60, last.MA60.Or(0), 1e-9)
	assert.InDelta(t, (19*1000.0+50)/20, last.VolMA20.Or(0), 1e-9)
	assert.InDelta(t, 1000.0, last.PrevVolMin20.Or(0), 1e-9, "current bar excluded from its own minimum")
	assert.InDelta(t, (10.2-9)/9*100, last.Amplitude.Or(0), 1e-9)
	assert.InDelta(t, -10.0, last.PctChange.Or(0), 1e-9)

	ma60 := (59*10.0 + 9) / 60
	assert.InDelta(t, (9-ma60)/ma60*100, last.DistanceMA60.Or(0), 1e-9)
	assert.InDelta(t, 50/((19*1000.0+50)/20), last.VolRatio.Or(0), 1e-9)

	// 14 flat bars at 10% amplitude + the last one
	assert.InDelta(t, (14*10.0+(10.2-9)/9*100)/15, last.AmpMA15.Or(0), 1e-9)
}

func TestAnnotate_SortsAndPartitions(t *testing.T) {
	a := series("A", 25, func(i int) contracts.Bar {
		return contracts.Bar{Open: 2, High: 2, Low: 1, Close: 1, Volume: float64(100 + i)}
	})
	b := series("B", 25, func(i int) contracts.Bar {
		return contracts.Bar{Open: 2, High: 2, Low: 1, Close: 1, Volume: 1}
	})

	// interleave in reverse order
	var input []contracts.Bar
	for i := 24; i >= 0; i-- {
		input = append(input, b[i], a[i])
	}

	rows := Annotate(input)
	require.Len(t, rows, 50)

	for i := 0; i < 25; i++ {
		assert.Equal(t, "A", rows[i].Symbol)
		assert.Equal(t, "B", rows[25+i].Symbol)
		if i > 0 {
			assert.True(t, rows[i].TradeDate.After(rows[i-1].TradeDate))
		}
	}

	// A's prev_vol_min_20 must come only from A's own volumes (min of 100..119 for index 20)
	assert.InDelta(t, 100.0, rows[20].Indicators.PrevVolMin20.Or(0), 1e-9)
	assert.InDelta(t, 1.0, rows[45].Indicators.PrevVolMin20.Or(0), 1e-9)
}

func TestAnnotate_DoesNotMutateInput(t *testing.T) {
	input := []contracts.Bar{
		{Symbol: "B", TradeDate: day0.AddDate(0, 0, 1), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Symbol: "A", TradeDate: day0, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
	}
	Annotate(input)

	assert.Equal(t, "B", input[0].Symbol)
	assert.Equal(t, "A", input[1].Symbol)
}

func TestAnnotate_DuplicateKeepsLast(t *testing.T) {
	input := []contracts.Bar{
		{Symbol: "A", TradeDate: day0, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Symbol: "A", TradeDate: day0, Open: 2, High: 2, Low: 2, Close: 2, Volume: 2},
	}
	rows := Annotate(input)

	require.Len(t, rows, 1)
	assert.Equal(t, 2.0, rows[0].Close)
}

func TestLatestDate(t *testing.T) {
	_, ok := LatestDate(nil)
	assert.False(t, ok)

	rows := Annotate(append(series("A", 3, flat), series("B", 5, flat)...))
	latest, ok := LatestDate(rows)
	require.True(t, ok)
	assert.True(t, latest.Equal(day0.AddDate(0, 0, 4)))
}
