package indicator

import (
	"cmp"
	"slices"
	"time"

	"github.com/wonny/jhquant/internal/contracts"
)

// Rolling window depths
const (
	WindowMA60       = 60
	WindowVolMA20    = 20
	WindowPrevVolMin = 20
	WindowAmpMA15    = 15
)

// Set holds the derived readings attached to one bar
type Set struct {
	MA60         Value `json:"ma60"`
	VolMA20      Value `json:"vol_ma20"`
	PrevVolMin20 Value `json:"prev_vol_min_20"`
	Amplitude    Value `json:"amplitude"`
	AmpMA15      Value `json:"amp_ma15"`
	PctChange    Value `json:"pct_change"`
	DistanceMA60 Value `json:"distance_ma60"`
	VolRatio     Value `json:"vol_ratio"`
}

// Annotated is a bar with its indicator set
type Annotated struct {
	contracts.Bar
	Indicators Set `json:"indicators"`
}

// Annotate derives the indicator set for every bar.
// ⭐ SSOT: 지표 계산은 여기서만
//
// The input is not modified. Bars are partitioned by symbol and ordered by trade date
// before any window is computed; each symbol only sees its own history. When the same
// (symbol, trade_date) appears more than once the last occurrence wins.
func Annotate(bars []contracts.Bar) []Annotated {
	if len(bars) == 0 {
		return nil
	}

	sorted := dedupe(bars)
	slices.SortStableFunc(sorted, func(a, b contracts.Bar) int {
		if c := cmp.Compare(a.Symbol, b.Symbol); c != 0 {
			return c
		}
		return contracts.TradeDay(a.TradeDate).Compare(contracts.TradeDay(b.TradeDate))
	})

	out := make([]Annotated, 0, len(sorted))
	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sorted[end].Symbol == sorted[start].Symbol {
			end++
		}
		out = append(out, annotateSeries(sorted[start:end])...)
		start = end
	}
	return out
}

// annotateSeries computes indicators for one symbol's date-ordered bars
func annotateSeries(series []contracts.Bar) []Annotated {
	n := len(series)
	closes := make([]Value, n)
	volumes := make([]Value, n)
	amplitude := make([]Value, n)
	for i, b := range series {
		closes[i] = Some(b.Close)
		volumes[i] = Some(b.Volume)
		// 진폭 = (고가 - 저가) / 저가 * 100
		amplitude[i] = PercentChange(Some(b.High), Some(b.Low))
	}

	ma60 := RollingMean(closes, WindowMA60)
	volMA20 := RollingMean(volumes, WindowVolMA20)
	prevVolMin := RollingMin(Shift(volumes, 1), WindowPrevVolMin)
	ampMA15 := RollingMean(amplitude, WindowAmpMA15)

	out := make([]Annotated, n)
	for i, b := range series {
		pct := None()
		if i > 0 {
			pct = PercentChange(closes[i], closes[i-1])
		}

		out[i] = Annotated{
			Bar: b,
			Indicators: Set{
				MA60:         ma60[i],
				VolMA20:      volMA20[i],
				PrevVolMin20: prevVolMin[i],
				Amplitude:    amplitude[i],
				AmpMA15:      ampMA15[i],
				PctChange:    pct,
				DistanceMA60: PercentChange(closes[i], ma60[i]),
				VolRatio:     Ratio(volumes[i], volMA20[i]),
			},
		}
	}
	return out
}

// dedupe copies bars keeping the last occurrence of each natural key
func dedupe(bars []contracts.Bar) []contracts.Bar {
	last := make(map[contracts.BarKey]int, len(bars))
	for i, b := range bars {
		last[b.Key()] = i
	}

	out := make([]contracts.Bar, 0, len(last))
	for i, b := range bars {
		if last[b.Key()] == i {
			out = append(out, b)
		}
	}
	return out
}

// LatestDate returns the most recent trade date across all rows
func LatestDate(rows []Annotated) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, r := range rows {
		d := contracts.TradeDay(r.TradeDate)
		if !found || d.After(latest) {
			latest = d
			found = true
		}
	}
	return latest, found
}
