package scoring

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// Params is the parameter set of the weighted extreme-shrink scorer.
// JSON keys match the STRATEGY_PARAMS override keys.
type Params struct {
	MinScore          float64      `json:"min_score"`
	MinHistory        int          `json:"min_history"` // 최소 보유 봉 수 (MA60)
	VolRatioThreshold float64      `json:"vol_ratio_threshold"`
	VolScoreLevels    VolumeLevels `json:"vol_score_levels"`

	DropSmall  Band `json:"drop_small"`
	DropMedium Band `json:"drop_medium"`
	DropLarge  Band `json:"drop_large"`

	TrendFarBelow float64 `json:"trend_far_below"` // |distance_ma60| 하한 (%)
	TrendBelow    float64 `json:"trend_below"`
	TrendAbove    float64 `json:"trend_above"` // MA60 이상일 때 점수

	VolatilityLow float64 `json:"volatility_low"`
	VolatilityMid float64 `json:"volatility_mid"`

	PriceLowMax float64 `json:"price_low_max"`
	PriceMidMax float64 `json:"price_mid_max"`

	ExtraBodySmall   float64 `json:"extra_body_small"`
	ExtraLowerShadow float64 `json:"extra_lower_shadow"`
	ExtraVolRatio    float64 `json:"extra_vol_ratio"`
}

// DefaultParams returns the baseline parameter set
func DefaultParams() Params {
	return Params{
		MinScore:          60,
		MinHistory:        60,
		VolRatioThreshold: 0.8,
		VolScoreLevels: VolumeLevels{
			{Threshold: 0.5, Score: 40},
			{Threshold: 0.6, Score: 38},
			{Threshold: 0.7, Score: 35},
			{Threshold: 0.8, Score: 30},
		},
		DropSmall:        Band{Lower: -2, Upper: 0, Score: 10},
		DropMedium:       Band{Lower: -4, Upper: -2, Score: 8},
		DropLarge:        Band{Lower: -100, Upper: -4, Score: 5},
		TrendFarBelow:    10,
		TrendBelow:       5,
		TrendAbove:       10,
		VolatilityLow:    3.0,
		VolatilityMid:    4.5,
		PriceLowMax:      30,
		PriceMidMax:      80,
		ExtraBodySmall:   1.0,
		ExtraLowerShadow: 1.5,
		ExtraVolRatio:    0.6,
	}
}

// ValidationError reports an unusable parameter
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the parameter set for values the scorer cannot use
func (p Params) Validate() error {
	if p.MinScore < 0 || p.MinScore > MaxTotal {
		return ValidationError{"min_score", fmt.Sprintf("must be in [0, %d]", MaxTotal)}
	}
	if p.MinHistory < 1 {
		return ValidationError{"min_history", "must be >= 1"}
	}
	if !(p.VolRatioThreshold > 0) || math.IsInf(p.VolRatioThreshold, 0) {
		return ValidationError{"vol_ratio_threshold", "must be > 0"}
	}
	if len(p.VolScoreLevels) == 0 {
		return ValidationError{"vol_score_levels", "at least one level required"}
	}

	bands := []struct {
		field string
		band  Band
	}{
		{"drop_small", p.DropSmall},
		{"drop_medium", p.DropMedium},
		{"drop_large", p.DropLarge},
	}
	for _, b := range bands {
		if b.band.Lower >= b.band.Upper {
			return ValidationError{b.field, "lower must be < upper"}
		}
	}

	if p.TrendBelow > p.TrendFarBelow {
		return ValidationError{"trend_below", "must be <= trend_far_below"}
	}
	if p.VolatilityLow > p.VolatilityMid {
		return ValidationError{"volatility_low", "must be <= volatility_mid"}
	}
	if p.PriceLowMax > p.PriceMidMax {
		return ValidationError{"price_low_max", "must be <= price_mid_max"}
	}

	return nil
}

// VolumeLevel maps a shrinkage ratio ceiling to a score
type VolumeLevel struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Score     float64 `json:"score" yaml:"score"`
}

// VolumeLevels is the shrinkage ratio lookup table.
// It decodes from either {"0.5": 40, ...} or [{"threshold": 0.5, "score": 40}, ...].
type VolumeLevels []VolumeLevel

// Lookup returns the score of the tightest level the ratio fits under
func (l VolumeLevels) Lookup(ratio, fallback float64) float64 {
	levels := slices.Clone(l)
	slices.SortFunc(levels, byThreshold)

	for _, lv := range levels {
		if ratio <= lv.Threshold {
			return lv.Score
		}
	}
	return fallback
}

// UnmarshalJSON accepts the object or the list form
func (l *VolumeLevels) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var m map[string]float64
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("vol_score_levels: %w", err)
		}
		levels := make(VolumeLevels, 0, len(m))
		for k, score := range m {
			th, err := strconv.ParseFloat(k, 64)
			if err != nil {
				return fmt.Errorf("vol_score_levels: threshold %q: %w", k, err)
			}
			levels = append(levels, VolumeLevel{Threshold: th, Score: score})
		}
		slices.SortFunc(levels, byThreshold)
		*l = levels
		return nil
	}

	var list []VolumeLevel
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("vol_score_levels: %w", err)
	}
	*l = list
	return nil
}

func byThreshold(a, b VolumeLevel) int {
	return cmp.Compare(a.Threshold, b.Threshold)
}

// Band is a half-open percentage range [Lower, Upper) with its score
type Band struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
	Score float64 `json:"score" yaml:"score"`
}

// Contains reports whether pct falls in [Lower, Upper)
func (b Band) Contains(pct float64) bool {
	return b.Lower <= pct && pct < b.Upper
}

// UnmarshalJSON accepts [lower, upper, score] or an object
func (b *Band) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var triple []float64
		if err := json.Unmarshal(data, &triple); err != nil {
			return err
		}
		if len(triple) != 3 {
			return fmt.Errorf("band: want [lower, upper, score], got %d values", len(triple))
		}
		*b = Band{Lower: triple[0], Upper: triple[1], Score: triple[2]}
		return nil
	}

	type plain Band
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = Band(p)
	return nil
}
