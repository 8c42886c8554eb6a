package scoring

import (
	"fmt"
	"math"
	"strconv"

	"github.com/wonny/jhquant/internal/indicator"
)

// Fixed point values of the sub-scores
const (
	MaxTotal = 100

	DefaultVolumeScore = 30

	TrendScoreFarBelow = 15
	TrendScoreBelow    = 12
	TrendScoreNear     = 8

	VolatilityScoreLow  = 10
	VolatilityScoreMid  = 6
	VolatilityScoreHigh = 3
	// missing amp_ma15 always lands in the high-volatility tier
	missingAmplitude = 999.0

	PriceScoreLow  = 10
	PriceScoreMid  = 5
	PriceScoreHigh = 0

	BonusStep = 5
	BonusCap  = 15
)

// Reason tags an elimination
type Reason string

const (
	ReasonNotRed       Reason = "非绿盘"   // close >= open
	ReasonNoShrink     Reason = "未极致缩量" // volume not below prev_vol_min_20 * threshold
	ReasonShortHistory Reason = "历史不足"  // fewer bars than min_history
)

// Record is the outcome of scoring one row: Eliminated or Scored
type Record interface {
	record()
}

// Eliminated is a row that failed a hard gate
type Eliminated struct {
	Reason Reason `json:"reason"`
}

// SubScores is the breakdown behind a total
type SubScores struct {
	Volume     float64 `json:"volume"`
	Drop       float64 `json:"drop"`
	Trend      float64 `json:"trend"`
	Volatility float64 `json:"volatility"`
	Price      float64 `json:"price"`
	Bonus      float64 `json:"bonus"`
}

// Sum adds the sub-scores
func (s SubScores) Sum() float64 {
	return s.Volume + s.Drop + s.Trend + s.Volatility + s.Price + s.Bonus
}

// Scored is a row that passed both gates
type Scored struct {
	Total     float64         `json:"total"`
	Sub       SubScores       `json:"sub_scores"`
	Ratio     float64         `json:"ratio"` // volume / prev_vol_min_20
	PctChange indicator.Value `json:"pct_change"`
	Qualified bool            `json:"qualified"` // total >= min_score
	Reason    string          `json:"reason,omitempty"`
}

func (Eliminated) record() {}
func (Scored) record()     {}

// Evaluate scores one annotated row against p.
// ⭐ SSOT: 게이트 + 가중 점수는 여기서만
func Evaluate(row indicator.Annotated, p Params) Record {
	ind := row.Indicators

	// Gate 1: 음봉 (close < open)
	if !row.IsRed() {
		return Eliminated{Reason: ReasonNotRed}
	}

	// Gate 2: 직전 20봉 최저 거래량 대비 극단적 축소
	prevMin, ok := ind.PrevVolMin20.Get()
	if !ok || row.Volume >= prevMin*p.VolRatioThreshold {
		return Eliminated{Reason: ReasonNoShrink}
	}

	ratio := row.Volume / prevMin
	sub := SubScores{
		Volume:     p.VolScoreLevels.Lookup(ratio, DefaultVolumeScore),
		Drop:       dropScore(ind.PctChange, p),
		Trend:      trendScore(ind.DistanceMA60, p),
		Volatility: volatilityScore(ind.AmpMA15, p),
		Price:      priceScore(row.Close, p),
		Bonus:      bonusScore(row, p),
	}

	total := math.Max(0, math.Min(MaxTotal, sub.Sum()))
	s := Scored{
		Total:     total,
		Sub:       sub,
		Ratio:     ratio,
		PctChange: ind.PctChange,
		Qualified: total >= p.MinScore,
	}
	if s.Qualified {
		s.Reason = FormatReason(total, ratio, ind.PctChange)
	}
	return s
}

// FormatReason renders the user-facing summary: score, shrink ratio (2dp), drop (1dp)
func FormatReason(total, ratio float64, pct indicator.Value) string {
	drop := "nan"
	if v, ok := pct.Get(); ok {
		drop = strconv.FormatFloat(v, 'f', 1, 64)
	}
	return fmt.Sprintf("极致缩量%s分|前低%.2f倍|跌%s%%", strconv.FormatFloat(total, 'f', -1, 64), ratio, drop)
}

// dropScore picks the first matching band; anything else is a large drop
func dropScore(pct indicator.Value, p Params) float64 {
	v, ok := pct.Get()
	if !ok {
		return p.DropLarge.Score
	}
	switch {
	case p.DropSmall.Contains(v):
		return p.DropSmall.Score
	case p.DropMedium.Contains(v):
		return p.DropMedium.Score
	default:
		return p.DropLarge.Score
	}
}

func trendScore(distance indicator.Value, p Params) float64 {
	// missing distance counts as sitting on the average
	dist := distance.Or(0)
	if dist >= 0 {
		return p.TrendAbove
	}

	abs := math.Abs(dist)
	switch {
	case abs >= p.TrendFarBelow:
		return TrendScoreFarBelow
	case abs >= p.TrendBelow:
		return TrendScoreBelow
	default:
		return TrendScoreNear
	}
}

func volatilityScore(ampMA15 indicator.Value, p Params) float64 {
	amp := ampMA15.Or(missingAmplitude)
	switch {
	case amp < p.VolatilityLow:
		return VolatilityScoreLow
	case amp < p.VolatilityMid:
		return VolatilityScoreMid
	default:
		return VolatilityScoreHigh
	}
}

func priceScore(price float64, p Params) float64 {
	switch {
	case price <= p.PriceLowMax:
		return PriceScoreLow
	case price <= p.PriceMidMax:
		return PriceScoreMid
	default:
		return PriceScoreHigh
	}
}

// bonusScore: 작은 몸통, 긴 아래꼬리, 낮은 거래량 비율 (각 +5, 최대 15)
func bonusScore(row indicator.Annotated, p Params) float64 {
	var bonus float64

	body := math.Abs(row.Close-row.Open) / row.Open * 100
	if body < p.ExtraBodySmall {
		bonus += BonusStep
	}

	lowerShadow := (math.Min(row.Open, row.Close) - row.Low) / row.Low * 100
	if lowerShadow > p.ExtraLowerShadow {
		bonus += BonusStep
	}

	if vr, ok := row.Indicators.VolRatio.Get(); ok && vr < p.ExtraVolRatio {
		bonus += BonusStep
	}

	return math.Min(BonusCap, bonus)
}
