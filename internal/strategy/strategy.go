package strategy

import (
	"cmp"
	"slices"
	"time"

	"github.com/wonny/jhquant/internal/contracts"
	"github.com/wonny/jhquant/internal/indicator"
	"github.com/wonny/jhquant/internal/scoring"
)

// Match is one qualifying row of the ranked result
type Match struct {
	contracts.Bar
	Indicators indicator.Set  `json:"indicators"`
	Score      scoring.Scored `json:"score"`
	Rank       int            `json:"rank"` // 1-based
	Reason     string         `json:"reason"`
}

// Report is the full outcome of one strategy run on one snapshot
type Report struct {
	Strategy      string                 `json:"strategy"`
	Date          time.Time              `json:"date"`
	Evaluated     int                    `json:"evaluated"`
	Dropped       int                    `json:"dropped"` // malformed input bars
	Matches       []Match                `json:"matches"`
	Eliminated    map[scoring.Reason]int `json:"eliminated"`
	BelowMinScore int                    `json:"below_min_score"`
}

// Empty reports whether nothing qualified
func (r Report) Empty() bool {
	return len(r.Matches) == 0
}

// Top returns at most n leading matches
func (r Report) Top(n int) []Match {
	if n < 0 || n >= len(r.Matches) {
		return r.Matches
	}
	return r.Matches[:n]
}

// Evaluate runs the weighted extreme-shrink screen over a multi-symbol history frame
// and ranks the rows of the latest trade date.
// ⭐ SSOT: 지표 → 최신일 → 채점 → 정렬
//
// The function is pure: bars are not modified and no I/O happens.
func Evaluate(name string, bars []contracts.Bar, p scoring.Params) Report {
	report := Report{
		Strategy:   name,
		Eliminated: make(map[scoring.Reason]int),
	}
	if len(bars) == 0 {
		return report
	}

	valid := make([]contracts.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Validate() != nil {
			report.Dropped++
			continue
		}
		valid = append(valid, b)
	}

	rows := indicator.Annotate(valid)
	latest, ok := indicator.LatestDate(rows)
	if !ok {
		return report
	}
	report.Date = latest

	depth := make(map[string]int)
	for _, r := range rows {
		depth[r.Symbol]++
	}

	// rows are symbol-ordered after Annotate, so matches start in symbol order
	for _, row := range rows {
		if !contracts.TradeDay(row.TradeDate).Equal(latest) {
			continue
		}
		report.Evaluated++

		if depth[row.Symbol] < p.MinHistory {
			report.Eliminated[scoring.ReasonShortHistory]++
			continue
		}

		switch rec := scoring.Evaluate(row, p).(type) {
		case scoring.Eliminated:
			report.Eliminated[rec.Reason]++
		case scoring.Scored:
			if !rec.Qualified {
				report.BelowMinScore++
				continue
			}
			report.Matches = append(report.Matches, Match{
				Bar:        row.Bar,
				Indicators: row.Indicators,
				Score:      rec,
				Reason:     rec.Reason,
			})
		}
	}

	rank(report.Matches)
	return report
}

// Run returns only the ranked matches
func Run(bars []contracts.Bar, p scoring.Params) []Match {
	return Evaluate("", bars, p).Matches
}

// rank sorts by total score descending, ties by symbol ascending
func rank(matches []Match) {
	slices.SortStableFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score.Total, a.Score.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Symbol, b.Symbol)
	})
	for i := range matches {
		matches[i].Rank = i + 1
	}
}
