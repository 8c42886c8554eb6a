package audit

import (
	"sort"
	"time"
)

// topSymbols bounds SymbolCount entries per strategy
const topSymbols = 5

// SymbolCount is how often a symbol was selected
type SymbolCount struct {
	Symbol string `json:"ts_code"`
	Count  int    `json:"count"`
}

// StrategyStats aggregates the journal of one strategy
type StrategyStats struct {
	Strategy string        `json:"strategy"`
	HitDays  int           `json:"hit_days"` // distinct dates with at least one match
	Hits     int           `json:"hits"`
	AvgScore float64       `json:"avg_score"`
	LastHit  time.Time     `json:"last_hit"`
	Frequent []SymbolCount `json:"frequent"`
}

// Summarize aggregates hits per strategy. Test runs are ignored and a date
// counted twice (re-runs) contributes its symbols once.
func Summarize(records []RunRecord) []StrategyStats {
	byName := make(map[string]*StrategyStats)
	seen := make(map[string]bool) // strategy|date|symbol
	days := make(map[string]bool) // strategy|date
	scores := make(map[string]float64)
	symbols := make(map[string]map[string]int)

	for _, rec := range records {
		if rec.Test {
			continue
		}
		date := rec.Date.Format("2006-01-02")
		for _, h := range rec.Hits {
			key := h.Strategy + "|" + date + "|" + h.Symbol
			if seen[key] {
				continue
			}
			seen[key] = true

			st, ok := byName[h.Strategy]
			if !ok {
				st = &StrategyStats{Strategy: h.Strategy}
				byName[h.Strategy] = st
				symbols[h.Strategy] = map[string]int{}
			}
			if !days[h.Strategy+"|"+date] {
				days[h.Strategy+"|"+date] = true
				st.HitDays++
			}
			st.Hits++
			scores[h.Strategy] += h.Score
			symbols[h.Strategy][h.Symbol]++
			if rec.Date.After(st.LastHit) {
				st.LastHit = rec.Date
			}
		}
	}

	out := make([]StrategyStats, 0, len(byName))
	for name, st := range byName {
		st.AvgScore = scores[name] / float64(st.Hits)
		st.Frequent = frequent(symbols[name])
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}

func frequent(counts map[string]int) []SymbolCount {
	list := make([]SymbolCount, 0, len(counts))
	for sym, n := range counts {
		list = append(list, SymbolCount{Symbol: sym, Count: n})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].Symbol < list[j].Symbol
	})
	if len(list) > topSymbols {
		list = list[:topSymbols]
	}
	return list
}
