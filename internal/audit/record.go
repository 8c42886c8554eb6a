package audit

import (
	"sort"
	"time"

	"github.com/wonny/jhquant/internal/runner"
)

// Hit is one ranked match kept in the run journal
type Hit struct {
	Strategy string  `json:"strategy"`
	Rank     int     `json:"rank"`
	Symbol   string  `json:"ts_code"`
	Close    float64 `json:"close"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason,omitempty"`
}

// RunRecord is the persisted summary of one screening run
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Date       time.Time `json:"date"`
	Test       bool      `json:"test"`
	Outcome    string    `json:"outcome"`
	Rows       int64     `json:"rows"`
	Sent       int       `json:"sent"`
	Skipped    []string  `json:"skipped"`
	ConfigHash string    `json:"config_hash,omitempty"`
	Hits       []Hit     `json:"hits"`
	Messages   []string  `json:"messages"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// FromResult flattens a run result into a journal record.
// Hits keep strategy order then rank order.
func FromResult(res *runner.RunResult) RunRecord {
	rec := RunRecord{
		RunID:      res.RunID,
		Test:       res.Test,
		Outcome:    res.Outcome,
		Rows:       res.Rows,
		Sent:       res.Sent,
		Skipped:    append([]string{}, res.Skipped...),
		Hits:       []Hit{},
		Messages:   append([]string{}, res.Messages...),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if d, err := time.Parse(runner.MessageDateLayout, res.Date); err == nil {
		rec.Date = d
	}

	for _, snap := range res.Snapshots {
		if rec.ConfigHash == "" {
			rec.ConfigHash = snap.ConfigHash
		}
		rec.Hits = append(rec.Hits, hitsOf(snap)...)
	}
	return rec
}

func hitsOf(snap runner.Snapshot) []Hit {
	hits := make([]Hit, 0, len(snap.Report.Matches))
	for _, m := range snap.Report.Matches {
		hits = append(hits, Hit{
			Strategy: snap.Strategy,
			Rank:     m.Rank,
			Symbol:   m.Symbol,
			Close:    m.Close,
			Score:    m.Score.Total,
			Reason:   m.Reason,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Rank < hits[j].Rank })
	return hits
}
