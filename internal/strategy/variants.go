package strategy

import (
	"github.com/wonny/jhquant/internal/contracts"
	"github.com/wonny/jhquant/internal/scoring"
)

// Registered strategy names
const (
	NameStandard = "standard"
	NameRelaxed  = "relaxed"
)

// StandardParams is the baseline weighted extreme-shrink screen
func StandardParams() scoring.Params {
	return scoring.DefaultParams()
}

// RelaxedParams admits milder shrinkage and lower totals
func RelaxedParams() scoring.Params {
	p := scoring.DefaultParams()
	p.MinScore = 50
	p.VolRatioThreshold = 0.9
	return p
}

// DefaultRegistry registers the built-in variants
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, e := range []Entry{
		{Name: NameStandard, Title: "加权评分-极致缩量（标准）", Defaults: StandardParams()},
		{Name: NameRelaxed, Title: "加权评分-极致缩量（宽松）", Defaults: RelaxedParams()},
	} {
		name := e.Name
		e.Run = func(bars []contracts.Bar, p scoring.Params) Report {
			return Evaluate(name, bars, p)
		}
		// 내장 전략은 항상 유효해야 함
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
	return r
}
