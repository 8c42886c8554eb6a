package strategyconfig

import "time"

// Config는 선택 사항인 전략 설정 파일 (STRATEGY_CONFIG)
//
//	meta:
//	  name: jhquant-daily
//	  version: "2"
//	active: [standard, relaxed]
//	top_n: 10
//	strategies:
//	  standard:
//	    min_score: 65
type Config struct {
	Meta       Meta                      `yaml:"meta" json:"meta"`
	Active     []string                  `yaml:"active" json:"active"`
	TopN       int                       `yaml:"top_n" json:"top_n"`
	Strategies map[string]map[string]any `yaml:"strategies" json:"strategies"`
}

// Meta 메타 정보
type Meta struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

// RunSnapshot ties a run to the exact strategy file it used
type RunSnapshot struct {
	RunID      string    `json:"run_id"`
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	CreatedAt  time.Time `json:"created_at"`
}
