package strategy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/jhquant/internal/scoring"
)

// ErrUnknownParam is returned when an override names a key the parameter set lacks
var ErrUnknownParam = errors.New("unknown strategy parameter")

// Overrides maps strategy name -> parameter key -> value
// e.g. {"standard": {"min_score": 55}}
type Overrides map[string]map[string]any

// ParseOverrides decodes the STRATEGY_PARAMS JSON document
func ParseOverrides(raw string) (Overrides, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Overrides{}, nil
	}

	var o Overrides
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return nil, fmt.Errorf("parse strategy params: %w", err)
	}
	if o == nil {
		o = Overrides{}
	}
	return o, nil
}

// Merge layers other over o; other wins per strategy and key
func (o Overrides) Merge(other Overrides) Overrides {
	out := make(Overrides, len(o)+len(other))
	for _, src := range []Overrides{o, other} {
		for name, params := range src {
			dst, ok := out[name]
			if !ok {
				dst = make(map[string]any, len(params))
				out[name] = dst
			}
			for k, v := range params {
				dst[k] = v
			}
		}
	}
	return out
}

// MergeParams replaces only the keys present in overrides and keeps every other default.
// The merge is shallow: an override of vol_score_levels replaces the whole table.
func MergeParams(defaults scoring.Params, overrides map[string]any) (scoring.Params, error) {
	if len(overrides) == 0 {
		return defaults, nil
	}

	base, err := json.Marshal(defaults)
	if err != nil {
		return scoring.Params{}, fmt.Errorf("encode defaults: %w", err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &fields); err != nil {
		return scoring.Params{}, fmt.Errorf("decode defaults: %w", err)
	}

	for key, value := range overrides {
		if _, ok := fields[key]; !ok {
			return scoring.Params{}, fmt.Errorf("%w: %s", ErrUnknownParam, key)
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return scoring.Params{}, fmt.Errorf("encode %s: %w", key, err)
		}
		fields[key] = raw
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return scoring.Params{}, fmt.Errorf("encode merged params: %w", err)
	}

	var p scoring.Params
	dec := json.NewDecoder(bytes.NewReader(merged))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return scoring.Params{}, fmt.Errorf("decode merged params: %w", err)
	}

	if err := p.Validate(); err != nil {
		return scoring.Params{}, fmt.Errorf("invalid merged params: %w", err)
	}
	return p, nil
}
