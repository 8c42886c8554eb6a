package strategyconfig

import (
	"fmt"

	"github.com/wonny/jhquant/internal/strategy"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks the structural constraints of the file
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Active))
	for i, name := range cfg.Active {
		if name == "" {
			return ValidationError{fmt.Sprintf("active[%d]", i), "must not be empty"}
		}
		if seen[name] {
			return ValidationError{fmt.Sprintf("active[%d]", i), fmt.Sprintf("duplicate strategy %q", name)}
		}
		seen[name] = true
	}

	if cfg.TopN < 0 {
		return ValidationError{"top_n", "must be >= 0"}
	}

	for name := range cfg.Strategies {
		if name == "" {
			return ValidationError{"strategies", "strategy name must not be empty"}
		}
	}

	return nil
}

// Resolve checks every override block against the registry: the strategy must exist
// and its merged parameters must validate.
func Resolve(cfg *Config, reg *strategy.Registry) error {
	overrides := cfg.Overrides()
	for name, params := range overrides {
		entry, ok := reg.Lookup(name)
		if !ok {
			return ValidationError{"strategies." + name, "unknown strategy"}
		}
		if _, err := strategy.MergeParams(entry.Defaults, params); err != nil {
			return ValidationError{"strategies." + name, err.Error()}
		}
	}
	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config, reg *strategy.Registry) []Warning {
	var warnings []Warning

	for _, name := range cfg.Active {
		if _, ok := reg.Lookup(name); !ok {
			warnings = append(warnings, Warning{
				Code:    "UNKNOWN_ACTIVE",
				Message: fmt.Sprintf("active strategy %q is not registered and will be skipped", name),
			})
		}
	}

	for name := range cfg.Strategies {
		if !contains(cfg.Active, name) && len(cfg.Active) > 0 {
			warnings = append(warnings, Warning{
				Code:    "INACTIVE_OVERRIDE",
				Message: fmt.Sprintf("overrides for %q have no effect: strategy is not active", name),
			})
		}
	}

	return warnings
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
