package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/jhquant/internal/strategy"
	"github.com/wonny/jhquant/internal/strategyconfig"
)

// strategiesCmd lists the registry with effective parameters; no database needed
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "등록된 전략과 유효 파라미터 조회",
	Long: `레지스트리의 전략 목록과 기본값 ← STRATEGY_CONFIG ← STRATEGY_PARAMS 순으로
병합된 유효 파라미터를 출력합니다.

Example:
  go run ./cmd/quant strategies`,
	RunE: listStrategies,
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}

func listStrategies(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg := strategy.DefaultRegistry()

	overrides := strategy.Overrides{}
	active := cfg.Strategy.Active
	if cfg.Strategy.ConfigPath != "" {
		sc, _, err := strategyconfig.Load(cfg.Strategy.ConfigPath)
		if err != nil {
			return err
		}
		overrides = sc.Overrides()
		if len(sc.Active) > 0 && !cfg.Strategy.ActiveSet {
			active = sc.Active
		}
	}
	env, err := strategy.ParseOverrides(cfg.Strategy.ParamsJSON)
	if err != nil {
		PrintWarning("STRATEGY_PARAMS ignored: " + err.Error())
	} else {
		overrides = overrides.Merge(env)
	}

	isActive := make(map[string]bool)
	for _, name := range active {
		if e, ok := reg.Lookup(name); ok {
			isActive[e.Name] = true
		} else {
			PrintWarning(fmt.Sprintf("active strategy %q is not registered", name))
		}
	}

	for _, e := range reg.Entries() {
		mark := " "
		if isActive[e.Name] {
			mark = "*"
		}
		PrintSeparator()
		fmt.Printf("%s %s  (%s)\n", mark, e.Name, e.DisplayName())

		p, err := e.Params(overrides)
		if err != nil {
			PrintWarning("invalid parameters: " + err.Error())
			continue
		}
		out, err := json.MarshalIndent(p, "  ", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("  %s\n", out)
	}
	PrintSeparator()
	return nil
}
