package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/jhquant/internal/audit"
	"github.com/wonny/jhquant/internal/scoring"
)

func TestMaskPassword(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://quant:secret@db:5432/jhquant", "postgres://quant:xxxxx@db:5432/jhquant"},
		{"postgres://quant@db/jhquant", "postgres://quant@db/jhquant"},
		{"postgres://db/jhquant?sslmode=disable", "postgres://db/jhquant?sslmode=disable"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, maskPassword(tt.in))
	}
}

func TestFormatEliminated(t *testing.T) {
	got := formatEliminated(map[scoring.Reason]int{
		scoring.ReasonNotRed:   3,
		scoring.ReasonNoShrink: 7,
	})
	assert.Equal(t, "{未极致缩量:7 非绿盘:3}", got)
	assert.Equal(t, "{}", formatEliminated(nil))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "start", "backfill", "strategies", "test-db", "runs"} {
		assert.True(t, names[want], want)
	}

	f := runCmd.Flags()
	for _, flag := range []string{"test", "dry-run", "skip-backfill", "date"} {
		assert.NotNil(t, f.Lookup(flag), flag)
	}
	assert.NotNil(t, backfillCmd.Flags().Lookup("days"))
	assert.NotNil(t, runsCmd.Flags().Lookup("summary"))
}

func TestFormatFrequent(t *testing.T) {
	got := formatFrequent([]audit.SymbolCount{{Symbol: "000001.SZ", Count: 3}, {Symbol: "600000.SH", Count: 1}})
	assert.Equal(t, "000001.SZ×3 600000.SH×1", got)
	assert.Equal(t, "", formatFrequent(nil))
}
