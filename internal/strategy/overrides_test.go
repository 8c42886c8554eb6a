package strategy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/jhquant/internal/scoring"
)

func TestParseOverrides(t *testing.T) {
	o, err := ParseOverrides(`{"standard": {"min_score": 55}}`)
	require.NoError(t, err)
	assert.Equal(t, 55.0, o["standard"]["min_score"])

	o, err = ParseOverrides("  ")
	require.NoError(t, err)
	assert.Empty(t, o)

	o, err = ParseOverrides("null")
	require.NoError(t, err)
	assert.NotNil(t, o)

	_, err = ParseOverrides(`{"standard": `)
	assert.Error(t, err)
}

func TestOverrides_Merge(t *testing.T) {
	base := Overrides{
		"standard": {"min_score": 55, "min_history": 70},
		"relaxed":  {"min_score": 45},
	}
	top := Overrides{"standard": {"min_score": 65}}

	got := base.Merge(top)
	assert.Equal(t, 65, got["standard"]["min_score"])
	assert.Equal(t, 70, got["standard"]["min_history"])
	assert.Equal(t, 45, got["relaxed"]["min_score"])
	assert.Equal(t, 55, base["standard"]["min_score"], "receiver untouched")
}

func TestMergeParams_ReplacesOnlyGivenKeys(t *testing.T) {
	defaults := scoring.DefaultParams()
	p, err := MergeParams(defaults, map[string]any{"min_score": 55.0})
	require.NoError(t, err)

	want := defaults
	want.MinScore = 55
	assert.Equal(t, want, p)
}

func TestMergeParams_NoOverrides(t *testing.T) {
	defaults := scoring.DefaultParams()
	p, err := MergeParams(defaults, nil)
	require.NoError(t, err)
	assert.Equal(t, defaults, p)
}

func TestMergeParams_TableOverride(t *testing.T) {
	p, err := MergeParams(scoring.DefaultParams(), map[string]any{
		"vol_score_levels": map[string]any{"0.4": 45, "0.8": 30},
		"drop_small":       []any{-1.5, 0, 12},
	})
	require.NoError(t, err)

	assert.Equal(t, scoring.VolumeLevels{{Threshold: 0.4, Score: 45}, {Threshold: 0.8, Score: 30}}, p.VolScoreLevels)
	assert.Equal(t, scoring.Band{Lower: -1.5, Upper: 0, Score: 12}, p.DropSmall)
	assert.Equal(t, scoring.DefaultParams().DropMedium, p.DropMedium)
}

func TestMergeParams_UnknownKey(t *testing.T) {
	_, err := MergeParams(scoring.DefaultParams(), map[string]any{"min_scroe": 55})
	assert.True(t, errors.Is(err, ErrUnknownParam))
}

func TestMergeParams_InvalidResult(t *testing.T) {
	_, err := MergeParams(scoring.DefaultParams(), map[string]any{"min_score": 150})
	require.Error(t, err)

	var verr scoring.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "min_score", verr.Field)
}

func TestMergeParams_WrongType(t *testing.T) {
	_, err := MergeParams(scoring.DefaultParams(), map[string]any{"min_history": "sixty"})
	assert.Error(t, err)
}

func TestEntry_ParamsTitleThenName(t *testing.T) {
	e, ok := DefaultRegistry().Lookup(NameStandard)
	require.True(t, ok)

	p, err := e.Params(Overrides{
		e.Title:      {"min_score": 55, "min_history": 80},
		NameStandard: {"min_score": 65},
	})
	require.NoError(t, err)
	assert.Equal(t, 65.0, p.MinScore)
	assert.Equal(t, 80, p.MinHistory)
}
