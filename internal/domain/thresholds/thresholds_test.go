package thresholds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpsignal/crashwatch/internal/domain/regime"
)

func TestDefault(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	assert.Equal(t, 0.50, s.EntryTrend)
	assert.Equal(t, 0.35, s.EntryCrash)
	assert.Equal(t, 0.40, s.ExitCrash)
	assert.Equal(t, 0.30, s.ExitTrend)
}

func TestValidate(t *testing.T) {
	s := Default()
	s.ExitCrash = 1.2
	assert.Error(t, s.Validate())

	s = Default()
	s.ExitTrend = 0.6
	assert.Error(t, s.Validate(), "exit above entry would churn every position")
}

func TestResolve_BaseUntouched(t *testing.T) {
	base := Default()
	for _, r := range []regime.Regime{regime.Bull, regime.Bear, regime.Consolidation, regime.Crash} {
		_ = Resolve(base, r)
	}
	assert.Equal(t, Default(), base)
}

func TestResolve_Consolidation(t *testing.T) {
	assert.Equal(t, Default(), Resolve(Default(), regime.Consolidation), "consolidation passes base levels through")
}

func TestResolve_PerRegime(t *testing.T) {
	base := Default()
	bull := Resolve(base, regime.Bull)
	bear := Resolve(base, regime.Bear)
	crash := Resolve(base, regime.Crash)

	assert.InDelta(t, 0.34, bull.ExitCrash, 1e-12)
	assert.InDelta(t, 0.46, bear.ExitCrash, 1e-12)
	assert.InDelta(t, 0.20, crash.ExitCrash, 1e-12)
	assert.InDelta(t, 0.45, crash.ExitTrend, 1e-12)

	// Entry levels never adapt.
	for _, s := range []Set{bull, bear, crash} {
		assert.Equal(t, base.EntryTrend, s.EntryTrend)
		assert.Equal(t, base.EntryCrash, s.EntryCrash)
	}
}

func TestResolve_DirectionProperties(t *testing.T) {
	base := Default()
	bull := Resolve(base, regime.Bull)
	bear := Resolve(base, regime.Bear)
	cons := Resolve(base, regime.Consolidation)
	crash := Resolve(base, regime.Crash)

	// Crash mode exits at the lowest probability and the highest trend
	// reading of any regime.
	for _, s := range []Set{bull, bear, cons} {
		assert.Less(t, crash.ExitCrash, s.ExitCrash)
		assert.GreaterOrEqual(t, crash.ExitTrend, s.ExitTrend)
	}
	assert.GreaterOrEqual(t, bear.ExitCrash, bull.ExitCrash, "bears tolerate more crash probability than bulls")
}

func TestResolve_CrashTrendExitCapped(t *testing.T) {
	base := Set{EntryTrend: 0.50, EntryCrash: 0.35, ExitCrash: 0.40, ExitTrend: 0.45}
	got := Resolve(base, regime.Crash)
	assert.Equal(t, base.EntryTrend, got.ExitTrend, "raised trend exit is capped at the entry level")
	assert.NoError(t, got.Validate())
}
