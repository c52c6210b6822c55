package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpsignal/crashwatch/internal/domain/factors"
)

func rowsWithRaw(raws ...float64) []factors.Row {
	// A row with only VolCascade set scores raw*0.25 under default
	// weights, so drive VolCascade with raw/0.25 clipped upstream.
	rows := make([]factors.Row, len(raws))
	for i, r := range raws {
		rows[i] = factors.Row{VolCascade: r * 4}
	}
	return rows
}

func TestCompute_RawIsClippedWeightedSum(t *testing.T) {
	rows := []factors.Row{
		{}, // no signal
		{VolCascade: 1, NegMomentum: 1, TrendExhaustion: 1, FundingStress: 1,
			VolumeDivergence: 1, FundingAccel: 1, FundingVelocity: 1, FundingDivergence: 1},
		{VolCascade: 0.5},
	}
	c, err := Compute(rows, factors.DefaultWeights(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.Raw[0])
	assert.Equal(t, 1.0, c.Raw[1], "weights sum to 1.3, raw clips at 1")
	assert.InDelta(t, 0.125, c.Raw[2], 1e-12)
}

func TestCompute_TrailingSmoothing(t *testing.T) {
	c, err := Compute(rowsWithRaw(0.2, 0.4, 0.6, 0.8, 1.0), factors.DefaultWeights(), 4)
	require.NoError(t, err)

	// Partial windows at the start, then a strict trailing SMA(4).
	assert.InDelta(t, 0.2, c.Probability[0], 1e-9)
	assert.InDelta(t, 0.3, c.Probability[1], 1e-9)
	assert.InDelta(t, 0.4, c.Probability[2], 1e-9)
	assert.InDelta(t, 0.5, c.Probability[3], 1e-9)
	assert.InDelta(t, 0.7, c.Probability[4], 1e-9)
	assert.InDelta(t, 0.7, c.Last(), 1e-9)
}

func TestCompute_NoLookAhead(t *testing.T) {
	full, err := Compute(rowsWithRaw(0.1, 0.2, 0.9, 0.1, 0.3, 0.8), factors.DefaultWeights(), 4)
	require.NoError(t, err)
	short, err := Compute(rowsWithRaw(0.1, 0.2, 0.9, 0.1), factors.DefaultWeights(), 4)
	require.NoError(t, err)

	for i := range short.Probability {
		assert.Equal(t, short.Probability[i], full.Probability[i],
			"probability at bar %d must not depend on later bars", i)
	}
}

func TestCompute_RejectsBadInputs(t *testing.T) {
	_, err := Compute(rowsWithRaw(0.5), factors.DefaultWeights(), 0)
	assert.Error(t, err)

	_, err = Compute(rowsWithRaw(0.5), factors.Weights{}, 4)
	assert.Error(t, err)
}

func TestCompute_EmptyRows(t *testing.T) {
	c, err := Compute(nil, factors.DefaultWeights(), 4)
	require.NoError(t, err)
	assert.Empty(t, c.Probability)
	assert.Equal(t, 0.0, c.Last())
}
