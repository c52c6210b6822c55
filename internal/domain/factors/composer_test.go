package factors

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpsignal/crashwatch/internal/domain/indicators"
	"github.com/perpsignal/crashwatch/internal/domain/series"
)

func syntheticSeries(closes []float64, volume float64, funding []float64) series.Series {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]series.Bar, len(closes))
	for i, c := range closes {
		bars[i] = series.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c * 1.002, Low: c * 0.998, Close: c,
			Volume: volume,
		}
		if funding != nil {
			bars[i].HasFunding = true
			bars[i].FundingRate = funding[i]
		}
	}
	return series.Series{Symbol: "BTC-USDT", Interval: time.Hour, Bars: bars}
}

func TestDefaultWeights_MatchContract(t *testing.T) {
	w := DefaultWeights()
	require.NoError(t, w.Validate())
	assert.Equal(t, 0.25, w.VolCascade)
	assert.Equal(t, 0.20, w.NegMomentum)
	assert.Equal(t, 0.15, w.VolumeDivergence)
	assert.Equal(t, 0.20, w.TrendExhaustion)
	assert.Equal(t, 0.20, w.FundingStress)
	assert.Equal(t, 0.10, w.FundingAccel)
	assert.Equal(t, 0.10, w.FundingVelocity)
	assert.Equal(t, 0.10, w.FundingDivergence)
}

func TestWeights_Validate(t *testing.T) {
	w := DefaultWeights()
	w.VolCascade = 1.5
	assert.Error(t, w.Validate())

	assert.Error(t, Weights{}.Validate(), "all-zero weights can never score")
}

func TestCompute_AllFactorsBounded(t *testing.T) {
	closes := make([]float64, 120)
	funding := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/7)
		funding[i] = 0.0002 * math.Sin(float64(i)/5)
	}
	s := syntheticSeries(closes, 1000, funding)
	rows := Compute(indicators.Compute(s, indicators.DefaultParams()))

	require.Len(t, rows, 120)
	for i, r := range rows {
		for name, v := range map[string]float64{
			"vol_cascade":       r.VolCascade,
			"neg_momentum":      r.NegMomentum,
			"volume_divergence": r.VolumeDivergence,
			"trend_exhaustion":  r.TrendExhaustion,
			"funding_stress":    r.FundingStress,
			"funding_accel":     r.FundingAccel,
			"funding_velocity":  r.FundingVelocity,
			"funding_div":       r.FundingDivergence,
		} {
			assert.GreaterOrEqual(t, v, 0.0, "%s[%d]", name, i)
			assert.LessOrEqual(t, v, 1.0, "%s[%d]", name, i)
		}
	}
}

func TestCompute_WarmupYieldsNoSignal(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104}
	s := syntheticSeries(closes, 1000, nil)
	rows := Compute(indicators.Compute(s, indicators.DefaultParams()))

	// Five bars is far below every lookback: all factors must read zero,
	// never a cold-start alarm.
	for i, r := range rows {
		assert.Zero(t, r.WeightedSum(DefaultWeights()), "bar %d", i)
	}
}

func TestCompute_NoFundingMeansNoFundingFactors(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 - float64(i)*0.5
	}
	s := syntheticSeries(closes, 1000, nil)
	rows := Compute(indicators.Compute(s, indicators.DefaultParams()))

	last := rows[len(rows)-1]
	assert.Zero(t, last.FundingStress)
	assert.Zero(t, last.FundingAccel)
	assert.Zero(t, last.FundingVelocity)
	assert.Zero(t, last.FundingDivergence)
}

func TestCompute_CrashBarFiresRiskFactors(t *testing.T) {
	closes := make([]float64, 60)
	funding := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	// Sharp 10% break over the final three bars with funding collapsing.
	closes[57] = 96.5
	closes[58] = 93
	closes[59] = 90
	for i := 55; i < 60; i++ {
		funding[i] = -0.0001 * float64(i-54)
	}
	s := syntheticSeries(closes, 1000, funding)
	rows := Compute(indicators.Compute(s, indicators.DefaultParams()))

	last := rows[59]
	assert.Greater(t, last.VolCascade, 0.8, "ATR and band width both spike")
	assert.Greater(t, last.NegMomentum, 0.8, "falling and accelerating down")
	assert.Greater(t, last.TrendExhaustion, 0.5, "price stretched below slow EMA while decelerating")
	assert.Equal(t, 1.0, last.FundingStress, "funding magnitude beyond the extreme band")
	assert.Greater(t, last.FundingAccel, 0.9)
	assert.Greater(t, last.FundingVelocity, 0.9)
	assert.Greater(t, last.FundingDivergence, 0.9)
}

func TestCompute_FlatSeriesScoresZero(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100
	}
	s := syntheticSeries(closes, 1000, nil)
	for i := range s.Bars {
		s.Bars[i].High = 100
		s.Bars[i].Low = 100
	}
	rows := Compute(indicators.Compute(s, indicators.DefaultParams()))
	for i, r := range rows {
		assert.Zero(t, r.WeightedSum(DefaultWeights()), "flat bar %d must carry no risk", i)
	}
}

func TestRamp(t *testing.T) {
	assert.Equal(t, 0.0, ramp(math.NaN(), 0, 1))
	assert.Equal(t, 0.0, ramp(-0.5, 0, 1))
	assert.Equal(t, 0.5, ramp(0.5, 0, 1))
	assert.Equal(t, 1.0, ramp(2, 0, 1))
	assert.Equal(t, 0.0, ramp(1, 1, 1), "degenerate anchors give no signal")
}
