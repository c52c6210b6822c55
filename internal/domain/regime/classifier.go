// Package regime classifies market state from the smoothed crash
// probability and the trend/market strength readings. Classification is
// stateless: the same inputs always yield the same regime.
package regime

// Regime is the market state driving threshold adaptation and sizing.
type Regime string

const (
	Bull          Regime = "BULL"
	Bear          Regime = "BEAR"
	Consolidation Regime = "CONSOLIDATION"
	Crash         Regime = "CRASH"
)

// CrashProbabilityFloor is the smoothed probability at or above which
// the crash regime preempts every other classification.
const CrashProbabilityFloor = 0.60

// Inputs are the three normalized readings a classification needs.
type Inputs struct {
	CrashProbability float64 `json:"crash_probability"`
	MarketStrength   float64 `json:"market_strength"`
	TrendStrength    float64 `json:"trend_strength"`
}

// Classify resolves a regime with strict priority: crash first, then
// bull, then bear, and consolidation as the residual state. A high
// crash probability therefore overrides even a strongly bullish tape.
func Classify(in Inputs) Regime {
	switch {
	case in.CrashProbability >= CrashProbabilityFloor:
		return Crash
	case in.MarketStrength > 0.6 && in.TrendStrength > 0.5:
		return Bull
	case in.MarketStrength < 0.3 && in.TrendStrength < 0.3:
		return Bear
	default:
		return Consolidation
	}
}

// Valid reports whether r is one of the four known regimes.
func (r Regime) Valid() bool {
	switch r {
	case Bull, Bear, Consolidation, Crash:
		return true
	}
	return false
}
