// Package signals derives the tradeable outputs: entry/exit booleans,
// a position-size fraction, and a stop-loss distance. Everything here
// is a pure function of the current bar's readings plus the effective,
// regime-adjusted thresholds.
package signals

import (
	"fmt"
	"math"

	"github.com/perpsignal/crashwatch/internal/domain/regime"
	"github.com/perpsignal/crashwatch/internal/domain/thresholds"
)

// State is the per-bar signal output consumed by alerting and the
// backtest simulator. Both read this one series; there is no separate
// backtest-only derivation.
type State struct {
	Entry        bool    `json:"entry"`
	Exit         bool    `json:"exit"`
	PositionSize float64 `json:"position_size"`
	StopLossPct  float64 `json:"stop_loss_pct"`
}

// StopBand bounds the stop-loss distance as a percentage of price.
type StopBand struct {
	MinPct float64 `json:"min_pct" yaml:"min_pct" default:"1.5"`
	MaxPct float64 `json:"max_pct" yaml:"max_pct" default:"4.0"`
}

// DefaultStopBand returns the 1.5%-4.0% band.
func DefaultStopBand() StopBand { return StopBand{MinPct: 1.5, MaxPct: 4.0} }

// Validate checks the band is positive and ordered.
func (b StopBand) Validate() error {
	if b.MinPct <= 0 || b.MaxPct <= b.MinPct {
		return fmt.Errorf("signals: stop band [%v, %v] must be positive and ordered", b.MinPct, b.MaxPct)
	}
	return nil
}

// MinPositionSize is the floor every sized position respects; the
// crash regime pins sizing to it.
const MinPositionSize = 0.1

// Position sizing knobs. Base size grows with market strength; the
// risk adjustment strips up to 70% of it as crash probability rises.
const (
	baseSizeFloor = 0.15
	baseSizeSlope = 0.45
	riskCut       = 0.7

	bullSizeScale = 1.0
	consSizeScale = 0.7
	bearSizeScale = 0.55
)

// Decide evaluates the entry and exit conditions against the effective
// threshold set. Both can be true on the same bar; the caller resolves
// that in favor of the exit.
func Decide(trendStrength, crashProbability float64, eff thresholds.Set) (entry, exit bool) {
	entry = trendStrength > eff.EntryTrend && crashProbability < eff.EntryCrash
	exit = crashProbability > eff.ExitCrash || trendStrength < eff.ExitTrend
	return entry, exit
}

// PositionSize returns the fraction of capital to deploy, in
// [MinPositionSize, 1]. It decreases monotonically as crash
// probability rises and as the regime degrades from bull through bear;
// the crash regime forces the minimum regardless of strength.
func PositionSize(marketStrength, crashProbability float64, r regime.Regime) float64 {
	if r == regime.Crash {
		return MinPositionSize
	}

	base := clamp01(marketStrength)*baseSizeSlope + baseSizeFloor
	riskAdj := 1 - riskCut*clamp01(crashProbability)

	scale := consSizeScale
	switch r {
	case regime.Bull:
		scale = bullSizeScale
	case regime.Bear:
		scale = bearSizeScale
	}

	size := base * scale * riskAdj
	if size < MinPositionSize {
		return MinPositionSize
	}
	if size > 1 {
		return 1
	}
	return size
}

// StopLossPct maps normalized ATR onto the configured stop band: at or
// below the low volatility band edge the stop sits at MinPct, at or
// above the high edge it sits at MaxPct, linear between. High
// volatility widens the stop 1.3x and the crash regime 1.5x, then the
// result is re-clamped to the band so the configured maximum holds.
// NaN readings (warm-up) resolve to the tightest stop.
func StopLossPct(normATR, bandLow, bandHigh float64, r regime.Regime, band StopBand) float64 {
	frac := 0.0
	if !math.IsNaN(normATR) && !math.IsNaN(bandLow) && !math.IsNaN(bandHigh) && bandHigh > bandLow {
		frac = clamp01((normATR - bandLow) / (bandHigh - bandLow))
	}
	pct := band.MinPct + frac*(band.MaxPct-band.MinPct)

	highVol := !math.IsNaN(normATR) && !math.IsNaN(bandHigh) && normATR > bandHigh
	switch {
	case r == regime.Crash:
		pct *= 1.5
	case highVol:
		pct *= 1.3
	}

	if pct > band.MaxPct {
		return band.MaxPct
	}
	if pct < band.MinPct {
		return band.MinPct
	}
	return pct
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
