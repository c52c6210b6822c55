// Package engine wires the scoring pipeline into a single canonical
// entry point. One Compute call takes a validated bar series through
// indicators, factors, composite scoring, regime classification,
// threshold resolution and signal sizing, and returns everything a
// consumer may need. Alerting, storage and backtesting all read the
// same Evaluation; none of them re-derives signals.
package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/perpsignal/crashwatch/internal/config"
	"github.com/perpsignal/crashwatch/internal/domain/factors"
	"github.com/perpsignal/crashwatch/internal/domain/indicators"
	"github.com/perpsignal/crashwatch/internal/domain/regime"
	"github.com/perpsignal/crashwatch/internal/domain/scoring"
	"github.com/perpsignal/crashwatch/internal/domain/series"
	"github.com/perpsignal/crashwatch/internal/domain/signals"
	"github.com/perpsignal/crashwatch/internal/domain/thresholds"
)

// Strategy is the swappable evaluation pipeline. Implementations must
// be pure: no I/O, no retained state, bit-identical output for
// identical input.
type Strategy interface {
	Compute(s series.Series, cfg config.Engine) (*Evaluation, error)
}

var strategies = map[string]Strategy{}

// Register makes a strategy selectable by name through configuration.
// Registering a duplicate name panics; that is a wiring bug.
func Register(name string, s Strategy) {
	if _, dup := strategies[name]; dup {
		panic(fmt.Sprintf("engine: strategy %q registered twice", name))
	}
	strategies[name] = s
}

// New returns the named strategy.
func New(name string) (Strategy, error) {
	s, ok := strategies[name]
	if !ok {
		known := make([]string, 0, len(strategies))
		for k := range strategies {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("engine: unknown strategy %q (have %v)", name, known)
	}
	return s, nil
}

// Evaluation is the complete per-series output. All slices are aligned
// with the input bars.
type Evaluation struct {
	Series    series.Series
	Frame     *indicators.Frame
	Factors   []factors.Row
	Score     scoring.Composite
	Regimes   []regime.Regime
	Effective []thresholds.Set
	Signals   []signals.State
}

// Snapshot is the latest-bar view consumed by alerting, the HTTP API
// and the snapshot cache. Unlike the raw frame it never carries NaN:
// warm-up readings are zeroed so the struct serializes cleanly.
type Snapshot struct {
	Symbol           string        `json:"symbol"`
	Timestamp        time.Time     `json:"timestamp"`
	Price            float64       `json:"price"`
	PctChange        float64       `json:"pct_change"`
	CrashProbability float64       `json:"crash_probability"`
	Regime           regime.Regime `json:"regime"`
	RSI              float64       `json:"rsi"`
	ATRRatio         float64       `json:"atr_ratio"`
	TrendStrength    float64       `json:"trend_strength"`
	MomentumStrength float64       `json:"momentum_strength"`
	MarketStrength   float64       `json:"market_strength"`
	FundingStress    float64       `json:"funding_stress"`
	VolumeRatio      float64       `json:"volume_ratio"`
	Entry            bool          `json:"entry"`
	Exit             bool          `json:"exit"`
	PositionSize     float64       `json:"position_size"`
	StopLossPct      float64       `json:"stop_loss_pct"`
}

// Snapshot condenses the latest bar of the evaluation. lookback is the
// number of bars the percentage change is measured over; when fewer
// bars exist the change is measured from the first bar.
func (e *Evaluation) Snapshot(lookback int) Snapshot {
	n := e.Series.Len()
	last := n - 1
	bar := e.Series.Bars[last]

	ref := last - lookback
	if ref < 0 {
		ref = 0
	}
	pctChange := 0.0
	if refClose := e.Series.Bars[ref].Close; refClose > 0 {
		pctChange = (bar.Close/refClose - 1) * 100
	}

	sig := e.Signals[last]
	return Snapshot{
		Symbol:           e.Series.Symbol,
		Timestamp:        bar.Timestamp,
		Price:            bar.Close,
		PctChange:        pctChange,
		CrashProbability: e.Score.Probability[last],
		Regime:           e.Regimes[last],
		RSI:              finite(e.Frame.At(indicators.RSI, last)),
		ATRRatio:         finite(e.Frame.At(indicators.ATRRatioShort, last)),
		TrendStrength:    finite(e.Frame.At(indicators.TrendStrength, last)),
		MomentumStrength: finite(e.Frame.At(indicators.MomentumStrength, last)),
		MarketStrength:   finite(e.Frame.At(indicators.MarketStrength, last)),
		FundingStress:    finite(e.Frame.At(indicators.FundingStress, last)),
		VolumeRatio:      finite(e.Frame.At(indicators.VolumeRatio, last)),
		Entry:            sig.Entry,
		Exit:             sig.Exit,
		PositionSize:     sig.PositionSize,
		StopLossPct:      sig.StopLossPct,
	}
}

func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
