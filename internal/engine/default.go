package engine

import (
	"fmt"

	"github.com/perpsignal/crashwatch/internal/config"
	"github.com/perpsignal/crashwatch/internal/domain/factors"
	"github.com/perpsignal/crashwatch/internal/domain/indicators"
	"github.com/perpsignal/crashwatch/internal/domain/regime"
	"github.com/perpsignal/crashwatch/internal/domain/scoring"
	"github.com/perpsignal/crashwatch/internal/domain/series"
	"github.com/perpsignal/crashwatch/internal/domain/signals"
	"github.com/perpsignal/crashwatch/internal/domain/thresholds"
)

// DefaultName selects the standard pipeline in configuration.
const DefaultName = "default"

func init() {
	Register(DefaultName, Default{})
}

// Default is the standard crash-risk pipeline. The zero value is ready
// to use; it holds no state.
type Default struct{}

// Compute runs the full pipeline over s. Malformed input fails before
// anything is computed. Input shorter than the indicator warm-up floor
// fails with series.ErrInsufficientHistory; past that floor, unmet
// lookbacks merely yield warm-up (zero risk) prefixes.
func (Default) Compute(s series.Series, cfg config.Engine) (*Evaluation, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %s: %w", s.Symbol, err)
	}

	params := indicators.DefaultParams()
	if min := params.MinBars(); s.Len() < min {
		return nil, fmt.Errorf("engine: %s: %d bars, need %d: %w",
			s.Symbol, s.Len(), min, series.ErrInsufficientHistory)
	}

	frame := indicators.Compute(s, params)
	rows := factors.Compute(frame)

	score, err := scoring.Compute(rows, cfg.Weights, cfg.SmoothingWindow)
	if err != nil {
		return nil, fmt.Errorf("engine: %s: %w", s.Symbol, err)
	}

	n := s.Len()
	regimes := make([]regime.Regime, n)
	effective := make([]thresholds.Set, n)
	states := make([]signals.State, n)

	for i := 0; i < n; i++ {
		trend := frame.At(indicators.TrendStrength, i)
		market := frame.At(indicators.MarketStrength, i)
		prob := score.Probability[i]

		regimes[i] = regime.Classify(regime.Inputs{
			CrashProbability: prob,
			MarketStrength:   market,
			TrendStrength:    trend,
		})
		effective[i] = thresholds.Resolve(cfg.Thresholds, regimes[i])

		entry, exit := signals.Decide(trend, prob, effective[i])
		states[i] = signals.State{
			Entry:        entry,
			Exit:         exit,
			PositionSize: signals.PositionSize(market, prob, regimes[i]),
			StopLossPct: signals.StopLossPct(
				frame.At(indicators.NormATR, i),
				frame.At(indicators.VolBandLow, i),
				frame.At(indicators.VolBandHigh, i),
				regimes[i],
				cfg.Stops,
			),
		}
	}

	return &Evaluation{
		Series:    s,
		Frame:     frame,
		Factors:   rows,
		Score:     score,
		Regimes:   regimes,
		Effective: effective,
		Signals:   states,
	}, nil
}
