// Package scoring folds weighted factor rows into the composite crash
// probability series. The raw per-bar score is the weighted factor sum
// clipped to [0,1]; the published probability is a trailing moving
// average of the raw scores so a single noisy bar cannot flip signals.
package scoring

import (
	"fmt"

	"github.com/perpsignal/crashwatch/internal/domain/factors"
)

// DefaultSmoothingWindow is the trailing average length applied to raw
// scores before publication.
const DefaultSmoothingWindow = 4

// Composite holds the per-bar raw scores and the smoothed probability
// series derived from them. Both slices share the input length.
type Composite struct {
	Raw         []float64 `json:"raw"`
	Probability []float64 `json:"probability"`
}

// Last returns the most recent smoothed probability, or 0 when empty.
func (c Composite) Last() float64 {
	if len(c.Probability) == 0 {
		return 0
	}
	return c.Probability[len(c.Probability)-1]
}

// Compute scores every factor row under w and smooths the result with a
// trailing window. The window only ever looks backward: probability[i]
// averages raw[max(0,i-window+1)..i], so early bars use however much
// history exists and no bar sees the future.
func Compute(rows []factors.Row, w factors.Weights, window int) (Composite, error) {
	if err := w.Validate(); err != nil {
		return Composite{}, err
	}
	if window < 1 {
		return Composite{}, fmt.Errorf("scoring: smoothing window %d, want >= 1", window)
	}

	raw := make([]float64, len(rows))
	for i, r := range rows {
		raw[i] = clip01(r.WeightedSum(w))
	}

	prob := make([]float64, len(raw))
	var sum float64
	for i := range raw {
		sum += raw[i]
		n := window
		if i+1 < window {
			n = i + 1
		} else if i >= window {
			sum -= raw[i-window]
		}
		prob[i] = sum / float64(n)
	}
	return Composite{Raw: raw, Probability: prob}, nil
}

func clip01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
