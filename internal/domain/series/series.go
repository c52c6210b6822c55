package series

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors let callers distinguish fatal input problems from the
// recoverable "not enough history yet" condition.
var (
	ErrEmpty               = errors.New("series: empty series")
	ErrNonMonotonic        = errors.New("series: timestamps not strictly increasing")
	ErrGap                 = errors.New("series: gap between bars")
	ErrBadPrice            = errors.New("series: non-positive price")
	ErrBadVolume           = errors.New("series: negative volume")
	ErrInsufficientHistory = errors.New("series: insufficient history")
	ErrInconsistentFunding = errors.New("series: funding rate present on some bars but not all")
)

// Bar is one OHLCV sample for a fixed interval, optionally carrying the
// perpetual funding rate observed for that interval.
type Bar struct {
	Timestamp   time.Time `json:"timestamp"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	FundingRate float64   `json:"funding_rate,omitempty"`
	HasFunding  bool      `json:"has_funding"`
}

// Series is a time-ordered, gap-free bar sequence for one instrument.
type Series struct {
	Symbol   string        `json:"symbol"`
	Interval time.Duration `json:"interval"`
	Bars     []Bar         `json:"bars"`
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Bars) }

// Last returns the most recent bar. Callers must check Len first.
func (s Series) Last() Bar { return s.Bars[len(s.Bars)-1] }

// Closes extracts the close price column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volume column.
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// FundingRates extracts the funding column. The second return is false when
// any bar lacks a funding observation, in which case funding-derived
// indicators must not be computed.
func (s Series) FundingRates() ([]float64, bool) {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		if !b.HasFunding {
			return nil, false
		}
		out[i] = b.FundingRate
	}
	return out, true
}

// Validate rejects malformed input at the boundary: empty input,
// non-monotonic timestamps, internal gaps, non-positive prices and negative
// volume are all fatal for the evaluation. It never repairs data.
func (s Series) Validate() error {
	if len(s.Bars) == 0 {
		return ErrEmpty
	}
	if s.Interval <= 0 {
		return fmt.Errorf("series %s: invalid interval %v", s.Symbol, s.Interval)
	}

	fundingSeen := s.Bars[0].HasFunding
	for i, b := range s.Bars {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("%w: bar %d at %s", ErrBadPrice, i, b.Timestamp.Format(time.RFC3339))
		}
		if b.Volume < 0 {
			return fmt.Errorf("%w: bar %d at %s", ErrBadVolume, i, b.Timestamp.Format(time.RFC3339))
		}
		if b.HasFunding != fundingSeen {
			return fmt.Errorf("%w: bar %d", ErrInconsistentFunding, i)
		}
		if i == 0 {
			continue
		}
		prev := s.Bars[i-1]
		delta := b.Timestamp.Sub(prev.Timestamp)
		if delta <= 0 {
			return fmt.Errorf("%w: bar %d (%s after %s)", ErrNonMonotonic, i,
				b.Timestamp.Format(time.RFC3339), prev.Timestamp.Format(time.RFC3339))
		}
		if delta != s.Interval {
			return fmt.Errorf("%w: bar %d expected %v spacing, got %v", ErrGap, i, s.Interval, delta)
		}
	}
	return nil
}

// Prefix returns a copy of the series truncated to the first n bars.
// Used by prefix-stability checks and by callers bounding work before
// invoking the engine.
func (s Series) Prefix(n int) Series {
	if n > len(s.Bars) {
		n = len(s.Bars)
	}
	bars := make([]Bar, n)
	copy(bars, s.Bars[:n])
	return Series{Symbol: s.Symbol, Interval: s.Interval, Bars: bars}
}
