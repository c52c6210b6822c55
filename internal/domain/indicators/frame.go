package indicators

import (
	"fmt"
	"math"
	"sort"
)

// Indicator names published by the bank. Funding names are only present
// when every bar in the source series carries a funding observation.
const (
	RSI              = "rsi"
	RSIFast          = "rsi_fast"
	MACD             = "macd"
	MACDSignal       = "macd_signal"
	MACDHist         = "macd_hist"
	EMAFast          = "ema_fast"
	EMAMedium        = "ema_medium"
	EMASlow          = "ema_slow"
	EMASlowDistance  = "ema_slow_distance"
	ADX              = "adx"
	PlusDI           = "plus_di"
	MinusDI          = "minus_di"
	ATR              = "atr"
	ATRRatioShort    = "atr_ratio_short"
	ATRRatioLong     = "atr_ratio_long"
	NormATR          = "norm_atr"
	NormATRBaseline  = "norm_atr_baseline"
	VolBandLow       = "vol_band_low"
	VolBandHigh      = "vol_band_high"
	BBUpper          = "bb_upper"
	BBMiddle         = "bb_middle"
	BBLower          = "bb_lower"
	BBWidth          = "bb_width"
	BBWidthBaseline  = "bb_width_baseline"
	BBPosition       = "bb_position"
	OBV              = "obv"
	OBVMA            = "obv_ma"
	PriceVolCorr     = "price_vol_corr"
	VolumeMA         = "volume_ma"
	VolumeRatio      = "volume_ratio"
	Returns          = "returns"
	ROC5             = "roc_5"
	PriceVelocity    = "price_velocity"
	VelocityMA       = "velocity_ma"
	PriceAccel       = "price_acceleration"
	AccelSlope       = "accel_slope"
	TrendStrength    = "trend_strength"
	MomentumStrength = "momentum_strength"
	VolumeStrength   = "volume_strength"
	MarketStrength   = "market_strength"
	MTFTrend         = "mtf_trend"

	FundingRate        = "funding_rate"
	FundingMAShort     = "funding_ma_short"
	FundingMALong      = "funding_ma_long"
	FundingStd         = "funding_std"
	FundingMomentum    = "funding_momentum"
	FundingAccel       = "funding_acceleration"
	FundingJerk        = "funding_jerk"
	FundingVelocity    = "funding_velocity"
	FundingStressShort = "funding_stress_short"
	FundingStressLong  = "funding_stress_long"
	FundingStress      = "funding_stress"
)

// Frame holds one aligned numeric series per indicator for a single
// instrument. Every series has exactly one value per source bar; warm-up
// regions are NaN.
type Frame struct {
	n    int
	data map[string][]float64
}

func newFrame(n int) *Frame {
	return &Frame{n: n, data: make(map[string][]float64, 48)}
}

func (f *Frame) set(name string, vals []float64) {
	if len(vals) != f.n {
		panic(fmt.Sprintf("indicators: %s has %d values for %d bars", name, len(vals), f.n))
	}
	f.data[name] = vals
}

// Len returns the bar count the frame is aligned to.
func (f *Frame) Len() int { return f.n }

// Has reports whether the named indicator was computed for this frame.
func (f *Frame) Has(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Series returns the full aligned series for one indicator.
func (f *Frame) Series(name string) ([]float64, bool) {
	vals, ok := f.data[name]
	return vals, ok
}

// At returns the indicator value at bar index i, NaN when the indicator is
// absent or still warming up.
func (f *Frame) At(name string, i int) float64 {
	vals, ok := f.data[name]
	if !ok || i < 0 || i >= len(vals) {
		return math.NaN()
	}
	return vals[i]
}

// Last returns the most recent value of the named indicator.
func (f *Frame) Last(name string) float64 {
	return f.At(name, f.n-1)
}

// Names lists the computed indicators in stable order.
func (f *Frame) Names() []string {
	names := make([]string, 0, len(f.data))
	for name := range f.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
