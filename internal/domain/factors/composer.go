package factors

import (
	"fmt"
	"math"

	"github.com/perpsignal/crashwatch/internal/domain/indicators"
)

// Weights allocates the contribution of each crash factor to the composite
// score. They are tuned so that several simultaneous partial signals can
// saturate the clipped sum; they deliberately do not sum to 1.0.
type Weights struct {
	VolCascade        float64 `yaml:"vol_cascade"`
	NegMomentum       float64 `yaml:"neg_momentum"`
	VolumeDivergence  float64 `yaml:"volume_divergence"`
	TrendExhaustion   float64 `yaml:"trend_exhaustion"`
	FundingStress     float64 `yaml:"funding_stress"`
	FundingAccel      float64 `yaml:"funding_acceleration"`
	FundingVelocity   float64 `yaml:"funding_velocity"`
	FundingDivergence float64 `yaml:"funding_divergence"`
}

// DefaultWeights returns the production allocation.
func DefaultWeights() Weights {
	return Weights{
		VolCascade:        0.25,
		NegMomentum:       0.20,
		VolumeDivergence:  0.15,
		TrendExhaustion:   0.20,
		FundingStress:     0.20,
		FundingAccel:      0.10,
		FundingVelocity:   0.10,
		FundingDivergence: 0.10,
	}
}

// Named returns the weights keyed by their configuration names.
func (w Weights) Named() map[string]float64 {
	return map[string]float64{
		"vol_cascade":          w.VolCascade,
		"neg_momentum":         w.NegMomentum,
		"volume_divergence":    w.VolumeDivergence,
		"trend_exhaustion":     w.TrendExhaustion,
		"funding_stress":       w.FundingStress,
		"funding_acceleration": w.FundingAccel,
		"funding_velocity":     w.FundingVelocity,
		"funding_divergence":   w.FundingDivergence,
	}
}

// Validate ensures every weight is a sane allocation.
func (w Weights) Validate() error {
	sum := 0.0
	for name, weight := range w.Named() {
		if weight < 0 || weight > 1 {
			return fmt.Errorf("factor weight %s outside [0,1]: %.3f", name, weight)
		}
		sum += weight
	}
	if sum <= 0 {
		return fmt.Errorf("factor weights sum to %.3f, nothing would ever score", sum)
	}
	return nil
}

// Row holds the eight normalized crash factors for one bar, each in [0,1].
// An indicator still in warm-up contributes 0 (no signal), never risk.
type Row struct {
	VolCascade        float64 `json:"vol_cascade"`
	NegMomentum       float64 `json:"neg_momentum"`
	VolumeDivergence  float64 `json:"volume_divergence"`
	TrendExhaustion   float64 `json:"trend_exhaustion"`
	FundingStress     float64 `json:"funding_stress"`
	FundingAccel      float64 `json:"funding_acceleration"`
	FundingVelocity   float64 `json:"funding_velocity"`
	FundingDivergence float64 `json:"funding_divergence"`
}

// WeightedSum returns the raw (pre-clip) composite contribution.
func (r Row) WeightedSum(w Weights) float64 {
	return r.VolCascade*w.VolCascade +
		r.NegMomentum*w.NegMomentum +
		r.VolumeDivergence*w.VolumeDivergence +
		r.TrendExhaustion*w.TrendExhaustion +
		r.FundingStress*w.FundingStress +
		r.FundingAccel*w.FundingAccel +
		r.FundingVelocity*w.FundingVelocity +
		r.FundingDivergence*w.FundingDivergence
}

// Normalization anchors. Each factor is a linear ramp between a "no signal"
// and a "saturated" level, clamped to [0,1]; the anchors come from the
// trigger levels the boolean flags originally fired at.
const (
	atrRatioFloor  = 1.0
	atrRatioCeil   = 1.3
	bbWidthFloor   = 0.005
	bbWidthCeil    = 0.045
	velocityCeil   = 0.01
	accelCeil      = 0.003
	rocCeil        = 0.01
	volumeDeficit  = 0.9
	volumeCeil     = 0.3
	corrFloor      = 0.1
	corrCeil       = 0.5
	extensionFloor = 0.03
	extensionCeil  = 0.08
	decelFloor     = 0.0005
	decelCeil      = 0.005

	fundingElevated  = 0.00005
	fundingExtreme   = 0.00015
	fundingAccelLow  = 0.00001
	fundingAccelHigh = 0.00005
	fundingVelLow    = 0.00002
	fundingVelHigh   = 0.0001
	fundingDivLow    = 0.00002
	fundingDivHigh   = 0.0001
)

// Compute derives one factor row per bar from the indicator frame.
func Compute(f *indicators.Frame) []Row {
	rows := make([]Row, f.Len())
	hasFunding := f.Has(indicators.FundingRate)
	for i := range rows {
		rows[i] = Row{
			VolCascade:       volCascadeAt(f, i),
			NegMomentum:      negMomentumAt(f, i),
			VolumeDivergence: volumeDivergenceAt(f, i),
			TrendExhaustion:  trendExhaustionAt(f, i),
		}
		if hasFunding {
			rows[i].FundingStress = fundingStressAt(f, i)
			rows[i].FundingAccel = fundingAccelAt(f, i)
			rows[i].FundingVelocity = fundingVelocityAt(f, i)
			rows[i].FundingDivergence = fundingDivergenceAt(f, i)
		}
	}
	return rows
}

// volCascadeAt fires when the short/long ATR ratio and the Bollinger width
// are simultaneously elevated against their own trailing baselines.
func volCascadeAt(f *indicators.Frame, i int) float64 {
	atrSig := ramp(f.At(indicators.ATRRatioShort, i), atrRatioFloor, atrRatioCeil)
	widthExcess := f.At(indicators.BBWidth, i) - f.At(indicators.BBWidthBaseline, i)
	bbSig := ramp(widthExcess, bbWidthFloor, bbWidthCeil)
	return math.Min(atrSig, bbSig)
}

// negMomentumAt requires price falling and falling faster: negative velocity
// together with negative acceleration.
func negMomentumAt(f *indicators.Frame, i int) float64 {
	falling := ramp(-f.At(indicators.PriceVelocity, i), 0, velocityCeil)
	accelerating := ramp(-f.At(indicators.PriceAccel, i), 0, accelCeil)
	return math.Min(falling, accelerating)
}

// volumeDivergenceAt flags price grinding up on weakening participation:
// positive short rate-of-change with either thin volume or a negative
// price/volume correlation.
func volumeDivergenceAt(f *indicators.Frame, i int) float64 {
	priceUp := ramp(f.At(indicators.ROC5, i), 0, rocCeil)
	thin := ramp(volumeDeficit-f.At(indicators.VolumeRatio, i), 0, volumeCeil)
	distribution := ramp(-f.At(indicators.PriceVolCorr, i), corrFloor, corrCeil)
	return math.Min(priceUp, math.Max(thin, distribution))
}

// trendExhaustionAt fires when price is stretched far from its slow moving
// average while momentum is decelerating.
func trendExhaustionAt(f *indicators.Frame, i int) float64 {
	extended := ramp(math.Abs(f.At(indicators.EMASlowDistance, i)), extensionFloor, extensionCeil)
	decel := ramp(f.At(indicators.VelocityMA, i)-f.At(indicators.PriceVelocity, i), decelFloor, decelCeil)
	return math.Min(extended, decel)
}

// fundingStressAt scores funding magnitude in either direction against the
// elevated/extreme band.
func fundingStressAt(f *indicators.Frame, i int) float64 {
	return ramp(math.Abs(f.At(indicators.FundingRate, i)), fundingElevated, fundingExtreme)
}

func fundingAccelAt(f *indicators.Frame, i int) float64 {
	return ramp(math.Abs(f.At(indicators.FundingAccel, i)), fundingAccelLow, fundingAccelHigh)
}

func fundingVelocityAt(f *indicators.Frame, i int) float64 {
	return ramp(math.Abs(f.At(indicators.FundingVelocity, i)), fundingVelLow, fundingVelHigh)
}

func fundingDivergenceAt(f *indicators.Frame, i int) float64 {
	return ramp(math.Abs(f.At(indicators.FundingStressLong, i)), fundingDivLow, fundingDivHigh)
}

// ramp maps x linearly from 0 at lo to 1 at hi, clamped. NaN input reads as
// "no signal", never as risk.
func ramp(x, lo, hi float64) float64 {
	if math.IsNaN(x) || hi <= lo {
		return 0
	}
	v := (x - lo) / (hi - lo)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
