package indicators

import (
	"math"

	"github.com/perpsignal/crashwatch/internal/domain/series"
)

// Params holds the lookback windows for every indicator family.
type Params struct {
	RSIPeriod     int
	RSIFastPeriod int

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	EMAFastPeriod   int
	EMAMediumPeriod int
	EMASlowPeriod   int

	ADXPeriod int

	ATRPeriod      int
	ATRShortWindow int // rolling mean window for the short ATR baseline
	ATRLongWindow  int // rolling mean window for the long ATR baseline
	VolBandWindow  int // rolling quantile window for the volatility band

	BBPeriod int
	BBStdK   float64

	VolumeMAPeriod int
	CorrWindow     int

	VelocityWindow int
	ROCLookback    int

	FundingShortWindow int
	FundingLongWindow  int
	FundingDiffLag     int

	MTFFactor      int // coarse interval = MTFFactor * native interval
	BaselineWindow int
}

// MinBars is the fewest bars needed before any momentum or volatility
// column has a defined value; below it every factor reads zero and the
// composite carries no signal at all. The binding constraint is the
// slower Wilder warm-up of RSI and ATR.
func (p Params) MinBars() int {
	m := p.RSIPeriod
	if p.ATRPeriod > m {
		m = p.ATRPeriod
	}
	return m + 1
}

// DefaultParams returns the standard lookbacks: RSI 14/9, MACD 12/26/9,
// EMA 9/21/50, ATR 14 with 4/24 baselines, Bollinger 20/2.0, volume MA 20.
func DefaultParams() Params {
	return Params{
		RSIPeriod:     14,
		RSIFastPeriod: 9,

		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,

		EMAFastPeriod:   9,
		EMAMediumPeriod: 21,
		EMASlowPeriod:   50,

		ADXPeriod: 14,

		ATRPeriod:      14,
		ATRShortWindow: 4,
		ATRLongWindow:  24,
		VolBandWindow:  50,

		BBPeriod: 20,
		BBStdK:   2.0,

		VolumeMAPeriod: 20,
		CorrWindow:     20,

		VelocityWindow: 3,
		ROCLookback:    5,

		FundingShortWindow: 8,
		FundingLongWindow:  24,
		FundingDiffLag:     8,

		MTFFactor:      4,
		BaselineWindow: 20,
	}
}

// Compute derives the full indicator frame for one validated series. The
// result is a pure function of the input: same bars, same frame.
func Compute(s series.Series, p Params) *Frame {
	n := s.Len()
	f := newFrame(n)

	closes := s.Closes()
	volumes := s.Volumes()

	computeMomentum(f, closes, p)
	computeTrend(f, s, closes, p)
	computeVolatility(f, s, closes, p)
	computeVolumeFlow(f, closes, volumes, p)
	computeStrengths(f, p)
	computeMTF(f, closes, p)

	if funding, ok := s.FundingRates(); ok {
		computeFunding(f, funding, p)
	}

	return f
}

func computeMomentum(f *Frame, closes []float64, p Params) {
	f.set(RSI, rsiSeries(closes, p.RSIPeriod))
	f.set(RSIFast, rsiSeries(closes, p.RSIFastPeriod))

	returns := make([]float64, len(closes))
	returns[0] = math.NaN()
	for i := 1; i < len(closes); i++ {
		returns[i] = safeDiv(closes[i]-closes[i-1], closes[i-1])
	}
	f.set(Returns, returns)

	roc := nanSlice(len(closes))
	for i := p.ROCLookback; i < len(closes); i++ {
		roc[i] = safeDiv(closes[i]-closes[i-p.ROCLookback], closes[i-p.ROCLookback])
	}
	f.set(ROC5, roc)

	velocity := SMA(returns, p.VelocityWindow)
	accel := Diff(velocity, 1)
	f.set(PriceVelocity, velocity)
	f.set(VelocityMA, SMA(velocity, 5))
	f.set(PriceAccel, accel)
	f.set(AccelSlope, SMA(accel, p.VelocityWindow))
}

func computeTrend(f *Frame, s series.Series, closes []float64, p Params) {
	emaFast := EMA(closes, p.MACDFast)
	emaSlow := EMA(closes, p.MACDSlow)
	macd := nanSlice(len(closes))
	for i := range macd {
		if !math.IsNaN(emaFast[i]) && !math.IsNaN(emaSlow[i]) {
			macd[i] = emaFast[i] - emaSlow[i]
		}
	}
	signal := EMA(macd, p.MACDSignal)
	hist := nanSlice(len(closes))
	for i := range hist {
		if !math.IsNaN(macd[i]) && !math.IsNaN(signal[i]) {
			hist[i] = macd[i] - signal[i]
		}
	}
	f.set(MACD, macd)
	f.set(MACDSignal, signal)
	f.set(MACDHist, hist)

	f.set(EMAFast, EMA(closes, p.EMAFastPeriod))
	f.set(EMAMedium, EMA(closes, p.EMAMediumPeriod))
	emaSlowSeries := EMA(closes, p.EMASlowPeriod)
	f.set(EMASlow, emaSlowSeries)

	distance := nanSlice(len(closes))
	for i := range closes {
		distance[i] = safeDiv(closes[i]-emaSlowSeries[i], emaSlowSeries[i])
	}
	f.set(EMASlowDistance, distance)

	computeADX(f, s, p)
}

// computeADX follows the directional-movement construction: +DM/-DM rolled
// against ATR, DX from the DI spread, ADX as the smoothed DX.
func computeADX(f *Frame, s series.Series, p Params) {
	n := s.Len()
	plusDM := nanSlice(n)
	minusDM := nanSlice(n)
	for i := 1; i < n; i++ {
		up := s.Bars[i].High - s.Bars[i-1].High
		down := s.Bars[i-1].Low - s.Bars[i].Low
		plusDM[i] = 0
		minusDM[i] = 0
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	atr, _ := f.Series(ATR)
	if atr == nil {
		// Volatility block runs after trend; compute ATR here once and let
		// computeVolatility reuse it through the frame.
		atr = atrSeries(s, p.ATRPeriod)
		f.set(ATR, atr)
	}

	smoothPlus := SMA(plusDM, p.ADXPeriod)
	smoothMinus := SMA(minusDM, p.ADXPeriod)

	pdi := nanSlice(n)
	mdi := nanSlice(n)
	dx := nanSlice(n)
	for i := 0; i < n; i++ {
		pdi[i] = 100 * safeDiv(smoothPlus[i], atr[i])
		mdi[i] = 100 * safeDiv(smoothMinus[i], atr[i])
		if math.IsNaN(pdi[i]) || math.IsNaN(mdi[i]) {
			continue
		}
		sum := pdi[i] + mdi[i]
		if sum == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = 100 * math.Abs(pdi[i]-mdi[i]) / sum
	}
	f.set(PlusDI, pdi)
	f.set(MinusDI, mdi)
	f.set(ADX, SMA(dx, p.ADXPeriod))
}

func computeVolatility(f *Frame, s series.Series, closes []float64, p Params) {
	atr, ok := f.Series(ATR)
	if !ok {
		atr = atrSeries(s, p.ATRPeriod)
		f.set(ATR, atr)
	}

	shortBase := SMA(atr, p.ATRShortWindow)
	longBase := SMA(atr, p.ATRLongWindow)
	ratioShort := nanSlice(len(atr))
	ratioLong := nanSlice(len(atr))
	normATR := nanSlice(len(atr))
	for i := range atr {
		ratioShort[i] = safeDiv(atr[i], shortBase[i])
		ratioLong[i] = safeDiv(atr[i], longBase[i])
		normATR[i] = safeDiv(atr[i], closes[i])
	}
	f.set(ATRRatioShort, ratioShort)
	f.set(ATRRatioLong, ratioLong)
	f.set(NormATR, normATR)
	f.set(NormATRBaseline, RollingQuantile(normATR, p.BaselineWindow, 0.8))
	f.set(VolBandLow, RollingQuantile(normATR, p.VolBandWindow, 0.25))
	f.set(VolBandHigh, RollingQuantile(normATR, p.VolBandWindow, 0.75))

	middle := SMA(closes, p.BBPeriod)
	std := RollingStd(closes, p.BBPeriod)
	upper := nanSlice(len(closes))
	lower := nanSlice(len(closes))
	width := nanSlice(len(closes))
	position := nanSlice(len(closes))
	for i := range closes {
		if math.IsNaN(middle[i]) || math.IsNaN(std[i]) {
			continue
		}
		upper[i] = middle[i] + p.BBStdK*std[i]
		lower[i] = middle[i] - p.BBStdK*std[i]
		width[i] = safeDiv(upper[i]-lower[i], middle[i])
		if math.IsNaN(width[i]) {
			width[i] = 0
		}
		span := upper[i] - lower[i]
		if span > 0 {
			position[i] = (closes[i] - lower[i]) / span
		}
	}
	f.set(BBUpper, upper)
	f.set(BBMiddle, middle)
	f.set(BBLower, lower)
	f.set(BBWidth, width)
	f.set(BBWidthBaseline, SMA(width, p.BaselineWindow))
	f.set(BBPosition, position)
}

func computeVolumeFlow(f *Frame, closes, volumes []float64, p Params) {
	obv := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		obv[i] = obv[i-1]
		switch {
		case closes[i] > closes[i-1]:
			obv[i] += volumes[i]
		case closes[i] < closes[i-1]:
			obv[i] -= volumes[i]
		}
	}
	f.set(OBV, obv)
	f.set(OBVMA, SMA(obv, p.VolumeMAPeriod))

	volumeMA := SMA(volumes, p.VolumeMAPeriod)
	ratio := nanSlice(len(volumes))
	for i := range volumes {
		ratio[i] = safeDiv(volumes[i], volumeMA[i])
	}
	f.set(VolumeMA, volumeMA)
	f.set(VolumeRatio, ratio)

	returns, _ := f.Series(Returns)
	volChanges := nanSlice(len(volumes))
	for i := 1; i < len(volumes); i++ {
		volChanges[i] = safeDiv(volumes[i]-volumes[i-1], volumes[i-1])
	}
	f.set(PriceVolCorr, RollingCorr(returns, volChanges, p.CorrWindow))
}

// computeStrengths derives the market-state composites: trend strength from
// EMA alignment, momentum strength from price velocity, volume strength from
// sustained above-baseline volume, blended 0.4/0.4/0.2 into market strength.
func computeStrengths(f *Frame, p Params) {
	n := f.Len()
	emaFast, _ := f.Series(EMAFast)
	emaMed, _ := f.Series(EMAMedium)
	emaSlow, _ := f.Series(EMASlow)
	velocity, _ := f.Series(PriceVelocity)
	volumeRatio, _ := f.Series(VolumeRatio)

	trend := nanSlice(n)
	momentum := nanSlice(n)
	for i := 0; i < n; i++ {
		if !math.IsNaN(emaFast[i]) && !math.IsNaN(emaMed[i]) && !math.IsNaN(emaSlow[i]) {
			alignment := 0.0
			if emaFast[i] > emaMed[i] && emaMed[i] > emaSlow[i] {
				alignment += 1.0
			}
			if emaFast[i] > emaSlow[i] && emaMed[i] > emaSlow[i] {
				alignment += 0.5
			}
			trend[i] = alignment / 1.5
		}
		if !math.IsNaN(velocity[i]) {
			momentum[i] = clamp01(velocity[i] * 25)
		}
	}
	f.set(TrendStrength, trend)
	f.set(MomentumStrength, momentum)

	aboveBaseline := nanSlice(n)
	for i := range volumeRatio {
		if math.IsNaN(volumeRatio[i]) {
			continue
		}
		if volumeRatio[i] > 1.0 {
			aboveBaseline[i] = 1
		} else {
			aboveBaseline[i] = 0
		}
	}
	volumeStrength := SMA(aboveBaseline, 3)
	f.set(VolumeStrength, volumeStrength)

	market := nanSlice(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(trend[i]) || math.IsNaN(momentum[i]) {
			continue
		}
		vs := volumeStrength[i]
		if math.IsNaN(vs) {
			vs = 0.5
		}
		market[i] = clamp01(0.4*trend[i] + 0.4*momentum[i] + 0.2*vs)
	}
	f.set(MarketStrength, market)
}

// computeMTF recomputes the fast/slow trend comparison on a coarser view of
// the same closes (last close per completed bucket of MTFFactor bars) and
// forward-fills the result back to the native cadence.
func computeMTF(f *Frame, closes []float64, p Params) {
	n := len(closes)
	out := nanSlice(n)
	if p.MTFFactor > 1 {
		buckets := n / p.MTFFactor
		coarse := make([]float64, buckets)
		for b := 0; b < buckets; b++ {
			coarse[b] = closes[(b+1)*p.MTFFactor-1]
		}
		coarseFast := EMA(coarse, p.EMAFastPeriod)
		coarseSlow := EMA(coarse, p.EMAMediumPeriod)
		for i := 0; i < n; i++ {
			completed := (i + 1) / p.MTFFactor
			if completed == 0 {
				continue
			}
			b := completed - 1
			if math.IsNaN(coarseFast[b]) || math.IsNaN(coarseSlow[b]) {
				continue
			}
			if coarseFast[b] > coarseSlow[b] {
				out[i] = 1
			} else {
				out[i] = 0
			}
		}
	}
	f.set(MTFTrend, out)
}

func computeFunding(f *Frame, funding []float64, p Params) {
	f.set(FundingRate, append([]float64(nil), funding...))

	maShort := SMA(funding, p.FundingShortWindow)
	maLong := SMA(funding, p.FundingLongWindow)
	f.set(FundingMAShort, maShort)
	f.set(FundingMALong, maLong)
	f.set(FundingStd, RollingStd(funding, p.FundingLongWindow))

	momentum := Diff(funding, p.FundingDiffLag)
	accel := Diff(momentum, 1)
	jerk := Diff(accel, 1)
	f.set(FundingMomentum, momentum)
	f.set(FundingAccel, accel)
	f.set(FundingJerk, jerk)
	f.set(FundingVelocity, EMA(momentum, 3))

	maShorter := SMA(funding, p.FundingShortWindow/2)
	stressShort := nanSlice(len(funding))
	stressLong := nanSlice(len(funding))
	for i := range funding {
		if !math.IsNaN(maShorter[i]) && !math.IsNaN(maLong[i]) {
			stressShort[i] = maShorter[i] - maLong[i]
		}
		if !math.IsNaN(maShort[i]) && !math.IsNaN(maLong[i]) {
			stressLong[i] = maShort[i] - maLong[i]
		}
	}
	f.set(FundingStressShort, stressShort)
	f.set(FundingStressLong, stressLong)

	f.set(FundingStress, fundingStressSeries(funding, momentum))
}

// fundingStressSeries maps the raw funding state to the signed [-1,1] stress
// indicator surfaced in alert snapshots. Extreme magnitude dominates, a sign
// flip from the previous bar overrides everything.
func fundingStressSeries(funding, momentum []float64) []float64 {
	const (
		extreme  = 0.00015
		elevated = 0.00005
	)
	out := make([]float64, len(funding))
	for i := range funding {
		fr := funding[i]
		switch {
		case fr > extreme:
			out[i] = 0.9
		case fr < -extreme:
			out[i] = -0.7
		}
		if !math.IsNaN(momentum[i]) {
			if momentum[i] > 0 && fr > elevated && out[i] == 0 {
				out[i] = 0.5
			}
			if momentum[i] < 0 && fr < -elevated && out[i] == 0 {
				out[i] = -0.4
			}
		}
		if i > 0 {
			if fr < 0 && funding[i-1] >= 0 {
				out[i] = 0.7
			}
			if fr > 0 && funding[i-1] <= 0 {
				out[i] = -0.5
			}
		}
	}
	return out
}

// rsiSeries computes the per-bar RSI with Wilder smoothing over gains and
// losses. A window with no losses pegs at 100, no gains at 0.
func rsiSeries(closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if n < period+1 {
		return out
	}
	gains := make([]float64, n-1)
	losses := make([]float64, n-1)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = -change
		}
	}
	avgGain := wilder(gains, period)
	avgLoss := wilder(losses, period)
	for i := period; i < n; i++ {
		g := avgGain[i-1]
		l := avgLoss[i-1]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		if l == 0 {
			out[i] = 100
			continue
		}
		rs := g / l
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// atrSeries computes the per-bar Average True Range with Wilder smoothing.
func atrSeries(s series.Series, period int) []float64 {
	n := s.Len()
	out := nanSlice(n)
	if n < period+1 {
		return out
	}
	tr := make([]float64, n-1)
	for i := 1; i < n; i++ {
		hl := s.Bars[i].High - s.Bars[i].Low
		hc := math.Abs(s.Bars[i].High - s.Bars[i-1].Close)
		lc := math.Abs(s.Bars[i].Low - s.Bars[i-1].Close)
		tr[i-1] = math.Max(hl, math.Max(hc, lc))
	}
	smoothed := wilder(tr, period)
	for i := period; i < n; i++ {
		out[i] = smoothed[i-1]
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
