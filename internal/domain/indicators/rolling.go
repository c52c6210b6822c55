package indicators

import (
	"math"
	"sort"
)

// Rolling primitives shared by the indicator bank. All of them return a
// slice of the same length as the input with NaN over the warm-up prefix,
// and propagate NaN whenever the window contains one.

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA computes a trailing simple moving average.
func SMA(vals []float64, period int) []float64 {
	out := nanSlice(len(vals))
	if period <= 0 || len(vals) < period {
		return out
	}
	for i := period - 1; i < len(vals); i++ {
		sum := 0.0
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(vals[j]) {
				ok = false
				break
			}
			sum += vals[j]
		}
		if ok {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes an exponential moving average with alpha = 2/(period+1),
// seeded with the SMA of the first full window of valid values.
func EMA(vals []float64, period int) []float64 {
	out := nanSlice(len(vals))
	if period <= 0 {
		return out
	}
	first := firstValid(vals)
	if first < 0 || len(vals)-first < period {
		return out
	}
	seed := 0.0
	for i := first; i < first+period; i++ {
		if math.IsNaN(vals[i]) {
			return out
		}
		seed += vals[i]
	}
	idx := first + period - 1
	out[idx] = seed / float64(period)
	alpha := 2.0 / (float64(period) + 1.0)
	for i := idx + 1; i < len(vals); i++ {
		if math.IsNaN(vals[i]) {
			out[i] = math.NaN()
			continue
		}
		prev := out[i-1]
		if math.IsNaN(prev) {
			out[i] = vals[i]
			continue
		}
		out[i] = prev*(1-alpha) + vals[i]*alpha
	}
	return out
}

// wilder applies Wilder's smoothing (alpha = 1/period), the RSI/ATR variant.
func wilder(vals []float64, period int) []float64 {
	out := nanSlice(len(vals))
	if period <= 0 {
		return out
	}
	first := firstValid(vals)
	if first < 0 || len(vals)-first < period {
		return out
	}
	seed := 0.0
	for i := first; i < first+period; i++ {
		if math.IsNaN(vals[i]) {
			return out
		}
		seed += vals[i]
	}
	idx := first + period - 1
	out[idx] = seed / float64(period)
	alpha := 1.0 / float64(period)
	for i := idx + 1; i < len(vals); i++ {
		if math.IsNaN(vals[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = out[i-1]*(1-alpha) + vals[i]*alpha
	}
	return out
}

// Diff computes vals[i] - vals[i-lag].
func Diff(vals []float64, lag int) []float64 {
	out := nanSlice(len(vals))
	for i := lag; i < len(vals); i++ {
		if math.IsNaN(vals[i]) || math.IsNaN(vals[i-lag]) {
			continue
		}
		out[i] = vals[i] - vals[i-lag]
	}
	return out
}

// RollingStd computes the trailing sample standard deviation.
func RollingStd(vals []float64, period int) []float64 {
	out := nanSlice(len(vals))
	if period <= 1 || len(vals) < period {
		return out
	}
	for i := period - 1; i < len(vals); i++ {
		mean := 0.0
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(vals[j]) {
				ok = false
				break
			}
			mean += vals[j]
		}
		if !ok {
			continue
		}
		mean /= float64(period)
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := vals[j] - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(period-1))
	}
	return out
}

// RollingCorr computes the trailing Pearson correlation of two aligned
// series. Zero-variance windows yield NaN rather than a division blowup.
func RollingCorr(a, b []float64, period int) []float64 {
	out := nanSlice(len(a))
	if period <= 1 || len(a) != len(b) || len(a) < period {
		return out
	}
	for i := period - 1; i < len(a); i++ {
		var sa, sb float64
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(a[j]) || math.IsNaN(b[j]) {
				ok = false
				break
			}
			sa += a[j]
			sb += b[j]
		}
		if !ok {
			continue
		}
		ma := sa / float64(period)
		mb := sb / float64(period)
		var cov, va, vb float64
		for j := i - period + 1; j <= i; j++ {
			da := a[j] - ma
			db := b[j] - mb
			cov += da * db
			va += da * da
			vb += db * db
		}
		if va == 0 || vb == 0 {
			continue
		}
		out[i] = cov / math.Sqrt(va*vb)
	}
	return out
}

// RollingQuantile computes the trailing q-quantile (0 <= q <= 1) over the
// window, with linear interpolation between order statistics.
func RollingQuantile(vals []float64, period int, q float64) []float64 {
	out := nanSlice(len(vals))
	if period <= 0 || len(vals) < period || q < 0 || q > 1 {
		return out
	}
	window := make([]float64, 0, period)
	for i := period - 1; i < len(vals); i++ {
		window = window[:0]
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(vals[j]) {
				ok = false
				break
			}
			window = append(window, vals[j])
		}
		if !ok {
			continue
		}
		sort.Float64s(window)
		pos := q * float64(len(window)-1)
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		if lo == hi {
			out[i] = window[lo]
		} else {
			frac := pos - float64(lo)
			out[i] = window[lo]*(1-frac) + window[hi]*frac
		}
	}
	return out
}

func firstValid(vals []float64) int {
	for i, v := range vals {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

func safeDiv(num, den float64) float64 {
	if den == 0 || math.IsNaN(num) || math.IsNaN(den) {
		return math.NaN()
	}
	return num / den
}
