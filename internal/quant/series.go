package quant

import "math"

// Mean returns the arithmetic mean, 0 on an empty series.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Std returns the sample standard deviation (n-1 denominator), 0 when fewer
// than two points.
func Std(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	mean := Mean(xs)
	sum2 := 0.0
	for _, x := range xs {
		d := x - mean
		sum2 += d * d
	}
	variance := sum2 / float64(n-1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// StdP returns the population standard deviation (n denominator), 0 when
// fewer than two points.
func StdP(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	mean := Mean(xs)
	sum2 := 0.0
	for _, x := range xs {
		d := x - mean
		sum2 += d * d
	}
	return math.Sqrt(sum2 / float64(n))
}

// Tail returns the last n elements, or the whole series when shorter.
func Tail(xs []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

// SMA returns the mean of the last window values. Shorter series fall back
// to the mean of whatever is available.
func SMA(xs []float64, window int) float64 {
	return Mean(Tail(xs, window))
}

// EMA returns the exponential moving average over the full series, seeded
// with the first value, alpha = 2/(span+1).
func EMA(xs []float64, span int) float64 {
	if len(xs) == 0 {
		return 0
	}
	if span < 1 {
		span = 1
	}
	alpha := 2.0 / (float64(span) + 1.0)
	ema := xs[0]
	for _, x := range xs[1:] {
		ema = alpha*x + (1-alpha)*ema
	}
	return ema
}

// RSI returns the rolling-mean relative strength index over the last window
// deltas. Below window+1 points it returns neutral 50. With zero mean loss
// it returns 100, or 50 when the mean gain is zero as well.
func RSI(xs []float64, window int) float64 {
	if window < 1 || len(xs) < window+1 {
		return 50
	}
	gain := 0.0
	loss := 0.0
	for i := len(xs) - window; i < len(xs); i++ {
		d := xs[i] - xs[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		if gain == 0 {
			return 50
		}
		return 100
	}
	rs := gain / loss
	return 100 - (100 / (1 + rs))
}

// PctChange returns (last - base) / base against the value period steps
// back, 0 when the series is too short or the base is zero.
func PctChange(xs []float64, period int) float64 {
	if period < 1 || len(xs) <= period {
		return 0
	}
	base := xs[len(xs)-1-period]
	if base == 0 {
		return 0
	}
	return (xs[len(xs)-1] - base) / base
}

// Returns computes the simple percent-change series, one element shorter
// than the input. A zero base yields a zero return.
func Returns(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		if xs[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (xs[i]-xs[i-1])/xs[i-1])
	}
	return out
}

// Slope returns the least-squares slope of xs against its indices, 0 when
// fewer than two points.
func Slope(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range xs {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (fn*sumXY - sumX*sumY) / denom
}

// ZScore returns (last - mean) / std over the last window values, 0 on zero
// deviation.
func ZScore(xs []float64, window int) float64 {
	if len(xs) == 0 {
		return 0
	}
	w := Tail(xs, window)
	sd := Std(w)
	if sd == 0 {
		return 0
	}
	return (xs[len(xs)-1] - Mean(w)) / sd
}

// PercentileRank returns the percentile of v within xs using average ranks
// for ties, so a window of identical values ranks near 50 instead of 100.
// Empty series rank 50.
func PercentileRank(xs []float64, v float64) float64 {
	if len(xs) == 0 {
		return 50
	}
	var less, equal float64
	for _, x := range xs {
		switch {
		case x < v:
			less++
		case x == v:
			equal++
		}
	}
	return (less + (equal+1)/2) / float64(len(xs)) * 100
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TrueRanges returns the true-range series: max(high-low, |high-prevClose|,
// |low-prevClose|), with the first element reduced to high-low.
func TrueRanges(highs, lows, closes []float64) []float64 {
	n := len(closes)
	if n == 0 || len(highs) != n || len(lows) != n {
		return nil
	}
	out := make([]float64, n)
	out[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		tr := highs[i] - lows[i]
		if hc := math.Abs(highs[i] - closes[i-1]); hc > tr {
			tr = hc
		}
		if lc := math.Abs(lows[i] - closes[i-1]); lc > tr {
			tr = lc
		}
		out[i] = tr
	}
	return out
}

// VWAP returns the cumulative typical-price volume-weighted average price
// over the whole series. With no traded volume it degrades to the last close.
func VWAP(highs, lows, closes, volumes []float64) float64 {
	n := len(closes)
	if n == 0 || len(highs) != n || len(lows) != n || len(volumes) != n {
		return 0
	}
	var pv, vol float64
	for i := 0; i < n; i++ {
		typical := (highs[i] + lows[i] + closes[i]) / 3
		pv += typical * volumes[i]
		vol += volumes[i]
	}
	if vol == 0 {
		return closes[n-1]
	}
	return pv / vol
}

// Hurst estimates the Hurst exponent via the log-log slope of
// sqrt(std(x[lag:] - x[:len-lag])) over lags 2 up to maxLag, scaled by 2.
// Degenerate input (fewer than two usable lags, non-finite logs) yields 0.5.
func Hurst(xs []float64, maxLag int) float64 {
	if maxLag < 4 || len(xs) < 3 {
		return 0.5
	}
	var logLags, logTaus []float64
	for lag := 2; lag < maxLag; lag++ {
		if lag >= len(xs) {
			break
		}
		diffs := make([]float64, len(xs)-lag)
		for i := lag; i < len(xs); i++ {
			diffs[i-lag] = xs[i] - xs[i-lag]
		}
		tau := math.Sqrt(StdP(diffs))
		if tau <= 0 || math.IsNaN(tau) || math.IsInf(tau, 0) {
			continue
		}
		logLags = append(logLags, math.Log(float64(lag)))
		logTaus = append(logTaus, math.Log(tau))
	}
	if len(logLags) < 2 {
		return 0.5
	}
	slope := slopeXY(logLags, logTaus)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0.5
	}
	return slope * 2.0
}

func slopeXY(xs, ys []float64) float64 {
	n := float64(len(xs))
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return math.NaN()
	}
	return (n*sumXY - sumX*sumY) / denom
}
