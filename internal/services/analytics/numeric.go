package analytics

import (
	"math"
	"sort"
)

// finite reports whether v is a usable number within ±limit.
func finite(v, limit float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return math.Abs(v) <= limit
}

// safeDiv returns a/b, or ok=false when the result is not a finite number.
func safeDiv(a, b float64) (float64, bool) {
	if b == 0 {
		return 0, false
	}
	r := a / b
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// mean is a running mean over values divided by their largest magnitude, so
// inputs near the float64 limit do not overflow.
func mean(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	scale := maxAbs(v)
	if scale == 0 {
		return 0
	}
	var m float64
	for i, x := range v {
		m += (x/scale - m) / float64(i+1)
	}
	return m * scale
}

func maxAbs(v []float64) float64 {
	var out float64
	for _, x := range v {
		out = math.Max(out, math.Abs(x))
	}
	return out
}

// scaledSquares returns the squared deviations from the mean (Welford) of v
// divided by its largest magnitude, together with that scale. Working on the
// scaled values keeps the squares finite for inputs near the float64 limit.
func scaledSquares(v []float64) (ss, scale float64) {
	scale = maxAbs(v)
	if scale == 0 {
		return 0, 0
	}
	var m float64
	for i, x := range v {
		x /= scale
		d := x - m
		m += d / float64(i+1)
		ss += d * (x - m)
	}
	return ss, scale
}

// sampleStd is the n-1 standard deviation.
func sampleStd(v []float64) float64 {
	if len(v) < 2 {
		return math.NaN()
	}
	ss, scale := scaledSquares(v)
	return scale * math.Sqrt(ss/float64(len(v)-1))
}

// populationStd is the n standard deviation.
func populationStd(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	ss, scale := scaledSquares(v)
	return scale * math.Sqrt(ss/float64(len(v)))
}

func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func sortedCopy(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	sort.Float64s(out)
	return out
}

// linearFit is an ordinary least squares fit of y on x = 0..n-1.
type linearFit struct {
	n         int
	slope     float64
	intercept float64
	r2        float64 // NaN when y has no variance
	sse       float64
	sxx       float64
}

func fitLine(y []float64) (linearFit, bool) {
	n := len(y)
	if n < 2 {
		return linearFit{}, false
	}
	xm := float64(n-1) / 2
	ym := mean(y)
	var sxx, sxy, syy float64
	for i, v := range y {
		dx := float64(i) - xm
		dy := v - ym
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	slope := sxy / sxx
	fit := linearFit{
		n:         n,
		slope:     slope,
		intercept: ym - slope*xm,
		r2:        math.NaN(),
		sxx:       sxx,
	}
	for i, v := range y {
		r := v - fit.at(float64(i))
		fit.sse += r * r
	}
	if syy > 0 {
		fit.r2 = clamp01(1 - fit.sse/syy)
	}
	if math.IsNaN(fit.slope) || math.IsInf(fit.slope, 0) {
		return linearFit{}, false
	}
	return fit, true
}

func (f linearFit) at(x float64) float64 { return f.intercept + f.slope*x }

// slopeStdErr is the standard error of the slope estimate.
func (f linearFit) slopeStdErr() float64 {
	if f.n <= 2 || f.sxx == 0 {
		return math.NaN()
	}
	return math.Sqrt(f.sse / float64(f.n-2) / f.sxx)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// tCritical95 holds two-sided 95% Student-t critical values for df 1..30.
var tCritical95 = []float64{
	12.706, 4.303, 3.182, 2.776, 2.571, 2.447, 2.365, 2.306, 2.262, 2.228,
	2.201, 2.179, 2.160, 2.145, 2.131, 2.120, 2.110, 2.101, 2.093, 2.086,
	2.080, 2.074, 2.069, 2.064, 2.060, 2.056, 2.052, 2.048, 2.045, 2.042,
}

// tCritical99 holds two-sided 99% Student-t critical values for df 1..30.
var tCritical99 = []float64{
	63.657, 9.925, 5.841, 4.604, 4.032, 3.707, 3.499, 3.355, 3.250, 3.169,
	3.106, 3.055, 3.012, 2.977, 2.947, 2.921, 2.898, 2.878, 2.861, 2.845,
	2.831, 2.819, 2.807, 2.797, 2.787, 2.779, 2.771, 2.763, 2.756, 2.750,
}

// tCritical returns the two-sided critical value for the given confidence and degrees of freedom.
// Confidence levels other than 0.99 use the 95% table.
func tCritical(confidence float64, df int) float64 {
	table, normal := tCritical95, 1.960
	if confidence >= 0.99 {
		table, normal = tCritical99, 2.576
	}
	if df < 1 {
		return math.Inf(1)
	}
	if df <= len(table) {
		return table[df-1]
	}
	return normal
}
