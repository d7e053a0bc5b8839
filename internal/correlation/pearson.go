package correlation

import "math"

// pearsonShifted computes the sample Pearson correlation between x at time
// t and y at time t+lag, over the overlapping window of the two series.
// Index pairs where either value is NaN are excluded. Returns ok=false when
// fewer than minOverlap valid pairs remain or either side has zero variance
// over the window (degenerate series), so callers can skip the lag instead
// of treating it as zero correlation.
func pearsonShifted(x, y []float64, lag, minOverlap int) (float64, bool) {
	lo := 0
	if lag < 0 {
		lo = -lag
	}
	hi := len(x)
	if len(y)-lag < hi {
		hi = len(y) - lag
	}
	if hi-lo < minOverlap {
		return 0, false
	}

	// First pass: means over valid pairs.
	n := 0
	sumX, sumY := 0.0, 0.0
	for i := lo; i < hi; i++ {
		xv, yv := x[i], y[i+lag]
		if math.IsNaN(xv) || math.IsNaN(yv) {
			continue
		}
		sumX += xv
		sumY += yv
		n++
	}
	if n < minOverlap {
		return 0, false
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	// Second pass: covariance and variances. The n-1 denominators cancel
	// in the ratio, so sums of squares are enough.
	cov, varX, varY := 0.0, 0.0, 0.0
	for i := lo; i < hi; i++ {
		xv, yv := x[i], y[i+lag]
		if math.IsNaN(xv) || math.IsNaN(yv) {
			continue
		}
		dx := xv - meanX
		dy := yv - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}

	return cov / math.Sqrt(varX*varY), true
}
