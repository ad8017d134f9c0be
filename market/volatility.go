package market

import "math"

// RollingVol calculates realized volatility from consecutive trade prices.
// It keeps a bounded FIFO window of log returns sized windowSecs*1000/stepMs.
type RollingVol struct {
	returns []float64
	head    int
	n       int
	lastPx  float64
}

// NewRollingVol creates a new volatility estimator.
func NewRollingVol(windowSecs, stepMs int) *RollingVol {
	window := 1
	if stepMs > 0 {
		window = 1000 * windowSecs / stepMs
	}
	if window < 1 {
		window = 1
	}
	return &RollingVol{returns: make([]float64, window)}
}

// Update adds a trade price. A log return is only stored when a previous
// positive price exists and the new price is positive.
func (v *RollingVol) Update(px float64) {
	if px <= 0 {
		return
	}
	if v.lastPx > 0 {
		v.returns[v.head] = math.Log(px / v.lastPx)
		v.head = (v.head + 1) % len(v.returns)
		if v.n < len(v.returns) {
			v.n++
		}
	}
	v.lastPx = px
}

// SigmaBps returns the sample standard deviation (n-1) of retained log
// returns scaled by 1e4. Not normalized to any horizon.
func (v *RollingVol) SigmaBps() float64 {
	if v.n <= 1 {
		return 0
	}
	sum := 0.0
	for i := 0; i < v.n; i++ {
		sum += v.returns[i]
	}
	mean := sum / float64(v.n)

	sumSquaredDiff := 0.0
	for i := 0; i < v.n; i++ {
		diff := v.returns[i] - mean
		sumSquaredDiff += diff * diff
	}
	variance := sumSquaredDiff / float64(v.n-1)
	return math.Sqrt(variance) * 1e4
}

// Len returns the number of retained returns.
func (v *RollingVol) Len() int {
	return v.n
}

// Capacity returns the window size in returns.
func (v *RollingVol) Capacity() int {
	return len(v.returns)
}
