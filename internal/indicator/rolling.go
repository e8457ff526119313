package indicator

import "math"

// Align left-pads a trimmed indicator output with NaN so that index i
// lines up with input index i. n is the input length.
func Align(values []float64, n int) []float64 {
	out := make([]float64, n)
	pad := n - len(values)
	for i := 0; i < pad; i++ {
		out[i] = math.NaN()
	}
	copy(out[pad:], values)
	return out
}

// RollingMean returns the trailing mean over window samples, aligned with
// values. Entries without a full window are NaN.
func RollingMean(values []float64, window int) []float64 {
	if window <= 0 {
		return Align(nil, len(values))
	}
	return Align(SMA(values, window), len(values))
}

// RollingStd returns the trailing sample standard deviation (n-1
// denominator) over window samples, aligned with values. Entries without a
// full window are NaN, and a window of 1 is NaN everywhere.
func RollingStd(values []float64, window int) []float64 {
	out := Align(nil, len(values))
	if window < 2 {
		return out
	}

	// Two passes per window keep a constant input at exactly zero.
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		var sum float64
		for _, v := range w {
			sum += v
		}
		mean := sum / float64(window)

		var ss float64
		for _, v := range w {
			ss += (v - mean) * (v - mean)
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// NanMean averages the non-NaN entries. It is NaN when there are none.
func NanMean(values []float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
