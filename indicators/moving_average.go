package indicators

import "math"

// SMA computes the trailing simple moving average. Values before index
// window-1 are NaN.
func SMA(values []float64, window int) []float64 {
	return rollingMean(values, window)
}

// EMA computes the exponential moving average with smoothing 2/(window+1),
// masked to NaN before index window-1.
func EMA(values []float64, window int) []float64 {
	return maskBefore(emaRaw(values, window), window-1)
}

// emaRaw is the unmasked recursion seeded with the first finite value:
// y0 = x0, y_t = y_{t-1} + alpha*(x_t - y_{t-1}).
func emaRaw(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window <= 0 {
		return out
	}
	alpha := 2.0 / float64(window+1)

	prev := math.NaN()
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = prev
		case math.IsNaN(prev):
			prev = v
			out[i] = v
		default:
			prev += alpha * (v - prev)
			out[i] = prev
		}
	}
	return out
}
