package indicators

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// nanSeries returns n NaN values
func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// rolling applies fn to every full trailing window. A window containing a
// NaN yields NaN, matching a rolling window with min_periods == window.
func rolling(values []float64, window int, fn func([]float64) float64) []float64 {
	out := nanSeries(len(values))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		if floats.HasNaN(w) {
			continue
		}
		out[i] = fn(w)
	}
	return out
}

func rollingMean(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		return stat.Mean(w, nil)
	})
}

// rollingStd is the sample (n-1) standard deviation
func rollingStd(values []float64, window int) []float64 {
	if window < 2 {
		return nanSeries(len(values))
	}
	return rolling(values, window, func(w []float64) float64 {
		return stat.StdDev(w, nil)
	})
}

func rollingMin(values []float64, window int) []float64 {
	return rolling(values, window, floats.Min)
}

func rollingMax(values []float64, window int) []float64 {
	return rolling(values, window, floats.Max)
}

// maskBefore sets every index below from to NaN
func maskBefore(values []float64, from int) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	for i := 0; i < from && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}

// diff returns values[i]-values[i-1], NaN at index 0
func diff(values []float64) []float64 {
	out := nanSeries(len(values))
	for i := 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}

// pctChange returns values[i]/values[i-1]-1, NaN at index 0 and where the
// previous value is zero
func pctChange(values []float64) []float64 {
	out := nanSeries(len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out[i] = values[i]/values[i-1] - 1
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
