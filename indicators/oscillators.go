package indicators

import (
	"math"

	"stock-forecast/models"
)

// RSI computes the relative strength index from simple rolling means of
// gains and losses (not Wilder smoothing). The first value is defined at
// index period. A window with no movement at all is NaN.
func RSI(closes []float64, period int) []float64 {
	deltas := diff(closes)
	gains := make([]float64, len(deltas))
	losses := make([]float64, len(deltas))
	for i, d := range deltas {
		switch {
		case math.IsNaN(d):
			gains[i], losses[i] = math.NaN(), math.NaN()
		case d > 0:
			gains[i] = d
		default:
			losses[i] = -d
		}
	}

	avgGain := rollingMean(gains, period)
	avgLoss := rollingMean(losses, period)

	out := nanSeries(len(closes))
	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		switch {
		case g == 0 && l == 0:
			// flat window, RS is 0/0
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// MACDResult holds the three MACD columns
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast)-EMA(slow), its EMA(signal) and the histogram.
// The line is defined from index slow-1, signal and histogram from
// slow+signal-2.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	fastEMA := emaRaw(closes, fast)
	slowEMA := emaRaw(closes, slow)

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := emaRaw(line, signal)

	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - signalLine[i]
	}

	lineStart := slow - 1
	signalStart := lineStart + signal - 1
	return MACDResult{
		Line:      maskBefore(line, lineStart),
		Signal:    maskBefore(signalLine, signalStart),
		Histogram: maskBefore(hist, signalStart),
	}
}

// StochasticResult holds %K and %D
type StochasticResult struct {
	K []float64
	D []float64
}

// Stochastic computes %K over period and %D as the smoothing SMA of %K.
// A full series uses the rolling low/high range and leaves a zero range
// undefined. A close-only series uses the rolling close range and replaces
// a zero range with 1, which pins %K to 0 on flat stretches.
func Stochastic(series *models.PriceSeries, period, smoothing int) StochasticResult {
	closes := series.Closes()

	var lowest, highest []float64
	if series.Kind == models.SeriesFull {
		lowest = rollingMin(series.Lows(), period)
		highest = rollingMax(series.Highs(), period)
	} else {
		lowest = rollingMin(closes, period)
		highest = rollingMax(closes, period)
	}

	k := nanSeries(len(closes))
	for i, c := range closes {
		lo, hi := lowest[i], highest[i]
		if math.IsNaN(lo) || math.IsNaN(hi) {
			continue
		}
		rng := hi - lo
		if rng == 0 {
			if series.Kind == models.SeriesFull {
				continue
			}
			rng = 1
		}
		k[i] = 100 * (c - lo) / rng
	}

	return StochasticResult{K: k, D: rollingMean(k, smoothing)}
}
