package indicators

import (
	"math"

	"stock-forecast/models"
)

// tradingDaysPerYear annualizes daily volatility
const tradingDaysPerYear = 252

// BollingerResult holds the band columns
type BollingerResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
	Width  []float64
}

// Bollinger computes SMA(window) bands at k sample standard deviations
func Bollinger(closes []float64, window int, k float64) BollingerResult {
	middle := SMA(closes, window)
	std := rollingStd(closes, window)

	n := len(closes)
	res := BollingerResult{
		Upper:  nanSeries(n),
		Middle: middle,
		Lower:  nanSeries(n),
		Width:  nanSeries(n),
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(middle[i]) || math.IsNaN(std[i]) {
			continue
		}
		res.Upper[i] = middle[i] + k*std[i]
		res.Lower[i] = middle[i] - k*std[i]
		if middle[i] != 0 {
			res.Width[i] = (res.Upper[i] - res.Lower[i]) / middle[i]
		}
	}
	return res
}

// ATR computes the rolling mean of the true range. A close-only series
// falls back to the rolling mean of absolute close-to-close changes.
func ATR(series *models.PriceSeries, period int) []float64 {
	closes := series.Closes()
	if series.Kind != models.SeriesFull {
		changes := diff(closes)
		for i, c := range changes {
			changes[i] = math.Abs(c)
		}
		return rollingMean(changes, period)
	}

	highs, lows := series.Highs(), series.Lows()
	tr := make([]float64, len(closes))
	for i := range closes {
		tr[i] = highs[i] - lows[i]
		if i == 0 {
			continue
		}
		prev := closes[i-1]
		tr[i] = math.Max(tr[i], math.Max(math.Abs(highs[i]-prev), math.Abs(lows[i]-prev)))
	}
	return rollingMean(tr, period)
}

// Volatility is the annualized rolling standard deviation of daily percent
// returns, in percent.
func Volatility(closes []float64, window int) []float64 {
	std := rollingStd(pctChange(closes), window)
	scale := math.Sqrt(tradingDaysPerYear) * 100
	for i, v := range std {
		if !math.IsNaN(v) {
			std[i] = v * scale
		}
	}
	return std
}
