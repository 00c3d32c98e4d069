package forecast

import (
	"context"
	"math"
	"time"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/stat"

	"stock-forecast/models"
	"stock-forecast/observability"
)

const (
	defaultLookback = 120
	// two-sided 95% normal quantile
	bandZ = 1.96
)

// Statistical extrapolates a least-squares linear trend over the trailing
// lookback window. The band widens with the square root of the step.
type Statistical struct {
	lookback   int
	maxHorizon int

	fitted    bool
	ticker    string
	lastDate  time.Time
	n         int
	intercept float64
	slope     float64
	sigma     float64
}

// NewStatistical creates an unfitted trend forecaster
func NewStatistical(lookback, maxHorizon int) *Statistical {
	if lookback < 2 {
		lookback = defaultLookback
	}
	return &Statistical{lookback: lookback, maxHorizon: maxHorizon}
}

func (s *Statistical) Kind() Kind { return KindStatistical }

// Fit estimates the trend and residual spread
func (s *Statistical) Fit(_ context.Context, series *models.PriceSeries) error {
	if err := checkSeries(series); err != nil {
		return err
	}

	closes := series.Closes()
	if len(closes) > s.lookback {
		closes = closes[len(closes)-s.lookback:]
	}
	n := len(closes)
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}

	alpha, beta := stat.LinearRegression(xs, closes, nil, false)

	var sse float64
	for i, y := range closes {
		r := y - (alpha + beta*xs[i])
		sse += r * r
	}
	sigma := 0.0
	if n > 2 {
		sigma = math.Sqrt(sse / float64(n-2))
	}

	s.fitted = true
	s.ticker = series.Ticker
	s.lastDate = series.Last().Date
	s.n = n
	s.intercept = alpha
	s.slope = beta
	s.sigma = sigma
	return nil
}

// Predict returns horizon points on the business days after the last
// fitted date
func (s *Statistical) Predict(_ context.Context, horizon int) (*models.ForecastResult, error) {
	if !s.fitted {
		return nil, &models.NotFittedError{Backend: string(KindStatistical)}
	}
	if err := checkHorizon(horizon, s.maxHorizon); err != nil {
		return nil, err
	}
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveForecast(string(KindStatistical))

	dates := NextBusinessDays(s.lastDate, horizon)
	points := make([]models.ForecastPoint, horizon)
	for k := 1; k <= horizon; k++ {
		x := float64(s.n - 1 + k)
		yhat := s.intercept + s.slope*x
		band := bandZ * s.sigma * math.Sqrt(float64(k))
		points[k-1] = models.ForecastPoint{
			Date:  dates[k-1],
			Value: yhat,
			Lower: null.FloatFrom(yhat - band),
			Upper: null.FloatFrom(yhat + band),
		}
	}

	return &models.ForecastResult{Ticker: s.ticker, Backend: string(KindStatistical), Points: points}, nil
}
