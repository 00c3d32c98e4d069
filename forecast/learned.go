package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/guregu/null/v6"

	"stock-forecast/models"
	"stock-forecast/observability"
	"stock-forecast/services"
)

// Learned forwards history to the model service (Prophet or LSTM) and maps
// its reply onto our business-day calendar
type Learned struct {
	client     services.ModelServiceInterface
	model      string
	maxHorizon int

	series *models.PriceSeries
}

// NewLearned creates an unfitted remote forecaster
func NewLearned(client services.ModelServiceInterface, model string, maxHorizon int) *Learned {
	if model == "" {
		model = "prophet"
	}
	return &Learned{client: client, model: model, maxHorizon: maxHorizon}
}

func (l *Learned) Kind() Kind { return KindLearned }

// Fit keeps the series for the remote call. The service fits on request.
func (l *Learned) Fit(_ context.Context, series *models.PriceSeries) error {
	if err := checkSeries(series); err != nil {
		return err
	}
	l.series = series
	return nil
}

// Predict asks the service for horizon future business days
func (l *Learned) Predict(ctx context.Context, horizon int) (*models.ForecastResult, error) {
	if l.series == nil {
		return nil, &models.NotFittedError{Backend: string(KindLearned)}
	}
	if err := checkHorizon(horizon, l.maxHorizon); err != nil {
		return nil, err
	}
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveForecast(string(KindLearned))

	dates := NextBusinessDays(l.series.Last().Date, horizon)
	req := services.ModelForecastRequest{
		Ticker:  l.series.Ticker,
		Model:   l.model,
		History: make([]services.ModelObservation, l.series.Len()),
		Dates:   make([]string, horizon),
	}
	for i, b := range l.series.Bars {
		req.History[i] = services.ModelObservation{Date: b.Date.Format(time.DateOnly), Value: b.Close}
	}
	for i, d := range dates {
		req.Dates[i] = d.Format(time.DateOnly)
	}

	resp, err := l.client.Forecast(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s forecast for %s: %w", l.model, l.series.Ticker, err)
	}
	if len(resp.Forecast) != horizon {
		return nil, fmt.Errorf("%s forecast for %s: got %d points, want %d", l.model, l.series.Ticker, len(resp.Forecast), horizon)
	}

	points := make([]models.ForecastPoint, horizon)
	for i, p := range resp.Forecast {
		points[i] = models.ForecastPoint{
			Date:  dates[i],
			Value: p.Value,
			Lower: null.FloatFromPtr(p.Lower),
			Upper: null.FloatFromPtr(p.Upper),
		}
	}
	return &models.ForecastResult{Ticker: l.series.Ticker, Backend: string(KindLearned) + ":" + l.model, Points: points}, nil
}
