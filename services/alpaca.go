package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"stock-forecast/models"
	"stock-forecast/observability"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// alpacaDataClient is the subset of the market data client we use
type alpacaDataClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaService reads historical bars from Alpaca market data
type AlpacaService struct {
	dataClient alpacaDataClient
}

// NewAlpacaService creates a new AlpacaService instance. The market data
// client retries 429/5xx itself, so retry only supplies the attempt count
// and the fixed delay between attempts.
func NewAlpacaService(apiKey, apiSecret string, timeout time.Duration, retry RetryConfig) *AlpacaService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dataClient := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		RetryLimit: alpacaRetryLimit(retry.MaxRetries),
		RetryDelay: retry.InitialBackoff,
		HTTPClient: &http.Client{Timeout: timeout},
	})

	return &AlpacaService{dataClient: dataClient}
}

// Name identifies the source
func (s *AlpacaService) Name() string {
	return models.SourceAlpaca
}

// alpacaRetryLimit is the retry count handed to the market data client,
// which treats zero as its own default of ten
func alpacaRetryLimit(maxRetries int) int {
	if maxRetries < 1 {
		return 1
	}
	return maxRetries
}

func alpacaTimeFrame(interval string) (marketdata.TimeFrame, error) {
	switch interval {
	case "", "1d":
		return marketdata.OneDay, nil
	case "1wk":
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	case "1mo":
		return marketdata.NewTimeFrame(1, marketdata.Month), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported interval %q", interval)
	}
}

// FetchHistory returns bars since start as a raw frame
func (s *AlpacaService) FetchHistory(ctx context.Context, ticker string, start time.Time, interval string) (*models.RawFrame, error) {
	timeframe, err := alpacaTimeFrame(interval)
	if err != nil {
		return nil, err
	}

	return WithCircuitBreaker(ctx, BreakerAlpaca, func() (*models.RawFrame, error) {
		metrics := observability.GetMetrics()
		metrics.RecordExternalAPIRequest(BreakerAlpaca, "get_bars")
		timer := metrics.NewTimer()
		defer timer.ObserveExternalAPI(BreakerAlpaca, "get_bars")

		bars, err := s.dataClient.GetBars(ticker, marketdata.GetBarsRequest{
			TimeFrame: timeframe,
			Start:     start,
			End:       time.Now(),
		})
		if err != nil {
			metrics.RecordExternalAPIError(BreakerAlpaca, "get_bars", "request")
			return nil, Transient(fmt.Errorf("failed to get bars for %s: %w", ticker, err))
		}
		if len(bars) == 0 {
			return nil, fmt.Errorf("%w: no bars for %s", ErrNoResults, ticker)
		}

		return barsToFrame(bars), nil
	})
}

func barsToFrame(bars []marketdata.Bar) *models.RawFrame {
	n := len(bars)
	frame := &models.RawFrame{Source: models.SourceAlpaca, Dates: make([]time.Time, n)}
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	volume := make([]float64, n)

	for i, bar := range bars {
		ts := bar.Timestamp.UTC()
		frame.Dates[i] = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		open[i] = bar.Open
		high[i] = bar.High
		low[i] = bar.Low
		closes[i] = bar.Close
		volume[i] = float64(bar.Volume)
	}

	frame.AddColumn(open, "open")
	frame.AddColumn(high, "high")
	frame.AddColumn(low, "low")
	frame.AddColumn(closes, "close")
	frame.AddColumn(volume, "volume")
	return frame
}
