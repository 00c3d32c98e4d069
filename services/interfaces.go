package services

import (
	"context"
	"errors"
	"time"

	"stock-forecast/models"
)

// ErrNoResults means an upstream answered but had no rows for the request.
// It is permanent and never retried.
var ErrNoResults = errors.New("no results")

// PriceSource fetches raw historical prices from one upstream
type PriceSource interface {
	Name() string
	FetchHistory(ctx context.Context, ticker string, start time.Time, interval string) (*models.RawFrame, error)
}

// ModelServiceInterface defines the remote learned-model forecaster
type ModelServiceInterface interface {
	Forecast(ctx context.Context, req ModelForecastRequest) (*ModelForecastResponse, error)
	Health(ctx context.Context) error
}

// PDFRenderer converts an HTML document to PDF bytes
type PDFRenderer interface {
	Render(ctx context.Context, html []byte) ([]byte, error)
}

// Compile-time interface verification
var _ PriceSource = (*YahooService)(nil)
var _ PriceSource = (*AlphaVantageService)(nil)
var _ PriceSource = (*AlpacaService)(nil)
var _ ModelServiceInterface = (*ModelService)(nil)
var _ PDFRenderer = (*WkhtmltopdfRenderer)(nil)
