// Package forecast projects a price series forward behind a single
// Forecaster interface. The backend is picked once at construction.
package forecast

import (
	"context"
	"errors"
	"fmt"

	"stock-forecast/models"
	"stock-forecast/services"
)

// Kind tags a forecasting backend
type Kind string

const (
	// KindStatistical fits a local least-squares trend
	KindStatistical Kind = "statistical"
	// KindLearned delegates to the remote model service
	KindLearned Kind = "learned"
)

// ErrInvalidHorizon is returned for a non-positive or oversized horizon
var ErrInvalidHorizon = errors.New("invalid forecast horizon")

// Forecaster fits a series and predicts future business days
type Forecaster interface {
	Fit(ctx context.Context, series *models.PriceSeries) error
	Predict(ctx context.Context, horizon int) (*models.ForecastResult, error)
	Kind() Kind
}

// Options configures a forecaster
type Options struct {
	// Lookback is the trailing window the statistical trend is fitted on
	Lookback int
	// MaxHorizon caps Predict; zero means no cap
	MaxHorizon int
	// Client and Model are used by the learned backend
	Client services.ModelServiceInterface
	Model  string
}

// ParseKind validates a backend name
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindStatistical, KindLearned:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown forecast backend %q", s)
	}
}

// New creates the forecaster for kind
func New(kind Kind, opts Options) (Forecaster, error) {
	switch kind {
	case KindStatistical:
		return NewStatistical(opts.Lookback, opts.MaxHorizon), nil
	case KindLearned:
		if opts.Client == nil {
			return nil, fmt.Errorf("learned forecaster requires a model service client")
		}
		return NewLearned(opts.Client, opts.Model, opts.MaxHorizon), nil
	default:
		return nil, fmt.Errorf("unknown forecast backend %q", kind)
	}
}

func checkHorizon(horizon, maxHorizon int) error {
	if horizon <= 0 {
		return fmt.Errorf("%w: %d must be positive", ErrInvalidHorizon, horizon)
	}
	if maxHorizon > 0 && horizon > maxHorizon {
		return fmt.Errorf("%w: %d exceeds maximum %d", ErrInvalidHorizon, horizon, maxHorizon)
	}
	return nil
}

func checkSeries(series *models.PriceSeries) error {
	if series == nil || series.Len() < 2 {
		have := 0
		if series != nil {
			have = series.Len()
		}
		return &models.InsufficientDataError{Need: 2, Have: have}
	}
	return series.Validate()
}
