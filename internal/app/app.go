package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"stock-forecast/config"
	"stock-forecast/forecast"
	"stock-forecast/indicators"
	"stock-forecast/models"
	"stock-forecast/observability"
	"stock-forecast/report"
	"stock-forecast/services"
)

var (
	// ErrBusy is returned when the concurrent analysis limit is reached
	ErrBusy = errors.New("analysis queue full, too many concurrent requests - try again later")
	// ErrInvalidInput wraps user input problems
	ErrInvalidInput = errors.New("invalid input")
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.^=-]{1,10}$`)

// HistoryLoader loads a validated price series
type HistoryLoader interface {
	Load(ctx context.Context, ticker string, start time.Time, interval string) (*models.PriceSeries, error)
}

// HealthChecker is a dependency that can report its health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Result is everything one analysis produced
type Result struct {
	Series   *models.PriceSeries
	Analysis *indicators.Analysis
	Forecast *models.ForecastResult
	Payload  *models.ReportPayload
}

// App orchestrates a request: load, analyze, forecast, assemble
type App struct {
	cfg          *config.Config
	loader       HistoryLoader
	engine       *indicators.Engine
	modelService services.ModelServiceInterface
	reports      *report.Builder
	checks       map[string]HealthChecker
	analysisSem  chan struct{}
	closers      []func()
}

// New creates a new App. modelService may be nil when only the statistical
// backend is used.
func New(cfg *config.Config, loader HistoryLoader, modelService services.ModelServiceInterface, renderer services.PDFRenderer) *App {
	limit := cfg.Analysis.ConcurrencyLimit
	if limit <= 0 {
		limit = 1
	}
	a := &App{
		cfg:          cfg,
		loader:       loader,
		engine:       indicators.NewEngine(),
		modelService: modelService,
		reports:      report.NewBuilder(renderer),
		checks:       make(map[string]HealthChecker),
		analysisSem:  make(chan struct{}, limit),
	}
	if modelService != nil {
		a.checks["model_service"] = modelService
	}
	return a
}

// AddHealthCheck registers a dependency reported by Health
func (a *App) AddHealthCheck(name string, c HealthChecker) {
	a.checks[name] = c
}

// OnClose registers a cleanup run by Shutdown
func (a *App) OnClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Shutdown releases resources in reverse registration order
func (a *App) Shutdown(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Health reports each registered dependency as "ok" or its error
func (a *App) Health(ctx context.Context) map[string]string {
	status := make(map[string]string, len(a.checks))
	for name, c := range a.checks {
		if err := c.Health(ctx); err != nil {
			status[name] = err.Error()
		} else {
			status[name] = "ok"
		}
	}
	return status
}

// MaxHorizon is the largest accepted forecast horizon
func (a *App) MaxHorizon() int {
	return a.cfg.Forecast.MaxHorizon
}

// NormalizeTicker upper-cases and validates a ticker symbol
func NormalizeTicker(raw string) (string, error) {
	ticker := strings.ToUpper(strings.TrimSpace(raw))
	if ticker == "" {
		return "", fmt.Errorf("%w: ticker is required", ErrInvalidInput)
	}
	if !tickerPattern.MatchString(ticker) {
		return "", fmt.Errorf("%w: invalid ticker %q", ErrInvalidInput, raw)
	}
	return ticker, nil
}

func (a *App) checkHorizon(horizon int) error {
	if horizon < 1 || horizon > a.cfg.Forecast.MaxHorizon {
		return fmt.Errorf("%w: horizon must be between 1 and %d", ErrInvalidInput, a.cfg.Forecast.MaxHorizon)
	}
	return nil
}

// Analyze runs the full pipeline for ticker
func (a *App) Analyze(ctx context.Context, ticker string, horizon int) (*Result, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()

	ticker, err := NormalizeTicker(ticker)
	if err != nil {
		metrics.RecordAnalysisError("invalid_input")
		return nil, err
	}
	if err := a.checkHorizon(horizon); err != nil {
		metrics.RecordAnalysisError("invalid_input")
		return nil, err
	}

	select {
	case a.analysisSem <- struct{}{}:
		defer func() { <-a.analysisSem }()
	default:
		metrics.RecordAnalysisError("busy")
		return nil, ErrBusy
	}

	metrics.RecordAnalysisRequest(ticker)
	result, err := a.run(ctx, ticker, horizon)
	if err != nil {
		timer.ObserveAnalysis("error")
		metrics.RecordAnalysisError(errorType(err))
		return nil, err
	}
	timer.ObserveAnalysis("success")
	metrics.RecordRating(string(result.Analysis.Rating.Label))
	return result, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, models.ErrNoData):
		return "no_data"
	case errors.Is(err, models.ErrMissingField):
		return "missing_field"
	case errors.Is(err, models.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "internal"
	}
}

func (a *App) run(ctx context.Context, ticker string, horizon int) (*Result, error) {
	log := observability.WithSymbol(ticker)

	series, err := a.loader.Load(ctx, ticker, a.cfg.DefaultStart(), "1d")
	if err != nil {
		return nil, err
	}

	analysis, err := a.engine.Compute(series)
	if err != nil {
		return nil, fmt.Errorf("indicators for %s: %w", ticker, err)
	}

	fc, err := a.forecast(ctx, series, horizon)
	if err != nil {
		return nil, err
	}

	payload := report.Assemble(ticker, horizon, series, analysis, fc)
	log.Info().
		Str("source", series.Source).
		Str("rating", string(analysis.Rating.Label)).
		Str("backend", fc.Backend).
		Int("horizon", horizon).
		Msg("analysis complete")

	return &Result{Series: series, Analysis: analysis, Forecast: fc, Payload: payload}, nil
}

// forecast runs the configured backend, falling back to the statistical
// one when the learned backend fails
func (a *App) forecast(ctx context.Context, series *models.PriceSeries, horizon int) (*models.ForecastResult, error) {
	kind, err := forecast.ParseKind(a.cfg.Forecast.Backend)
	if err != nil {
		return nil, err
	}
	opts := forecast.Options{
		Lookback:   a.cfg.Forecast.Lookback,
		MaxHorizon: a.cfg.Forecast.MaxHorizon,
		Client:     a.modelService,
		Model:      a.cfg.Forecast.Model,
	}

	if kind == forecast.KindLearned {
		fc, err := fitPredict(ctx, kind, opts, series, horizon)
		if err == nil {
			return fc, nil
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		observability.WithSymbol(series.Ticker).Warn().Err(err).Msg("learned forecast failed, using statistical backend")
		observability.GetMetrics().RecordDegradation("forecast")
	}

	fc, err := fitPredict(ctx, forecast.KindStatistical, opts, series, horizon)
	if err != nil {
		return nil, fmt.Errorf("forecast for %s: %w", series.Ticker, err)
	}
	return fc, nil
}

func fitPredict(ctx context.Context, kind forecast.Kind, opts forecast.Options, series *models.PriceSeries, horizon int) (*models.ForecastResult, error) {
	f, err := forecast.New(kind, opts)
	if err != nil {
		return nil, err
	}
	if err := f.Fit(ctx, series); err != nil {
		return nil, err
	}
	return f.Predict(ctx, horizon)
}

// ExportPDF analyzes ticker and renders the PDF report, degrading to HTML
// when the renderer is unavailable
func (a *App) ExportPDF(ctx context.Context, ticker string, horizon int) (*report.Artifact, error) {
	result, err := a.Analyze(ctx, ticker, horizon)
	if err != nil {
		return nil, err
	}
	return a.reports.BuildPDF(ctx, result.Payload)
}

// ExportCSV analyzes ticker and renders the forecast as CSV
func (a *App) ExportCSV(ctx context.Context, ticker string, horizon int) (*report.Artifact, error) {
	result, err := a.Analyze(ctx, ticker, horizon)
	if err != nil {
		return nil, err
	}
	return report.BuildCSV(result.Payload.Ticker, result.Forecast)
}

// AnalysisSemCapacity returns the capacity of the analysis semaphore (for testing)
func (a *App) AnalysisSemCapacity() int {
	return cap(a.analysisSem)
}
