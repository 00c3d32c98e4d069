package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"stock-forecast/config"
	"stock-forecast/internal/app"
	"stock-forecast/loader"
	"stock-forecast/observability"
	"stock-forecast/repository"
	"stock-forecast/services"
)

// buildApp wires upstream sources, cache tiers and renderers from cfg.
// Optional tiers that fail to connect are logged and skipped.
func buildApp(ctx context.Context, cfg *config.Config) (*app.App, error) {
	var closers []func()
	checks := map[string]app.HealthChecker{}

	retry := services.RetryConfig{
		MaxRetries:     cfg.Loader.MaxRetries,
		InitialBackoff: cfg.Loader.RetryBackoff,
		MaxBackoff:     cfg.RetryMaxBackoff(),
	}

	yahoo := services.NewYahooService(cfg.Yahoo.BaseURL)
	yahoo.SetTimeout(cfg.Loader.FetchTimeout)
	sources := []services.PriceSource{yahoo}
	if cfg.HasAlphaVantage() {
		alpha := services.NewAlphaVantageService(cfg.AlphaVantage.APIKey, cfg.AlphaVantage.RequestsPerMinute)
		alpha.SetTimeout(cfg.Loader.FetchTimeout)
		sources = append(sources, alpha)
	} else {
		observability.Warn("ALPHA_VANTAGE_API_KEY not set, Alpha Vantage fallback disabled")
	}
	if cfg.HasAlpaca() {
		sources = append(sources, services.NewAlpacaService(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Loader.FetchTimeout, retry))
	} else {
		observability.Warn("Alpaca credentials not set, Alpaca fallback disabled")
	}

	tiers := []loader.Cache{loader.NewMemoryCache()}
	if cfg.HasRedis() {
		redisCache, err := loader.NewRedisCache(ctx, cfg.Redis.URL, cfg.Redis.CacheTTL)
		if err != nil {
			observability.Warn("redis cache unavailable", "error", err.Error())
		} else {
			tiers = append(tiers, redisCache)
			checks["redis"] = redisCache
			closers = append(closers, func() { _ = redisCache.Close() })
		}
	}
	if cfg.HasDatabase() {
		repo, err := repository.NewRepository(ctx, cfg.Database.URL)
		if err == nil {
			err = repo.EnsureSchema(ctx)
			if err != nil {
				repo.Close()
			}
		}
		if err != nil {
			observability.Warn("database cache unavailable", "error", err.Error())
		} else {
			tiers = append(tiers, loader.NewStoreCache(repo, cfg.Redis.CacheTTL))
			checks["database"] = repo
			closers = append(closers, repo.Close)
		}
	}
	cache := loader.NewLayeredCache(tiers...)

	var synthetic *loader.SyntheticStore
	if cfg.Loader.SyntheticFallback {
		if err := os.MkdirAll(cfg.Loader.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		synthetic = loader.NewSyntheticStore(cfg.Loader.CacheDir, cfg.Loader.SyntheticDays)
	}

	l := loader.New(cache, synthetic, sources...)
	l.ConfigureRetries(retry)

	var modelService services.ModelServiceInterface
	if cfg.HasForecastService() {
		modelService = services.NewModelService(cfg.Forecast.ServiceURL, cfg.HTTP.RequestTimeout)
	}
	renderer := services.NewWkhtmltopdfRenderer(cfg.Report.WkhtmltopdfPath)

	application := app.New(cfg, l, modelService, renderer)
	for name, c := range checks {
		application.AddHealthCheck(name, c)
	}
	for _, fn := range closers {
		application.OnClose(fn)
	}

	observability.Info("application configured",
		"sources", strings.Join(l.Sources(), ","),
		"cache_tiers", strings.Join(cache.Tiers(), ","),
		"synthetic_fallback", synthetic != nil,
		"forecast_backend", cfg.Forecast.Backend,
	)
	return application, nil
}

// analyze runs one analysis and prints a plain-text summary to out
func analyze(ctx context.Context, cfg *config.Config, out io.Writer, ticker string, horizon int, csvPath, pdfPath string) error {
	application, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Shutdown(ctx)

	result, err := application.Analyze(ctx, ticker, horizon)
	if err != nil {
		return err
	}
	writeSummary(out, result)

	if csvPath != "" {
		artifact, err := application.ExportCSV(ctx, ticker, horizon)
		if err != nil {
			return err
		}
		if err := os.WriteFile(csvPath, artifact.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", csvPath, err)
		}
		fmt.Fprintf(out, "forecast written to %s\n", csvPath)
	}
	if pdfPath != "" {
		artifact, err := application.ExportPDF(ctx, ticker, horizon)
		if err != nil {
			return err
		}
		if artifact.Degraded {
			pdfPath = strings.TrimSuffix(pdfPath, ".pdf") + ".html"
		}
		if err := os.WriteFile(pdfPath, artifact.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", pdfPath, err)
		}
		fmt.Fprintf(out, "report written to %s\n", pdfPath)
	}
	return nil
}

func writeSummary(out io.Writer, result *app.Result) {
	p := result.Payload
	fmt.Fprintf(out, "%s (%s data, %s)\n", p.Ticker, p.Source, p.CurrentDate)
	if p.Synthetic {
		fmt.Fprintln(out, "warning: live data was unavailable, prices are synthetic")
	}
	fmt.Fprintf(out, "latest close:  %s (%s)\n", p.LatestClose, p.PriceChange1D)
	fmt.Fprintf(out, "rating:        %s (%d buy / %d sell / %d neutral)\n", p.Rating, p.BuySignals, p.SellSignals, p.NeutralSignals)
	for _, s := range p.Signals {
		fmt.Fprintf(out, "  %-18s %-10s %s\n", s.Label, s.Value, s.Verdict)
	}
	fmt.Fprintf(out, "forecast:      %s on %s (%s, %d days)\n", p.ForecastClose, p.ForecastEndDate, result.Forecast.Backend, p.Horizon)
}
