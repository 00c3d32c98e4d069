// Package main provides a standalone HTTP server for browser-driven E2E tests.
// It serves the same routes and handlers as `stock-forecast serve`, with every
// upstream answered by the in-process mock server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-forecast/config"
	"stock-forecast/e2e/mocks"
	"stock-forecast/internal/api"
	"stock-forecast/internal/app"
	"stock-forecast/loader"
	"stock-forecast/observability"
	"stock-forecast/services"
)

// fixtureTickers are served by the mock Yahoo endpoint; anything else falls
// through to the synthetic generator
var fixtureTickers = map[string]float64{
	"AAPL": 185,
	"MSFT": 410,
	"NVDA": 880,
}

func main() {
	if err := observability.InitLogger("debug", "console"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	observability.InitMetrics()

	port := os.Getenv("E2E_SERVER_PORT")
	if port == "" {
		port = "9090"
	}

	mock := mocks.NewMockServer()
	defer mock.Close()
	for ticker, base := range fixtureTickers {
		mock.SetYahooBars(ticker, mocks.GenerateBars(250, time.Now(), base))
	}

	cacheDir, err := os.MkdirTemp("", "stock-forecast-e2e-*")
	if err != nil {
		observability.Fatal("failed to create cache dir", "error", err.Error())
	}
	defer os.RemoveAll(cacheDir)

	cfg := config.NewTestConfig()
	cfg.Yahoo.BaseURL = mock.URL()
	cfg.Forecast.ServiceURL = mock.URL()
	cfg.Loader.CacheDir = cacheDir
	if backend := os.Getenv("E2E_FORECAST_BACKEND"); backend != "" {
		cfg.Forecast.Backend = backend
	}

	l := loader.New(
		loader.NewLayeredCache(loader.NewMemoryCache()),
		loader.NewSyntheticStore(cacheDir, cfg.Loader.SyntheticDays),
		services.NewYahooService(cfg.Yahoo.BaseURL),
	)
	application := app.New(cfg, l, services.NewModelService(mock.URL(), 10*time.Second), nil)

	handler := api.NewHandler(application, cfg)
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      api.NewRouter(handler, cfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		observability.Info("starting E2E test server", "url", fmt.Sprintf("http://localhost:%s", port), "mock_upstream", mock.URL())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down E2E test server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err.Error())
	}
	application.Shutdown(shutdownCtx)
	observability.Info("E2E test server stopped")
}
