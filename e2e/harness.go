// Package e2e provides end-to-end testing infrastructure for stock-forecast.
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"stock-forecast/config"
	"stock-forecast/e2e/mocks"
	"stock-forecast/internal/api"
	"stock-forecast/internal/app"
	"stock-forecast/loader"
	"stock-forecast/repository"
	"stock-forecast/services"
)

// TestHarness runs the full HTTP stack against mock upstreams
type TestHarness struct {
	t          *testing.T
	ctx        context.Context
	cancel     context.CancelFunc
	mockServer *mocks.MockServer
	repo       *repository.Repository
	memory     *loader.MemoryCache
	app        *app.App
	router     http.Handler
	config     *config.Config
}

// Option adjusts the harness configuration before the app is built
type Option func(cfg *config.Config)

// WithLearnedBackend forecasts through the mock model service
func WithLearnedBackend() Option {
	return func(cfg *config.Config) {
		cfg.Forecast.Backend = "learned"
	}
}

// WithoutSyntheticFallback makes exhausted sources surface as no-data errors
func WithoutSyntheticFallback() Option {
	return func(cfg *config.Config) {
		cfg.Loader.SyntheticFallback = false
	}
}

// NewTestHarness creates a new test harness.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	return &TestHarness{t: t, ctx: ctx, cancel: cancel}
}

// Setup starts the mock upstreams and builds the app against them.
func (h *TestHarness) Setup(opts ...Option) error {
	// Breakers are process-wide; start every scenario closed
	services.SetGlobalRegistry(services.NewCircuitBreakerRegistry(services.DefaultCircuitBreakerConfig))

	h.mockServer = mocks.NewMockServer()
	h.config = h.createTestConfig()
	for _, opt := range opts {
		opt(h.config)
	}

	tiers := []loader.Cache{}
	h.memory = loader.NewMemoryCache()
	tiers = append(tiers, h.memory)

	if dbURL := os.Getenv("E2E_DATABASE_URL"); dbURL != "" {
		repo, err := repository.NewRepository(h.ctx, dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to test database: %w", err)
		}
		if err := repo.EnsureSchema(h.ctx); err != nil {
			repo.Close()
			return fmt.Errorf("failed to create schema: %w", err)
		}
		h.repo = repo
		tiers = append(tiers, loader.NewStoreCache(repo, time.Minute))
	}

	alpha := services.NewAlphaVantageService("e2e-key", h.config.AlphaVantage.RequestsPerMinute)
	alpha.SetBaseURL(h.mockServer.AlphaVantageURL())

	var synthetic *loader.SyntheticStore
	if h.config.Loader.SyntheticFallback {
		synthetic = loader.NewSyntheticStore(h.config.Loader.CacheDir, h.config.Loader.SyntheticDays)
	}

	l := loader.New(loader.NewLayeredCache(tiers...), synthetic,
		services.NewYahooService(h.config.Yahoo.BaseURL),
		alpha,
	)
	l.ConfigureRetries(services.RetryConfig{MaxRetries: 0})

	modelService := services.NewModelService(h.config.Forecast.ServiceURL, 10*time.Second)
	h.app = app.New(h.config, l, modelService, nil)

	handler := api.NewHandler(h.app, h.config)
	h.router = api.NewRouter(handler, h.config)
	return nil
}

// Teardown cleans up all test resources.
func (h *TestHarness) Teardown() {
	if h.cancel != nil {
		h.cancel()
	}
	if h.app != nil {
		h.app.Shutdown(context.Background())
	}
	if h.repo != nil {
		h.cleanupTestData()
		h.repo.Close()
	}
	if h.mockServer != nil {
		h.mockServer.Close()
	}
}

// Context returns the test context.
func (h *TestHarness) Context() context.Context {
	return h.ctx
}

// MockServer returns the mock server for configuring responses.
func (h *TestHarness) MockServer() *mocks.MockServer {
	return h.mockServer
}

// App returns the application instance.
func (h *TestHarness) App() *app.App {
	return h.app
}

// Router returns the HTTP router for making requests.
func (h *TestHarness) Router() http.Handler {
	return h.router
}

// Config returns the test configuration.
func (h *TestHarness) Config() *config.Config {
	return h.config
}

// MemoizedSeries returns how many series the in-process cache holds
func (h *TestHarness) MemoizedSeries() int {
	return h.memory.Len()
}

// DoRequest performs a JSON request and returns the response.
func (h *TestHarness) DoRequest(method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// PostForm submits a form the way the dashboard does.
func (h *TestHarness) PostForm(path string, values url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// FollowRedirect replays a redirect with its cookies and returns the page
func (h *TestHarness) FollowRedirect(resp *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, resp.Header().Get("Location"), nil)
	for _, c := range resp.Result().Cookies() {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *TestHarness) createTestConfig() *config.Config {
	mockURL := h.mockServer.URL()

	cfg := config.NewTestConfig()
	cfg.Yahoo.BaseURL = mockURL
	cfg.Forecast.ServiceURL = mockURL
	cfg.Forecast.Model = "mock-model"
	cfg.AlphaVantage.RequestsPerMinute = 6000
	cfg.Loader.CacheDir = h.t.TempDir()
	return cfg
}

func (h *TestHarness) cleanupTestData() {
	if _, err := h.repo.Pool().Exec(context.Background(), "DELETE FROM market_data_cache"); err != nil {
		h.t.Logf("cleanup failed: %v", err)
	}
}
