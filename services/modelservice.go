package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stock-forecast/observability"
)

// ModelService calls the learned-model forecasting sidecar over JSON HTTP
type ModelService struct {
	baseURL    string
	httpClient *http.Client
}

// NewModelService creates a client for the model service at baseURL
func NewModelService(baseURL string, timeout time.Duration) *ModelService {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ModelService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ModelObservation is one training point
type ModelObservation struct {
	Date  string  `json:"ds"`
	Value float64 `json:"y"`
}

// ModelForecastRequest asks the service to fit history and predict horizon
// future dates
type ModelForecastRequest struct {
	Ticker  string             `json:"ticker"`
	Model   string             `json:"model"`
	History []ModelObservation `json:"history"`
	Dates   []string           `json:"dates"`
}

// ModelForecastPoint is one predicted row. Bounds are absent for models
// without an uncertainty estimate.
type ModelForecastPoint struct {
	Date  string   `json:"ds"`
	Value float64  `json:"yhat"`
	Lower *float64 `json:"yhat_lower,omitempty"`
	Upper *float64 `json:"yhat_upper,omitempty"`
}

// ModelForecastResponse is the service reply
type ModelForecastResponse struct {
	Model    string               `json:"model"`
	Forecast []ModelForecastPoint `json:"forecast"`
}

// Forecast posts history to /forecast
func (s *ModelService) Forecast(ctx context.Context, req ModelForecastRequest) (*ModelForecastResponse, error) {
	return WithCircuitBreaker(ctx, BreakerModelService, func() (*ModelForecastResponse, error) {
		metrics := observability.GetMetrics()
		metrics.RecordExternalAPIRequest(BreakerModelService, "forecast")
		timer := metrics.NewTimer()
		defer timer.ObserveExternalAPI(BreakerModelService, "forecast")

		var resp ModelForecastResponse
		if err := s.postJSON(ctx, "/forecast", req, &resp); err != nil {
			metrics.RecordExternalAPIError(BreakerModelService, "forecast", "request")
			return nil, err
		}
		if len(resp.Forecast) != len(req.Dates) {
			return nil, fmt.Errorf("model service returned %d points, want %d", len(resp.Forecast), len(req.Dates))
		}
		return &resp, nil
	})
}

// Health checks the service is reachable
func (s *ModelService) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Transient(fmt.Errorf("model service health: %w", err))
	}
	defer resp.Body.Close()
	return classifyStatus(BreakerModelService, resp.StatusCode)
}

// postJSON posts payload to path under baseURL and decodes JSON into dest
func (s *ModelService) postJSON(ctx context.Context, path string, payload, dest interface{}) error {
	if s.baseURL == "" {
		return fmt.Errorf("model service url not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Transient(fmt.Errorf("post %s: %w", path, err))
	}
	defer resp.Body.Close()

	if err := classifyStatus(BreakerModelService, resp.StatusCode); err != nil {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post %s: %w: %s", path, err, strings.TrimSpace(string(detail)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
