// Package mocks provides HTTP mock servers for the upstreams used in E2E tests.
package mocks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer serves the Yahoo chart API, Alpha Vantage and the model
// service from one httptest server
type MockServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	yahooBars map[string][]PriceBar
	alphaBars map[string][]PriceBar

	// Status codes to answer with instead of data, per upstream
	failures map[string]int

	modelName string

	requestLog []RequestLog
}

// NewMockServer creates a new mock server with no data configured.
func NewMockServer() *MockServer {
	m := &MockServer{
		yahooBars: make(map[string][]PriceBar),
		alphaBars: make(map[string][]PriceBar),
		failures:  make(map[string]int),
		modelName: "mock-model",
	}
	m.server = httptest.NewServer(m)
	return m
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// AlphaVantageURL is the query endpoint to configure the Alpha Vantage client with
func (m *MockServer) AlphaVantageURL() string {
	return m.server.URL + "/query"
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

// SetYahooBars configures the chart returned for ticker
func (m *MockServer) SetYahooBars(ticker string, bars []PriceBar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.yahooBars[strings.ToUpper(ticker)] = bars
}

// SetAlphaVantageBars configures the daily series returned for ticker
func (m *MockServer) SetAlphaVantageBars(ticker string, bars []PriceBar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alphaBars[strings.ToUpper(ticker)] = bars
}

// FailUpstream makes upstream answer every request with status. Zero clears it.
func (m *MockServer) FailUpstream(upstream string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == 0 {
		delete(m.failures, upstream)
		return
	}
	m.failures[upstream] = status
}

// ServeHTTP implements http.Handler to route requests to appropriate mock handlers.
func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
	})
	m.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/v8/finance/chart/"):
		m.handleYahoo(w, r, strings.TrimPrefix(path, "/v8/finance/chart/"))
	case path == "/query":
		m.handleAlphaVantage(w, r)
	case path == "/forecast" && r.Method == http.MethodPost:
		m.handleForecast(w, r)
	case path == "/health":
		m.handleModelHealth(w)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// GetRequestLog returns all logged requests for assertions.
func (m *MockServer) GetRequestLog() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestLog{}, m.requestLog...)
}

// CountRequests returns how many logged requests had a path starting with prefix
func (m *MockServer) CountRequests(prefix string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, req := range m.requestLog {
		if strings.HasPrefix(req.Path, prefix) {
			n++
		}
	}
	return n
}

// ClearRequestLog clears the request log.
func (m *MockServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = nil
}

func (m *MockServer) failure(upstream string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failures[upstream]
}

func (m *MockServer) handleYahoo(w http.ResponseWriter, r *http.Request, ticker string) {
	if status := m.failure(UpstreamYahoo); status != 0 {
		http.Error(w, "upstream failure", status)
		return
	}

	m.mu.RLock()
	bars, ok := m.yahooBars[strings.ToUpper(ticker)]
	m.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"chart": map[string]interface{}{
				"result": nil,
				"error":  map[string]string{"code": "Not Found", "description": "No data found, symbol may be delisted"},
			},
		})
		return
	}

	n := len(bars)
	timestamps := make([]int64, n)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	volume := make([]float64, n)
	for i, b := range bars {
		// Yahoo stamps daily bars at the exchange open
		timestamps[i] = b.Date.Add(14*time.Hour + 30*time.Minute).Unix()
		open[i], high[i], low[i], closes[i], volume[i] = b.Open, b.High, b.Low, b.Close, b.Volume
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chart": map[string]interface{}{
			"result": []interface{}{map[string]interface{}{
				"meta":      map[string]string{"symbol": strings.ToUpper(ticker), "currency": "USD", "exchangeTimezoneName": "America/New_York"},
				"timestamp": timestamps,
				"indicators": map[string]interface{}{
					"quote":    []interface{}{map[string]interface{}{"open": open, "high": high, "low": low, "close": closes, "volume": volume}},
					"adjclose": []interface{}{map[string]interface{}{"adjclose": closes}},
				},
			}},
			"error": nil,
		},
	})
}

func (m *MockServer) handleAlphaVantage(w http.ResponseWriter, r *http.Request) {
	if status := m.failure(UpstreamAlphaVantage); status != 0 {
		http.Error(w, "upstream failure", status)
		return
	}

	ticker := strings.ToUpper(r.URL.Query().Get("symbol"))
	m.mu.RLock()
	bars, ok := m.alphaBars[ticker]
	m.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{
			"Error Message": "Invalid API call. Please retry or visit the documentation for " + r.URL.Query().Get("function") + ".",
		})
		return
	}

	series := make(map[string]map[string]string, len(bars))
	for _, b := range bars {
		series[b.Date.Format(time.DateOnly)] = map[string]string{
			"1. open":   fmt.Sprintf("%.4f", b.Open),
			"2. high":   fmt.Sprintf("%.4f", b.High),
			"3. low":    fmt.Sprintf("%.4f", b.Low),
			"4. close":  fmt.Sprintf("%.4f", b.Close),
			"5. volume": fmt.Sprintf("%.0f", b.Volume),
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"Meta Data":           map[string]string{"2. Symbol": ticker},
		"Time Series (Daily)": series,
	})
}

type forecastRequest struct {
	Model   string `json:"model"`
	History []struct {
		Value float64 `json:"y"`
	} `json:"history"`
	Dates []string `json:"dates"`
}

// handleForecast answers with a flat forecast at the last observed value
func (m *MockServer) handleForecast(w http.ResponseWriter, r *http.Request) {
	if status := m.failure(UpstreamModel); status != 0 {
		http.Error(w, "model unavailable", status)
		return
	}

	var req forecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.History) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	last := req.History[len(req.History)-1].Value
	points := make([]map[string]interface{}, len(req.Dates))
	for i, d := range req.Dates {
		points[i] = map[string]interface{}{
			"ds":         d,
			"yhat":       last,
			"yhat_lower": last * 0.95,
			"yhat_upper": last * 1.05,
		}
	}

	m.mu.RLock()
	name := m.modelName
	m.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"model": name, "forecast": points})
}

func (m *MockServer) handleModelHealth(w http.ResponseWriter) {
	if status := m.failure(UpstreamModel); status != 0 {
		http.Error(w, "model unavailable", status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
