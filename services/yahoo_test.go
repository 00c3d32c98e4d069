package services

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"stock-forecast/models"
)

const yahooChartFixture = `{
	"chart": {
		"result": [{
			"meta": {"symbol": "AAPL", "currency": "USD", "exchangeTimezoneName": "America/New_York"},
			"timestamp": [1704205800, 1704292200, 1704378600],
			"indicators": {
				"quote": [{
					"open":   [187.15, 184.22, 182.15],
					"high":   [188.44, 185.88, 183.09],
					"low":    [183.89, 183.43, 180.88],
					"close":  [185.64, null, 181.91],
					"volume": [82488700, 58414500, 71983600]
				}],
				"adjclose": [{"adjclose": [184.94, null, 181.22]}]
			}
		}],
		"error": null
	}
}`

func newTestYahoo(url string) *YahooService {
	service := NewYahooService(url)
	service.SetRetryConfig(testRetryConfig(2))
	return service
}

func TestNewYahooService(t *testing.T) {
	service := NewYahooService("")
	if service.baseURL != "https://query1.finance.yahoo.com" {
		t.Errorf("baseURL = %v, want default", service.baseURL)
	}
	if service.Name() != models.SourceYahoo {
		t.Errorf("Name() = %v, want %v", service.Name(), models.SourceYahoo)
	}

	service = NewYahooService("http://localhost:9999/")
	if service.baseURL != "http://localhost:9999" {
		t.Errorf("baseURL = %v, trailing slash should be trimmed", service.baseURL)
	}
}

func TestYahooFetchHistory_WithMockServer(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/AAPL" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("interval") != "1d" {
			t.Errorf("interval = %s, want 1d", query.Get("interval"))
		}
		if query.Get("period1") != "1704067200" {
			t.Errorf("period1 = %s, want 1704067200", query.Get("period1"))
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(yahooChartFixture))
	}))
	defer server.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	frame, err := newTestYahoo(server.URL).FetchHistory(context.Background(), "AAPL", start, "1d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if frame.Source != models.SourceYahoo {
		t.Errorf("Source = %v, want %v", frame.Source, models.SourceYahoo)
	}
	if frame.Rows() != 3 {
		t.Fatalf("expected 3 rows, got %d", frame.Rows())
	}
	if want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC); !frame.Dates[0].Equal(want) {
		t.Errorf("first date = %v, want %v", frame.Dates[0], want)
	}
	if len(frame.Columns) != 6 {
		t.Fatalf("expected 6 columns, got %d", len(frame.Columns))
	}

	closeCol := frame.Columns[3]
	if strings.Join(closeCol.Name, "/") != "Close/AAPL" {
		t.Errorf("close column name = %v, want [Close AAPL]", closeCol.Name)
	}
	if closeCol.Values[0] != 185.64 {
		t.Errorf("close[0] = %v, want 185.64", closeCol.Values[0])
	}
	if !math.IsNaN(closeCol.Values[1]) {
		t.Errorf("null close should decode as NaN, got %v", closeCol.Values[1])
	}
}

func TestYahooFetchHistory_UnknownTickerIsNotRetried(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer server.Close()

	_, err := newTestYahoo(server.URL).FetchHistory(context.Background(), "ZZZZ", time.Now().AddDate(-1, 0, 0), "1d")
	if err == nil {
		t.Fatal("expected error for unknown ticker")
	}
	if IsTransient(err) {
		t.Errorf("404 should be permanent, got %v", err)
	}
	if !strings.Contains(err.Error(), "delisted") {
		t.Errorf("error should carry the upstream description, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestYahooFetchHistory_ServerErrorIsRetried(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(yahooChartFixture))
	}))
	defer server.Close()

	frame, err := newTestYahoo(server.URL).FetchHistory(context.Background(), "AAPL", time.Now().AddDate(-1, 0, 0), "1d")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if frame.Rows() != 3 {
		t.Errorf("expected 3 rows, got %d", frame.Rows())
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
}

func TestYahooFetchHistory_EmptyResult(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"meta":{},"timestamp":[],"indicators":{"quote":[{}]}}],"error":null}}`))
	}))
	defer server.Close()

	_, err := newTestYahoo(server.URL).FetchHistory(context.Background(), "AAPL", time.Now(), "1d")
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("expected ErrNoResults, got %v", err)
	}
}

func TestYahooFetchHistory_ZeroStartUsesEpoch(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("period1"); got != "0" {
			t.Errorf("period1 = %s, want 0", got)
		}
		w.Write([]byte(yahooChartFixture))
	}))
	defer server.Close()

	if _, err := newTestYahoo(server.URL).FetchHistory(context.Background(), "AAPL", time.Time{}, "1d"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestYahooFetchHistory_AttemptTimeout(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	service := NewYahooService(server.URL)
	service.SetRetryConfig(testRetryConfig(0))
	service.SetTimeout(50 * time.Millisecond)

	started := time.Now()
	_, err := service.FetchHistory(context.Background(), "AAPL", time.Now().AddDate(-1, 0, 0), "1d")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !IsTransient(err) {
		t.Errorf("timeouts should be transient, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Errorf("request took %v, the attempt timeout was ignored", elapsed)
	}
}

func TestYahooFetchHistory_UnsupportedInterval(t *testing.T) {
	_, err := NewYahooService("").FetchHistory(context.Background(), "AAPL", time.Now(), "5m")
	if err == nil {
		t.Error("expected error for unsupported interval")
	}
}

func TestNullableColumn(t *testing.T) {
	v := 1.5
	out := nullableColumn([]*float64{&v, nil}, 3)
	if out[0] != 1.5 {
		t.Errorf("out[0] = %v, want 1.5", out[0])
	}
	if !math.IsNaN(out[1]) || !math.IsNaN(out[2]) {
		t.Errorf("nil and missing cells should be NaN, got %v", out)
	}
}
