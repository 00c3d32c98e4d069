package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if m.AnalysisRequestsTotal == nil {
		t.Error("AnalysisRequestsTotal is nil")
	}
	if m.RatingsTotal == nil {
		t.Error("RatingsTotal is nil")
	}
	if m.LoaderCacheHits == nil {
		t.Error("LoaderCacheHits is nil")
	}
	if m.LoaderSourceTotal == nil {
		t.Error("LoaderSourceTotal is nil")
	}
	if m.ReportDegradationsTotal == nil {
		t.Error("ReportDegradationsTotal is nil")
	}
	if m.ExternalAPIDuration == nil {
		t.Error("ExternalAPIDuration is nil")
	}
	if m.DBQueryTotal == nil {
		t.Error("DBQueryTotal is nil")
	}
	if m.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal is nil")
	}
	if m.CircuitBreakerState == nil {
		t.Error("CircuitBreakerState is nil")
	}
}

func TestRecordAnalysisRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAnalysisRequest("AAPL")
	m.RecordAnalysisRequest("AAPL")
	m.RecordAnalysisRequest("MSFT")

	if got := testutil.ToFloat64(m.AnalysisRequestsTotal.WithLabelValues("AAPL")); got != 2 {
		t.Errorf("Expected AAPL count to be 2, got %f", got)
	}
	if got := testutil.ToFloat64(m.AnalysisRequestsTotal.WithLabelValues("MSFT")); got != 1 {
		t.Errorf("Expected MSFT count to be 1, got %f", got)
	}
}

func TestRecordAnalysisError(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAnalysisError("no_data")
	m.RecordAnalysisError("no_data")
	m.RecordAnalysisError("busy")

	if got := testutil.ToFloat64(m.AnalysisErrorsTotal.WithLabelValues("no_data")); got != 2 {
		t.Errorf("Expected no_data count to be 2, got %f", got)
	}
}

func TestRecordRating(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRating("Strong Buy")
	m.RecordRating("Neutral")
	m.RecordRating("Neutral")

	if got := testutil.ToFloat64(m.RatingsTotal.WithLabelValues("Neutral")); got != 2 {
		t.Errorf("Expected Neutral count to be 2, got %f", got)
	}
}

func TestLoaderMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordCacheHit("memory")
	m.RecordCacheHit("redis")
	m.RecordCacheHit("memory")
	m.RecordCacheMiss()
	m.RecordSource("synthetic")
	m.RecordRetry("yahoo")
	m.RecordRetry("yahoo")

	if got := testutil.ToFloat64(m.LoaderCacheHits.WithLabelValues("memory")); got != 2 {
		t.Errorf("Expected memory hits to be 2, got %f", got)
	}
	if got := testutil.ToFloat64(m.LoaderCacheMisses); got != 1 {
		t.Errorf("Expected misses to be 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.LoaderSourceTotal.WithLabelValues("synthetic")); got != 1 {
		t.Errorf("Expected synthetic source count to be 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.LoaderRetriesTotal.WithLabelValues("yahoo")); got != 2 {
		t.Errorf("Expected yahoo retries to be 2, got %f", got)
	}
}

func TestReportMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordExport("pdf")
	m.RecordExport("csv")
	m.RecordDegradation("pdf")

	if got := testutil.ToFloat64(m.ReportExportsTotal.WithLabelValues("csv")); got != 1 {
		t.Errorf("Expected csv exports to be 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.ReportDegradationsTotal.WithLabelValues("pdf")); got != 1 {
		t.Errorf("Expected pdf degradations to be 1, got %f", got)
	}
}

func TestRecordExternalAPI(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordExternalAPIRequest("yahoo", "chart")
	m.RecordExternalAPIRequest("yahoo", "chart")
	m.RecordExternalAPIError("alphavantage", "daily", "rate_limit")
	m.RecordExternalAPIDuration("yahoo", "chart", 200*time.Millisecond)

	if got := testutil.ToFloat64(m.ExternalAPIRequestsTotal.WithLabelValues("yahoo", "chart")); got != 2 {
		t.Errorf("Expected yahoo chart count to be 2, got %f", got)
	}
	if got := testutil.ToFloat64(m.ExternalAPIErrorsTotal.WithLabelValues("alphavantage", "daily", "rate_limit")); got != 1 {
		t.Errorf("Expected alphavantage rate_limit count to be 1, got %f", got)
	}
}

func TestRecordDBQuery(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDBQuery("select", "market_data_cache", 10*time.Millisecond)
	m.RecordDBQuery("upsert", "market_data_cache", 5*time.Millisecond)
	m.RecordDBError("select", "market_data_cache")

	if got := testutil.ToFloat64(m.DBQueryTotal.WithLabelValues("select", "market_data_cache")); got != 1 {
		t.Errorf("Expected select count to be 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.DBErrorsTotal.WithLabelValues("select", "market_data_cache")); got != 1 {
		t.Errorf("Expected select error count to be 1, got %f", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordHTTPRequest("GET", "/ping", "200", 10*time.Millisecond, 4)
	m.RecordHTTPRequest("POST", "/", "303", 2*time.Second, 0)

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/", "303")); got != 1 {
		t.Errorf("Expected POST / 303 count to be 1, got %f", got)
	}
}

func TestCircuitBreakerMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetCircuitBreakerState("yahoo", 0)
	m.SetCircuitBreakerState("alpaca", 2)
	m.RecordCircuitBreakerTrip("alpaca")
	m.RecordCircuitBreakerTrip("alpaca")

	if got := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("alpaca")); got != 2 {
		t.Errorf("Expected alpaca state to be 2 (open), got %f", got)
	}
	if got := testutil.ToFloat64(m.CircuitBreakerTrips.WithLabelValues("alpaca")); got != 2 {
		t.Errorf("Expected alpaca trips to be 2, got %f", got)
	}
}

func TestTimer(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	timer := m.NewTimer()
	if timer == nil {
		t.Fatal("NewTimer returned nil")
	}

	time.Sleep(10 * time.Millisecond)
	if d := timer.Duration(); d < 10*time.Millisecond {
		t.Errorf("Expected duration to be at least 10ms, got %v", d)
	}

	timer.ObserveAnalysis("success")
	m.NewTimer().ObserveForecast("statistical")
	m.NewTimer().ObserveExternalAPI("yahoo", "chart")
	m.NewTimer().ObserveDB("select", "market_data_cache")

	if got := testutil.ToFloat64(m.DBQueryTotal.WithLabelValues("select", "market_data_cache")); got != 1 {
		t.Errorf("ObserveDB should count the query, got %f", got)
	}
}

func TestGetMetrics_Singleton(t *testing.T) {
	original := globalMetrics
	defer func() { globalMetrics = original }()

	globalMetrics = NewMetrics(prometheus.NewRegistry())

	m1 := GetMetrics()
	if m1 == nil {
		t.Fatal("GetMetrics returned nil")
	}
	if m2 := GetMetrics(); m1 != m2 {
		t.Error("GetMetrics should return the same instance")
	}
	if InitMetrics() != m1 {
		t.Error("InitMetrics should keep an existing instance")
	}
}
