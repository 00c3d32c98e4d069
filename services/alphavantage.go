package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"stock-forecast/models"
	"stock-forecast/observability"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when Alpha Vantage answers with a quota notice
var ErrRateLimited = errors.New("alpha vantage rate limit reached")

// AlphaVantageService handles communication with Alpha Vantage API
type AlphaVantageService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retry      RetryConfig
}

// NewAlphaVantageService creates a new AlphaVantageService instance limited
// to requestsPerMinute calls
func NewAlphaVantageService(apiKey string, requestsPerMinute int) *AlphaVantageService {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 5
	}
	return &AlphaVantageService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://www.alphavantage.co/query",
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		retry:      DefaultRetryConfig,
	}
}

// SetRetryConfig overrides the retry policy
func (s *AlphaVantageService) SetRetryConfig(cfg RetryConfig) {
	s.retry = cfg
}

// SetTimeout bounds each query request
func (s *AlphaVantageService) SetTimeout(d time.Duration) {
	if d > 0 {
		s.httpClient.Timeout = d
	}
}

// SetBaseURL points the client at another query endpoint
func (s *AlphaVantageService) SetBaseURL(u string) {
	s.baseURL = u
}

// Name identifies the source
func (s *AlphaVantageService) Name() string {
	return models.SourceAlphaVantage
}

// alphaVantageFunction maps an interval to the API function and the key of
// its time series object
func alphaVantageFunction(interval string) (function, seriesKey string, err error) {
	switch interval {
	case "", "1d":
		return "TIME_SERIES_DAILY", "Time Series (Daily)", nil
	case "1wk":
		return "TIME_SERIES_WEEKLY", "Weekly Time Series", nil
	case "1mo":
		return "TIME_SERIES_MONTHLY", "Monthly Time Series", nil
	default:
		return "", "", fmt.Errorf("unsupported interval %q", interval)
	}
}

// FetchHistory returns a frame with numbered columns ("1. open", ...)
func (s *AlphaVantageService) FetchHistory(ctx context.Context, ticker string, start time.Time, interval string) (*models.RawFrame, error) {
	function, seriesKey, err := alphaVantageFunction(interval)
	if err != nil {
		return nil, err
	}

	return WithCircuitBreaker(ctx, BreakerAlphaVantage, func() (*models.RawFrame, error) {
		var frame *models.RawFrame

		err := WithRetry(ctx, s.retry, func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
			var err error
			frame, err = s.fetchSeries(ctx, ticker, start, function, seriesKey)
			return err
		})
		if err != nil {
			return nil, err
		}
		return frame, nil
	})
}

func (s *AlphaVantageService) fetchSeries(ctx context.Context, ticker string, start time.Time, function, seriesKey string) (*models.RawFrame, error) {
	metrics := observability.GetMetrics()
	operation := strings.ToLower(function)
	metrics.RecordExternalAPIRequest(BreakerAlphaVantage, operation)
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerAlphaVantage, operation)

	params := url.Values{}
	params.Set("function", function)
	params.Set("symbol", ticker)
	params.Set("outputsize", "full")
	params.Set("apikey", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, operation, "network")
		return nil, Transient(fmt.Errorf("failed to fetch %s: %w", function, err))
	}
	defer resp.Body.Close()

	if err := classifyStatus(BreakerAlphaVantage, resp.StatusCode); err != nil {
		return nil, err
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", function, err)
	}

	if msg, ok := payloadMessage(payload, "Error Message"); ok {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, operation, "invalid_request")
		return nil, fmt.Errorf("%w: %s", ErrNoResults, msg)
	}
	if msg, ok := payloadMessage(payload, "Note"); ok {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, operation, "rate_limit")
		return nil, Transient(fmt.Errorf("%w: %s", ErrRateLimited, msg))
	}
	if msg, ok := payloadMessage(payload, "Information"); ok {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, operation, "information")
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}

	raw, ok := payload[seriesKey]
	if !ok {
		return nil, fmt.Errorf("%w: response has no %q", ErrNoResults, seriesKey)
	}
	var series map[string]map[string]string
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", seriesKey, err)
	}

	return buildAlphaVantageFrame(series, start), nil
}

func payloadMessage(payload map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := payload[key]
	if !ok {
		return "", false
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return string(raw), true
	}
	return msg, true
}

// buildAlphaVantageFrame turns the date-keyed series into columns, keeping
// rows on or after start. Unparseable cells become NaN.
func buildAlphaVantageFrame(series map[string]map[string]string, start time.Time) *models.RawFrame {
	type row struct {
		date   time.Time
		fields map[string]string
	}

	rows := make([]row, 0, len(series))
	columnSet := make(map[string]struct{})
	for day, fields := range series {
		date, err := time.Parse(time.DateOnly, day)
		if err != nil {
			continue
		}
		if !start.IsZero() && date.Before(start) {
			continue
		}
		rows = append(rows, row{date: date, fields: fields})
		for name := range fields {
			columnSet[name] = struct{}{}
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })

	names := make([]string, 0, len(columnSet))
	for name := range columnSet {
		names = append(names, name)
	}
	sort.Strings(names)

	frame := &models.RawFrame{Source: models.SourceAlphaVantage, Dates: make([]time.Time, len(rows))}
	for i, r := range rows {
		frame.Dates[i] = r.date
	}
	for _, name := range names {
		values := make([]float64, len(rows))
		for i, r := range rows {
			values[i] = math.NaN()
			cell, ok := r.fields[name]
			if !ok {
				continue
			}
			d, err := decimal.NewFromString(cell)
			if err != nil {
				continue
			}
			values[i] = d.InexactFloat64()
		}
		frame.AddColumn(values, name)
	}
	return frame
}
