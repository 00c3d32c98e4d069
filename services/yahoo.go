package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stock-forecast/models"
	"stock-forecast/observability"
)

const yahooUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// YahooService reads daily history from the Yahoo Finance chart API
type YahooService struct {
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
}

// NewYahooService creates a new YahooService instance
func NewYahooService(baseURL string) *YahooService {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &YahooService{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		retry:      DefaultRetryConfig,
	}
}

// SetRetryConfig overrides the retry policy
func (s *YahooService) SetRetryConfig(cfg RetryConfig) {
	s.retry = cfg
}

// SetTimeout bounds each chart request
func (s *YahooService) SetTimeout(d time.Duration) {
	if d > 0 {
		s.httpClient.Timeout = d
	}
}

// Name identifies the source
func (s *YahooService) Name() string {
	return models.SourceYahoo
}

// chartResponse is the v8 chart payload
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string `json:"symbol"`
				Currency             string `json:"currency"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// yahooInterval maps the loader's interval names to chart API values
func yahooInterval(interval string) (string, error) {
	switch interval {
	case "", "1d":
		return "1d", nil
	case "1wk", "1mo":
		return interval, nil
	default:
		return "", fmt.Errorf("unsupported interval %q", interval)
	}
}

// FetchHistory returns a frame with composite (field, ticker) columns
func (s *YahooService) FetchHistory(ctx context.Context, ticker string, start time.Time, interval string) (*models.RawFrame, error) {
	iv, err := yahooInterval(interval)
	if err != nil {
		return nil, err
	}

	return WithCircuitBreaker(ctx, BreakerYahoo, func() (*models.RawFrame, error) {
		var frame *models.RawFrame

		err := WithRetry(ctx, s.retry, func() error {
			var err error
			frame, err = s.fetchChart(ctx, ticker, start, iv)
			return err
		})
		if err != nil {
			return nil, err
		}
		return frame, nil
	})
}

func (s *YahooService) fetchChart(ctx context.Context, ticker string, start time.Time, interval string) (*models.RawFrame, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerYahoo, "chart")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerYahoo, "chart")

	period1 := start.Unix()
	if start.IsZero() || period1 < 0 {
		period1 = 0
	}

	params := url.Values{}
	params.Set("period1", strconv.FormatInt(period1, 10))
	params.Set("period2", strconv.FormatInt(time.Now().Unix(), 10))
	params.Set("interval", interval)
	params.Set("events", "history")
	params.Set("includeAdjustedClose", "true")

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.baseURL, url.PathEscape(ticker), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build chart request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.RecordExternalAPIError(BreakerYahoo, "chart", "network")
		return nil, Transient(fmt.Errorf("failed to fetch chart: %w", err))
	}
	defer resp.Body.Close()

	var chart chartResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&chart)

	if err := classifyStatus(BreakerYahoo, resp.StatusCode); err != nil {
		metrics.RecordExternalAPIError(BreakerYahoo, "chart", strconv.Itoa(resp.StatusCode))
		if decodeErr == nil && chart.Chart.Error != nil {
			return nil, fmt.Errorf("%w: %s", err, chart.Chart.Error.Description)
		}
		return nil, err
	}
	if decodeErr != nil {
		metrics.RecordExternalAPIError(BreakerYahoo, "chart", "decode")
		return nil, fmt.Errorf("failed to decode chart: %w", decodeErr)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoResults, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("%w: chart for %s is empty", ErrNoResults, ticker)
	}

	result := chart.Chart.Result[0]
	loc := time.UTC
	if tz := result.Meta.ExchangeTimezoneName; tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	n := len(result.Timestamp)
	frame := &models.RawFrame{Source: models.SourceYahoo, Dates: make([]time.Time, n)}
	for i, ts := range result.Timestamp {
		local := time.Unix(ts, 0).In(loc)
		frame.Dates[i] = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	}

	if len(result.Indicators.Quote) > 0 {
		q := result.Indicators.Quote[0]
		frame.AddColumn(nullableColumn(q.Open, n), "Open", ticker)
		frame.AddColumn(nullableColumn(q.High, n), "High", ticker)
		frame.AddColumn(nullableColumn(q.Low, n), "Low", ticker)
		frame.AddColumn(nullableColumn(q.Close, n), "Close", ticker)
		frame.AddColumn(nullableColumn(q.Volume, n), "Volume", ticker)
	}
	if len(result.Indicators.AdjClose) > 0 {
		frame.AddColumn(nullableColumn(result.Indicators.AdjClose[0].AdjClose, n), "Adj Close", ticker)
	}

	return frame, nil
}

// nullableColumn maps JSON nulls (and short arrays) to NaN
func nullableColumn(values []*float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i < len(values) && values[i] != nil {
			out[i] = *values[i]
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}
