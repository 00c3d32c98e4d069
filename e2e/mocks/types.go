package mocks

import (
	"math"
	"time"
)

// PriceBar is one daily bar served by the mock upstreams
type PriceBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// RequestLog records incoming requests for test assertions.
type RequestLog struct {
	Method string
	Path   string
	Query  string
}

// Upstream names used in the request log and for error injection
const (
	UpstreamYahoo        = "yahoo"
	UpstreamAlphaVantage = "alphavantage"
	UpstreamModel        = "model"
)

// GenerateBars builds n business-day bars ending on end, oscillating
// around base with a gentle upward drift
func GenerateBars(n int, end time.Time, base float64) []PriceBar {
	dates := make([]time.Time, 0, n)
	day := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	for len(dates) < n {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, day)
		}
		day = day.AddDate(0, 0, -1)
	}

	bars := make([]PriceBar, n)
	for i := range bars {
		d := dates[n-1-i]
		c := base + float64(i)*0.15 + 3*math.Sin(float64(i)/5)
		c = math.Round(c*100) / 100
		bars[i] = PriceBar{
			Date:   d,
			Open:   c - 0.4,
			High:   c + 1.2,
			Low:    c - 1.1,
			Close:  c,
			Volume: float64(1_000_000 + 5_000*(i%20)),
		}
	}
	return bars
}
