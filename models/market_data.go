package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// SeriesKind tags which price columns a series carries
type SeriesKind int

const (
	// SeriesFull carries open/high/low/close
	SeriesFull SeriesKind = iota
	// SeriesCloseOnly carries close prices only
	SeriesCloseOnly
)

func (k SeriesKind) String() string {
	switch k {
	case SeriesFull:
		return "full"
	case SeriesCloseOnly:
		return "close_only"
	default:
		return "unknown"
	}
}

// Data sources a PriceSeries may come from
const (
	SourceYahoo        = "yahoo"
	SourceAlphaVantage = "alphavantage"
	SourceAlpaca       = "alpaca"
	SourceSynthetic    = "synthetic"
)

// Bar represents one OHLCV record. Open/High/Low are only meaningful for
// SeriesFull, Volume only when the series HasVolume.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open,omitempty"`
	High   float64   `json:"high,omitempty"`
	Low    float64   `json:"low,omitempty"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume,omitempty"`
}

// PriceSeries is an ordered run of bars for one ticker
type PriceSeries struct {
	Ticker    string     `json:"ticker"`
	Interval  string     `json:"interval"`
	Source    string     `json:"source"`
	Kind      SeriesKind `json:"kind"`
	HasVolume bool       `json:"has_volume"`
	Bars      []Bar      `json:"bars"`
}

// NewPriceSeries sorts bars by date and validates the result
func NewPriceSeries(ticker, interval, source string, kind SeriesKind, hasVolume bool, bars []Bar) (*PriceSeries, error) {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	s := &PriceSeries{
		Ticker:    ticker,
		Interval:  interval,
		Source:    source,
		Kind:      kind,
		HasVolume: hasVolume,
		Bars:      sorted,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the series invariants: non-empty, strictly increasing
// dates, finite close on every bar.
func (s *PriceSeries) Validate() error {
	if s == nil || len(s.Bars) == 0 {
		return &NoDataError{Ticker: s.tickerOrEmpty(), Reason: "empty series"}
	}
	for i, b := range s.Bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			return &MissingFieldError{Field: "close", Detail: fmt.Sprintf("non-numeric close at %s", b.Date.Format(time.DateOnly))}
		}
		if s.Kind == SeriesFull && (math.IsNaN(b.High) || math.IsNaN(b.Low)) {
			return &MissingFieldError{Field: "high/low", Detail: fmt.Sprintf("missing range at %s", b.Date.Format(time.DateOnly))}
		}
		if i > 0 && !b.Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("dates not strictly increasing at %s", b.Date.Format(time.DateOnly))
		}
	}
	return nil
}

func (s *PriceSeries) tickerOrEmpty() string {
	if s == nil {
		return ""
	}
	return s.Ticker
}

// Len returns the number of bars
func (s *PriceSeries) Len() int {
	return len(s.Bars)
}

// Last returns the most recent bar
func (s *PriceSeries) Last() Bar {
	return s.Bars[len(s.Bars)-1]
}

// Closes returns the close column
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs returns the high column, nil for close-only series
func (s *PriceSeries) Highs() []float64 {
	if s.Kind != SeriesFull {
		return nil
	}
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Lows returns the low column, nil for close-only series
func (s *PriceSeries) Lows() []float64 {
	if s.Kind != SeriesFull {
		return nil
	}
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// Volumes returns the volume column, nil when the source had none
func (s *PriceSeries) Volumes() []float64 {
	if !s.HasVolume {
		return nil
	}
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// Dates returns the date column
func (s *PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Date
	}
	return out
}
