package loader

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"stock-forecast/models"
)

// numbered column prefixes such as "4. close"
var ordinalPrefix = regexp.MustCompile(`^\d+\.\s*`)

func canonicalPart(part string) string {
	return ordinalPrefix.ReplaceAllString(strings.ToLower(strings.TrimSpace(part)), "")
}

// findColumn returns the first column with a header level naming field
func findColumn(frame *models.RawFrame, field string) []float64 {
	for _, col := range frame.Columns {
		for _, part := range col.Name {
			if canonicalPart(part) == field {
				return col.Values
			}
		}
	}
	return nil
}

func cell(values []float64, i int) float64 {
	if values == nil || i >= len(values) {
		return math.NaN()
	}
	return values[i]
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Normalize projects a raw upstream frame onto the canonical schema. The
// series is Full when both high and low columns exist. Rows without a close
// (or without a range in Full mode) are dropped, duplicate dates keep the
// last row.
func Normalize(ticker, interval string, frame *models.RawFrame) (*models.PriceSeries, error) {
	if frame.Rows() == 0 {
		return nil, &models.NoDataError{Ticker: ticker, Reason: "empty frame"}
	}

	closes := findColumn(frame, "close")
	if closes == nil {
		return nil, &models.MissingFieldError{Field: "close", Detail: "no close-like column from " + frame.Source}
	}
	opens := findColumn(frame, "open")
	highs := findColumn(frame, "high")
	lows := findColumn(frame, "low")
	volumes := findColumn(frame, "volume")

	kind := models.SeriesCloseOnly
	if highs != nil && lows != nil {
		kind = models.SeriesFull
	}

	byDate := make(map[time.Time]models.Bar, frame.Rows())
	for i, date := range frame.Dates {
		bar := models.Bar{Date: date.UTC(), Close: cell(closes, i)}
		if !usable(bar.Close) {
			continue
		}
		if kind == models.SeriesFull {
			bar.High, bar.Low = cell(highs, i), cell(lows, i)
			if !usable(bar.High) || !usable(bar.Low) {
				continue
			}
			bar.Open = cell(opens, i)
			if !usable(bar.Open) {
				bar.Open = bar.Close
			}
		}
		if volumes != nil {
			if v := cell(volumes, i); usable(v) {
				bar.Volume = v
			}
		}
		byDate[bar.Date] = bar
	}

	if len(byDate) == 0 {
		return nil, &models.NoDataError{Ticker: ticker, Reason: "no rows with a close price"}
	}

	bars := make([]models.Bar, 0, len(byDate))
	for _, bar := range byDate {
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	return models.NewPriceSeries(ticker, interval, frame.Source, kind, volumes != nil, bars)
}
