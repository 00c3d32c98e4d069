package loader

import (
	"encoding/csv"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"stock-forecast/models"
	"stock-forecast/observability"
)

const (
	syntheticDrift      = 0.0003
	syntheticVolatility = 0.02
)

var syntheticHeader = []string{"date", "open", "high", "low", "close", "volume"}

// SyntheticStore produces a deterministic stand-in history per ticker and
// keeps it as CSV under dir so later runs reuse the same data
type SyntheticStore struct {
	dir  string
	days int
	now  func() time.Time

	mu sync.Mutex
}

// NewSyntheticStore creates a store generating days business days of data
func NewSyntheticStore(dir string, days int) *SyntheticStore {
	if days < 2 {
		days = 730
	}
	return &SyntheticStore{dir: dir, days: days, now: time.Now}
}

// Path returns the CSV location for ticker
func (s *SyntheticStore) Path(ticker string) string {
	return filepath.Join(s.dir, safeFileName(ticker)+"_synthetic.csv")
}

// Load returns the synthetic series for ticker from start onwards. It never
// fails: an unreadable file is regenerated and write errors are only
// logged. When start leaves fewer than two bars the whole set is returned.
func (s *SyntheticStore) Load(ticker string, start time.Time) *models.PriceSeries {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(ticker)
	bars, err := readSyntheticCSV(path)
	if err != nil {
		if !os.IsNotExist(err) {
			observability.Warn("synthetic dataset unreadable, regenerating", "ticker", ticker, "path", path, "error", err.Error())
		}
		bars = generateWalk(ticker, s.days, s.now())
		if err := writeSyntheticCSV(s.dir, path, bars); err != nil {
			observability.Warn("failed to persist synthetic dataset", "ticker", ticker, "path", path, "error", err.Error())
		} else {
			observability.Info("generated synthetic dataset", "ticker", ticker, "path", path, "bars", len(bars))
		}
	}

	if !start.IsZero() {
		i := 0
		for i < len(bars) && bars[i].Date.Before(start) {
			i++
		}
		if len(bars)-i >= 2 {
			bars = bars[i:]
		}
	}

	return &models.PriceSeries{
		Ticker:    ticker,
		Interval:  "1d",
		Source:    models.SourceSynthetic,
		Kind:      models.SeriesFull,
		HasVolume: true,
		Bars:      bars,
	}
}

func safeFileName(ticker string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, ticker)
}

func tickerSeed(ticker string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(ticker)))
	return h.Sum64()
}

// businessDaysBack returns n weekdays ending at the last weekday on or
// before end
func businessDaysBack(end time.Time, n int) []time.Time {
	day := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	for i := n - 1; i >= 0; {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates[i] = day
			i--
		}
		day = day.AddDate(0, 0, -1)
	}
	return dates
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// generateWalk draws a geometric random walk seeded by the ticker
func generateWalk(ticker string, days int, end time.Time) []models.Bar {
	seed := tickerSeed(ticker)
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	price := 20 + float64(seed%180)
	dates := businessDaysBack(end, days)
	bars := make([]models.Bar, days)
	for i, date := range dates {
		open := price
		shock := syntheticDrift - syntheticVolatility*syntheticVolatility/2 + syntheticVolatility*rng.NormFloat64()
		price = math.Max(price*math.Exp(shock), 0.01)

		high := math.Max(open, price) * (1 + math.Abs(rng.NormFloat64())*0.005)
		low := math.Min(open, price) * (1 - math.Abs(rng.NormFloat64())*0.005)
		bars[i] = models.Bar{
			Date:   date,
			Open:   round4(open),
			High:   round4(high),
			Low:    round4(low),
			Close:  round4(price),
			Volume: math.Round(1_000_000 * (1 + math.Abs(rng.NormFloat64()))),
		}
	}
	return bars
}

func readSyntheticCSV(path string) ([]models.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) < 3 || strings.Join(records[0], ",") != strings.Join(syntheticHeader, ",") {
		return nil, fmt.Errorf("%s: unexpected layout", path)
	}

	bars := make([]models.Bar, 0, len(records)-1)
	for _, rec := range records[1:] {
		date, err := time.Parse(time.DateOnly, rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s: bad date %q", path, rec[0])
		}
		var values [5]float64
		for j := range values {
			values[j], err = strconv.ParseFloat(rec[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: bad %s %q", path, syntheticHeader[j+1], rec[j+1])
			}
		}
		bars = append(bars, models.Bar{Date: date, Open: values[0], High: values[1], Low: values[2], Close: values[3], Volume: values[4]})
	}

	series := models.PriceSeries{Kind: models.SeriesFull, Bars: bars}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// writeSyntheticCSV writes through a temp file so readers never see a
// partial dataset
func writeSyntheticCSV(dir, path string, bars []models.Bar) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".synthetic-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	w.Write(syntheticHeader)
	for _, b := range bars {
		w.Write([]string{
			b.Date.Format(time.DateOnly),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
