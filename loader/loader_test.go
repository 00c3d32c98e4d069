package loader

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"stock-forecast/models"
	"stock-forecast/services"
)

type fakeSource struct {
	name  string
	frame *models.RawFrame
	err   error
	// block waits for ctx to end before failing
	block bool

	mu    sync.Mutex
	calls int
	retry services.RetryConfig
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchHistory(ctx context.Context, ticker string, start time.Time, interval string) (*models.RawFrame, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, services.Transient(ctx.Err())
	}
	return f.frame, f.err
}

func (f *fakeSource) SetRetryConfig(cfg services.RetryConfig) { f.retry = cfg }

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

// yahooStyleFrame has composite (field, ticker) headers
func yahooStyleFrame() *models.RawFrame {
	f := &models.RawFrame{Source: models.SourceYahoo, Dates: []time.Time{day(2), day(3), day(4)}}
	f.AddColumn([]float64{10, 11, 12}, "Open", "AAPL")
	f.AddColumn([]float64{11, 12, 13}, "High", "AAPL")
	f.AddColumn([]float64{9, 10, 11}, "Low", "AAPL")
	f.AddColumn([]float64{10.5, 11.5, 12.5}, "Close", "AAPL")
	f.AddColumn([]float64{100, 200, 300}, "Volume", "AAPL")
	f.AddColumn([]float64{10.4, 11.4, 12.4}, "Adj Close", "AAPL")
	return f
}

func TestNormalize_CompositeColumns(t *testing.T) {
	series, err := Normalize("AAPL", "1d", yahooStyleFrame())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if series.Kind != models.SeriesFull {
		t.Errorf("Kind = %v, want Full", series.Kind)
	}
	if !series.HasVolume {
		t.Error("expected volume to be present")
	}
	if series.Source != models.SourceYahoo {
		t.Errorf("Source = %v, want %v", series.Source, models.SourceYahoo)
	}
	if got := series.Closes(); !slices.Equal(got, []float64{10.5, 11.5, 12.5}) {
		t.Errorf("Closes() = %v", got)
	}
	if got := series.Volumes(); !slices.Equal(got, []float64{100, 200, 300}) {
		t.Errorf("Volumes() = %v", got)
	}
}

func TestNormalize_NumberedColumns(t *testing.T) {
	f := &models.RawFrame{Source: models.SourceAlphaVantage, Dates: []time.Time{day(2), day(3)}}
	f.AddColumn([]float64{1, 2}, "1. open")
	f.AddColumn([]float64{2, 3}, "2. high")
	f.AddColumn([]float64{0.5, 1}, "3. low")
	f.AddColumn([]float64{1.5, 2.5}, "4. close")
	f.AddColumn([]float64{10, 20}, "5. volume")

	series, err := Normalize("IBM", "1d", f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Kind != models.SeriesFull {
		t.Errorf("Kind = %v, want Full", series.Kind)
	}
	if got := series.Closes(); !slices.Equal(got, []float64{1.5, 2.5}) {
		t.Errorf("Closes() = %v", got)
	}
	if got := series.Highs(); !slices.Equal(got, []float64{2, 3}) {
		t.Errorf("Highs() = %v", got)
	}
}

func TestNormalize_CloseOnly(t *testing.T) {
	f := &models.RawFrame{Source: "test", Dates: []time.Time{day(2), day(3)}}
	f.AddColumn([]float64{1, 2}, "Price", "Close", "XYZ")

	series, err := Normalize("XYZ", "1d", f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Kind != models.SeriesCloseOnly {
		t.Errorf("Kind = %v, want CloseOnly", series.Kind)
	}
	if series.HasVolume {
		t.Error("close-only series should have no volume")
	}
	if series.Highs() != nil {
		t.Errorf("Highs() = %v, want nil", series.Highs())
	}
}

func TestNormalize_MissingClose(t *testing.T) {
	f := &models.RawFrame{Source: "test", Dates: []time.Time{day(2)}}
	f.AddColumn([]float64{1}, "Adj Close", "XYZ")
	f.AddColumn([]float64{1}, "Open", "XYZ")

	_, err := Normalize("XYZ", "1d", f)
	if !errors.Is(err, models.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
}

func TestNormalize_DropsGapsAndDuplicates(t *testing.T) {
	nan := math.NaN()
	f := &models.RawFrame{Source: "test", Dates: []time.Time{day(4), day(2), day(3), day(2), day(5)}}
	f.AddColumn([]float64{40, 20, nan, 21, 50}, "close")
	f.AddColumn([]float64{41, 21, 31, 22, nan}, "high")
	f.AddColumn([]float64{39, 19, 29, 20, 49}, "low")

	series, err := Normalize("XYZ", "1d", f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// day 3 has no close, day 5 has no high, day 2 appears twice
	if got := series.Dates(); !slices.Equal(got, []time.Time{day(2), day(4)}) {
		t.Errorf("Dates() = %v", got)
	}
	if got := series.Closes(); !slices.Equal(got, []float64{21, 40}) {
		t.Errorf("Closes() = %v, last duplicate should win", got)
	}
	if series.Bars[0].Open != 21 {
		t.Errorf("Open = %v, missing open should fall back to close", series.Bars[0].Open)
	}
}

func TestNormalize_NoUsableRows(t *testing.T) {
	f := &models.RawFrame{Source: "test", Dates: []time.Time{day(2)}}
	f.AddColumn([]float64{math.NaN()}, "close")

	_, err := Normalize("XYZ", "1d", f)
	if !errors.Is(err, models.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestLoad_PrimarySource(t *testing.T) {
	primary := &fakeSource{name: "yahoo", frame: yahooStyleFrame()}
	secondary := &fakeSource{name: "alphavantage", err: errors.New("should not be called")}
	l := New(NewMemoryCache(), nil, primary, secondary)

	series, err := l.Load(context.Background(), " aapl ", day(1), "1d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Ticker != "AAPL" {
		t.Errorf("Ticker = %q, want AAPL", series.Ticker)
	}
	if series.Len() != 3 {
		t.Errorf("Len() = %d, want 3", series.Len())
	}
	if primary.Calls() != 1 || secondary.Calls() != 0 {
		t.Errorf("calls = %d/%d, want 1/0", primary.Calls(), secondary.Calls())
	}
}

func TestLoad_FallsBackToNextSource(t *testing.T) {
	primary := &fakeSource{name: "yahoo", err: services.ErrNoResults}
	f := &models.RawFrame{Source: models.SourceAlphaVantage, Dates: []time.Time{day(2), day(3)}}
	f.AddColumn([]float64{1.5, 2.5}, "4. close")
	secondary := &fakeSource{name: "alphavantage", frame: f}

	l := New(NewMemoryCache(), nil, primary, secondary)
	series, err := l.Load(context.Background(), "IBM", day(1), "1d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Source != models.SourceAlphaVantage {
		t.Errorf("Source = %v, want %v", series.Source, models.SourceAlphaVantage)
	}
	if series.Kind != models.SeriesCloseOnly {
		t.Errorf("Kind = %v, want CloseOnly", series.Kind)
	}
}

func TestLoad_MissingFieldCountsAsSourceFailure(t *testing.T) {
	bad := &models.RawFrame{Source: "yahoo", Dates: []time.Time{day(2)}}
	bad.AddColumn([]float64{1}, "Open")
	primary := &fakeSource{name: "yahoo", frame: bad}
	secondary := &fakeSource{name: "alpaca", frame: yahooStyleFrame()}

	series, err := New(nil, nil, primary, secondary).Load(context.Background(), "AAPL", day(1), "1d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Len() != 3 {
		t.Errorf("Len() = %d, want 3", series.Len())
	}
	if secondary.Calls() != 1 {
		t.Errorf("secondary calls = %d, want 1", secondary.Calls())
	}
}

func TestLoad_AllFailWithoutSynthetic(t *testing.T) {
	l := New(NewMemoryCache(), nil,
		&fakeSource{name: "yahoo", err: errors.New("boom")},
		&fakeSource{name: "alphavantage", err: errors.New("quota")},
	)

	_, err := l.Load(context.Background(), "NOPE", day(1), "1d")
	if !errors.Is(err, models.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota") {
		t.Errorf("error should carry every source failure, got %v", err)
	}
}

func TestLoad_EmptyTicker(t *testing.T) {
	_, err := New(nil, nil).Load(context.Background(), "  ", day(1), "1d")
	if !errors.Is(err, models.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestLoad_SyntheticFallbackNeverFails(t *testing.T) {
	dir := t.TempDir()
	store := NewSyntheticStore(dir, 120)
	source := &fakeSource{name: "yahoo", err: errors.New("offline")}
	cache := NewMemoryCache()
	l := New(cache, store, source)

	series, err := l.Load(context.Background(), "MSFT", time.Time{}, "1d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Source != models.SourceSynthetic {
		t.Errorf("Source = %v, want synthetic", series.Source)
	}
	if series.Len() != 120 {
		t.Errorf("Len() = %d, want 120", series.Len())
	}
	if err := series.Validate(); err != nil {
		t.Errorf("synthetic series invalid: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "MSFT_synthetic.csv")); err != nil {
		t.Errorf("synthetic CSV not written: %v", err)
	}

	// synthetic results are not memoized
	if cache.Len() != 0 {
		t.Errorf("cache.Len() = %d, want 0", cache.Len())
	}
	if _, err := l.Load(context.Background(), "MSFT", time.Time{}, "1d"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.Calls() != 2 {
		t.Errorf("source calls = %d, want 2", source.Calls())
	}
}

func TestLoad_MemoizesUpstreamResults(t *testing.T) {
	source := &fakeSource{name: "yahoo", frame: yahooStyleFrame()}
	l := New(NewMemoryCache(), nil, source)

	first, err := l.Load(context.Background(), "AAPL", day(1), "1d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := l.Load(context.Background(), "aapl", day(1), "1d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Error("expected the memoized series to be returned")
	}
	if source.Calls() != 1 {
		t.Errorf("source calls = %d, want 1", source.Calls())
	}

	// a different start is a different key
	if _, err := l.Load(context.Background(), "AAPL", day(2), "1d"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.Calls() != 2 {
		t.Errorf("source calls = %d, want 2", source.Calls())
	}
}

func TestLoad_ConcurrentCallsAgree(t *testing.T) {
	source := &fakeSource{name: "yahoo", frame: yahooStyleFrame()}
	l := New(NewMemoryCache(), nil, source)

	var wg sync.WaitGroup
	results := make([]*models.PriceSeries, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = l.Load(context.Background(), "AAPL", day(1), "1d")
		}(i)
	}
	wg.Wait()

	for i, s := range results {
		if s == nil {
			t.Fatalf("result %d is nil", i)
		}
		if !slices.Equal(s.Closes(), results[0].Closes()) {
			t.Errorf("result %d closes = %v, want %v", i, s.Closes(), results[0].Closes())
		}
	}
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	source := &fakeSource{name: "yahoo", err: context.Canceled}

	_, err := New(nil, NewSyntheticStore(t.TempDir(), 60), source).Load(ctx, "AAPL", day(1), "1d")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLoad_DeadlineServesSynthetic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	hung := &fakeSource{name: "yahoo", block: true}
	next := &fakeSource{name: "alphavantage", frame: yahooStyleFrame()}

	series, err := New(NewMemoryCache(), NewSyntheticStore(t.TempDir(), 60), hung, next).Load(ctx, "AAPL", time.Time{}, "1d")
	if err != nil {
		t.Fatalf("expected synthetic history after the deadline, got %v", err)
	}
	if series.Source != models.SourceSynthetic {
		t.Errorf("Source = %v, want synthetic", series.Source)
	}
	if next.Calls() != 0 {
		t.Errorf("sources after the deadline should be skipped, got %d calls", next.Calls())
	}
}

func TestLoad_DeadlineWithoutSynthetic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(nil, nil, &fakeSource{name: "yahoo", block: true}).Load(ctx, "AAPL", day(1), "1d")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestLoad_HungYahooFallsBackToSynthetic(t *testing.T) {
	services.SetGlobalRegistry(services.NewCircuitBreakerRegistry(services.DefaultCircuitBreakerConfig))
	defer services.SetGlobalRegistry(services.NewCircuitBreakerRegistry(services.DefaultCircuitBreakerConfig))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	yahoo := services.NewYahooService(server.URL)
	l := New(NewMemoryCache(), NewSyntheticStore(t.TempDir(), 60), yahoo)
	l.ConfigureRetries(services.RetryConfig{MaxRetries: 3, InitialBackoff: 50 * time.Millisecond, MaxBackoff: 200 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	series, err := l.Load(ctx, "AAPL", time.Time{}, "1d")
	if err != nil {
		t.Fatalf("expected synthetic history, got %v", err)
	}
	if series.Source != models.SourceSynthetic {
		t.Errorf("Source = %v, want synthetic", series.Source)
	}
}

func TestConfigureRetries(t *testing.T) {
	source := &fakeSource{name: "yahoo"}
	var seen int
	l := New(nil, nil, source)
	l.ConfigureRetries(services.RetryConfig{MaxRetries: 2, OnRetry: func(int, error) { seen++ }})

	if source.retry.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", source.retry.MaxRetries)
	}
	if source.retry.OnRetry == nil {
		t.Fatal("OnRetry should be set")
	}
	source.retry.OnRetry(1, errors.New("x"))
	if seen != 1 {
		t.Errorf("caller OnRetry ran %d times, want 1", seen)
	}
	if got := l.Sources(); !slices.Equal(got, []string{"yahoo"}) {
		t.Errorf("Sources() = %v", got)
	}
}

func TestSyntheticStore_DeterministicAndReused(t *testing.T) {
	dir := t.TempDir()
	now := func() time.Time { return time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC) }

	a := NewSyntheticStore(dir, 60)
	a.now = now
	first := a.Load("TSLA", time.Time{})

	other := NewSyntheticStore(t.TempDir(), 60)
	other.now = now
	if !slices.Equal(first.Closes(), other.Load("TSLA", time.Time{}).Closes()) {
		t.Error("same ticker should give the same walk")
	}
	if slices.Equal(first.Closes(), other.Load("NVDA", time.Time{}).Closes()) {
		t.Error("different tickers should give different walks")
	}

	// the second load reads the CSV written by the first
	b := NewSyntheticStore(dir, 60)
	b.now = func() time.Time { return now().AddDate(0, 1, 0) }
	reloaded := b.Load("TSLA", time.Time{})
	if !slices.Equal(first.Dates(), reloaded.Dates()) || !slices.Equal(first.Closes(), reloaded.Closes()) {
		t.Error("reloaded series should match the persisted one")
	}

	for _, d := range first.Dates() {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Errorf("weekend date %v in synthetic series", d)
		}
	}
	if want := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC); !first.Last().Date.Equal(want) {
		t.Errorf("last date = %v, want %v", first.Last().Date, want)
	}
}

func TestSyntheticStore_RegeneratesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store := NewSyntheticStore(dir, 60)
	if err := os.WriteFile(store.Path("AMD"), []byte("not,a,csv\n\"broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	series := store.Load("AMD", time.Time{})
	if series.Len() != 60 {
		t.Errorf("Len() = %d, want 60", series.Len())
	}
	if err := series.Validate(); err != nil {
		t.Errorf("regenerated series invalid: %v", err)
	}
	if _, err := readSyntheticCSV(store.Path("AMD")); err != nil {
		t.Errorf("corrupt file should have been replaced: %v", err)
	}
}

func TestSyntheticStore_UnwritableDirStillReturnsData(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	series := NewSyntheticStore(filepath.Join(blocker, "sub"), 60).Load("AAPL", time.Time{})
	if series.Len() != 60 {
		t.Errorf("Len() = %d, want 60", series.Len())
	}
}

func TestSyntheticStore_StartFilter(t *testing.T) {
	store := NewSyntheticStore(t.TempDir(), 60)
	store.now = func() time.Time { return time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC) }

	if got := store.Load("AAPL", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)).Len(); got != 10 {
		t.Errorf("Len() = %d, want 10", got)
	}

	// a start past the data keeps everything
	if got := store.Load("AAPL", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)).Len(); got != 60 {
		t.Errorf("Len() = %d, want 60", got)
	}
}

func TestSafeFileName(t *testing.T) {
	tests := map[string]string{
		"BRK.B":  "BRK.B",
		"^GSPC":  "_GSPC",
		"../etc": ".._etc",
	}
	for in, want := range tests {
		if got := safeFileName(in); got != want {
			t.Errorf("safeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func testSeries(t *testing.T) *models.PriceSeries {
	t.Helper()
	series, err := Normalize("AAPL", "1d", yahooStyleFrame())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return series
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCacheFromClient(client, time.Hour)
	defer cache.Close()

	ctx := context.Background()
	key := Key{Ticker: "AAPL", Start: day(1), Interval: "1d"}

	if _, ok := cache.Get(ctx, key); ok {
		t.Error("expected a miss on an empty cache")
	}

	cache.Set(ctx, key, testSeries(t))
	if !mr.Exists("stock-forecast:AAPL:history:2024-01-01:1d") {
		t.Error("expected the namespaced key to be written")
	}

	got, ok := cache.Get(ctx, key)
	if !ok {
		t.Fatal("expected a hit after Set")
	}
	if !slices.Equal(got.Closes(), []float64{10.5, 11.5, 12.5}) {
		t.Errorf("Closes() = %v", got.Closes())
	}
	if got.Kind != models.SeriesFull {
		t.Errorf("Kind = %v, want Full", got.Kind)
	}

	mr.FastForward(2 * time.Hour)
	if _, ok := cache.Get(ctx, key); ok {
		t.Error("entry should expire after the ttl")
	}
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCacheFromClient(client, time.Hour)

	key := Key{Ticker: "AAPL", Start: day(1), Interval: "1d"}
	if err := mr.Set("stock-forecast:"+key.String(), "{not json"); err != nil {
		t.Fatal(err)
	}

	if _, ok := cache.Get(context.Background(), key); ok {
		t.Error("a corrupt entry should be a miss")
	}
}

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cache, err := NewRedisCache(context.Background(), "redis://"+mr.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cache.Close()
	if cache.Name() != "redis" {
		t.Errorf("Name() = %q, want redis", cache.Name())
	}

	if _, err := NewRedisCache(context.Background(), "://bad", time.Minute); err == nil {
		t.Error("expected an error for a malformed url")
	}
}

type memoryStore struct {
	data map[string][]byte
	err  error
}

func (m *memoryStore) Health(ctx context.Context) error { return m.err }

func (m *memoryStore) GetCachedData(ctx context.Context, symbol, dataType string) ([]byte, error) {
	return m.data[symbol+"|"+dataType], m.err
}

func (m *memoryStore) SetCachedData(ctx context.Context, symbol, dataType string, data []byte, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.data[symbol+"|"+dataType] = data
	return nil
}

func (m *memoryStore) InvalidateCache(ctx context.Context, symbol, dataType string) error {
	delete(m.data, symbol+"|"+dataType)
	return nil
}

func (m *memoryStore) CleanExpiredCache(ctx context.Context) (int64, error) { return 0, nil }

func TestStoreCache(t *testing.T) {
	store := &memoryStore{data: map[string][]byte{}}
	cache := NewStoreCache(store, time.Hour)
	ctx := context.Background()
	key := Key{Ticker: "AAPL", Start: day(1), Interval: "1d"}

	if _, ok := cache.Get(ctx, key); ok {
		t.Error("expected a miss on an empty store")
	}

	cache.Set(ctx, key, testSeries(t))
	if _, ok := store.data["AAPL|history:2024-01-01:1d"]; !ok {
		t.Errorf("expected the history row to be stored, got keys %v", store.data)
	}

	got, ok := cache.Get(ctx, key)
	if !ok {
		t.Fatal("expected a hit after Set")
	}
	if got.Len() != 3 {
		t.Errorf("Len() = %d, want 3", got.Len())
	}

	store.err = errors.New("db down")
	if _, ok := cache.Get(ctx, key); ok {
		t.Error("read errors should degrade to a miss")
	}
	cache.Set(ctx, key, got)
}

func TestLayeredCache_BackFillsEarlierTiers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	memory := NewMemoryCache()
	shared := NewRedisCacheFromClient(client, time.Hour)
	layered := NewLayeredCache(memory, shared, nil)

	if got := layered.Tiers(); !slices.Equal(got, []string{"memory", "redis"}) {
		t.Errorf("Tiers() = %v", got)
	}

	ctx := context.Background()
	key := Key{Ticker: "AAPL", Start: day(1), Interval: "1d"}
	shared.Set(ctx, key, testSeries(t))
	if memory.Len() != 0 {
		t.Fatalf("memory.Len() = %d, want 0", memory.Len())
	}

	got, ok := layered.Get(ctx, key)
	if !ok {
		t.Fatal("expected a hit from the shared tier")
	}
	if got.Len() != 3 {
		t.Errorf("Len() = %d, want 3", got.Len())
	}
	if memory.Len() != 1 {
		t.Errorf("memory tier should be back-filled, Len() = %d", memory.Len())
	}

	other := Key{Ticker: "MSFT", Start: day(1), Interval: "1d"}
	layered.Set(ctx, other, testSeries(t))
	if _, ok := memory.Get(ctx, other); !ok {
		t.Error("Set should write the memory tier")
	}
	if _, ok := shared.Get(ctx, other); !ok {
		t.Error("Set should write the shared tier")
	}
}
