// Package loader turns a ticker into a validated PriceSeries by querying
// upstream sources in order, with a synthetic dataset as the last resort.
package loader

import (
	"context"
	"errors"
	"strings"
	"time"

	"stock-forecast/models"
	"stock-forecast/observability"
	"stock-forecast/services"
)

// retryConfigurable is implemented by sources with an adjustable retry policy
type retryConfigurable interface {
	SetRetryConfig(cfg services.RetryConfig)
}

// Loader loads price history through a fallback chain of sources
type Loader struct {
	sources   []services.PriceSource
	cache     Cache
	synthetic *SyntheticStore
}

// New creates a loader querying sources in order. A nil cache disables
// memoization and a nil synthetic store disables the final fallback.
func New(cache Cache, synthetic *SyntheticStore, sources ...services.PriceSource) *Loader {
	return &Loader{sources: sources, cache: cache, synthetic: synthetic}
}

// ConfigureRetries applies cfg to every source that retries, counting each
// retry in the metrics
func (l *Loader) ConfigureRetries(cfg services.RetryConfig) {
	for _, src := range l.sources {
		rc, ok := src.(retryConfigurable)
		if !ok {
			continue
		}
		name := src.Name()
		sourceCfg := cfg
		sourceCfg.OnRetry = func(attempt int, err error) {
			observability.GetMetrics().RecordRetry(name)
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, err)
			}
		}
		rc.SetRetryConfig(sourceCfg)
	}
}

// Sources returns the names of the configured upstreams in fallback order
func (l *Loader) Sources() []string {
	names := make([]string, len(l.sources))
	for i, src := range l.sources {
		names[i] = src.Name()
	}
	return names
}

// Load returns the history of ticker from start at the given interval.
// It fails with a NoDataError only when every source failed and there is
// no synthetic fallback. A cancelled ctx aborts the load. An expired
// deadline stops the upstream chain but still serves the synthetic data.
func (l *Loader) Load(ctx context.Context, ticker string, start time.Time, interval string) (*models.PriceSeries, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, &models.NoDataError{Reason: "empty ticker"}
	}
	if interval == "" {
		interval = "1d"
	}
	log := observability.WithSymbol(ticker)
	metrics := observability.GetMetrics()

	key := Key{Ticker: ticker, Start: start, Interval: interval}
	if l.cache != nil {
		if series, ok := l.cache.Get(ctx, key); ok {
			log.Debug().Str("key", key.String()).Msg("history served from cache")
			return series, nil
		}
		metrics.RecordCacheMiss()
	}

	var failures []error
	for _, src := range l.sources {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.Canceled) {
				return nil, ctxErr
			}
			log.Warn().Err(ctxErr).Str("source", src.Name()).Msg("request deadline reached, skipping remaining sources")
			failures = append(failures, ctxErr)
			break
		}

		series, err := l.fetch(ctx, src, ticker, start, interval)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("source", src.Name()).Msg("source failed, trying next")
			failures = append(failures, err)
			continue
		}

		metrics.RecordSource(src.Name())
		log.Info().Str("source", src.Name()).Int("bars", series.Len()).Str("kind", series.Kind.String()).Msg("history loaded")
		if l.cache != nil {
			l.cache.Set(ctx, key, series)
		}
		return series, nil
	}

	if l.synthetic == nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &models.NoDataError{Ticker: ticker, Reason: "all sources failed", Err: errors.Join(failures...)}
	}

	// not memoized so a recovered upstream is picked up on the next call
	series := l.synthetic.Load(ticker, start)
	metrics.RecordSource(models.SourceSynthetic)
	log.Warn().Int("failed_sources", len(failures)).Msg("using synthetic history")
	return series, nil
}

func (l *Loader) fetch(ctx context.Context, src services.PriceSource, ticker string, start time.Time, interval string) (*models.PriceSeries, error) {
	frame, err := src.FetchHistory(ctx, ticker, start, interval)
	if err != nil {
		return nil, err
	}
	return Normalize(ticker, interval, frame)
}
