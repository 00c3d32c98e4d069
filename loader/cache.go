package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"stock-forecast/models"
	"stock-forecast/observability"
	"stock-forecast/repository"
)

// Key identifies one memoized history request
type Key struct {
	Ticker   string
	Start    time.Time
	Interval string
}

func (k Key) dataType() string {
	return fmt.Sprintf("history:%s:%s", k.Start.Format(time.DateOnly), k.Interval)
}

func (k Key) String() string {
	return k.Ticker + ":" + k.dataType()
}

// Cache memoizes loaded series. Implementations must be safe for concurrent
// use. Set failures are logged, never returned: a cache tier going away
// must not fail a load.
type Cache interface {
	Name() string
	Get(ctx context.Context, key Key) (*models.PriceSeries, bool)
	Set(ctx context.Context, key Key, series *models.PriceSeries)
}

// MemoryCache is the in-process tier. Entries never expire.
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache creates an empty in-process tier
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: gocache.New(gocache.NoExpiration, 0)}
}

func (c *MemoryCache) Name() string { return "memory" }

func (c *MemoryCache) Get(_ context.Context, key Key) (*models.PriceSeries, bool) {
	v, ok := c.items.Get(key.String())
	if !ok {
		return nil, false
	}
	observability.GetMetrics().RecordCacheHit(c.Name())
	return v.(*models.PriceSeries), true
}

func (c *MemoryCache) Set(_ context.Context, key Key, series *models.PriceSeries) {
	c.items.Set(key.String(), series, gocache.NoExpiration)
}

// Len returns the number of memoized series
func (c *MemoryCache) Len() int {
	return c.items.ItemCount()
}

// RedisCache shares loaded series between processes as JSON with a TTL
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to the Redis instance at url and pings it
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisCacheFromClient(client, ttl), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "stock-forecast", ttl: ttl}
}

func (c *RedisCache) Name() string { return "redis" }

func (c *RedisCache) wrapKey(key Key) string {
	return c.prefix + ":" + key.String()
}

func (c *RedisCache) Get(ctx context.Context, key Key) (*models.PriceSeries, bool) {
	data, err := c.client.Get(ctx, c.wrapKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			observability.Warn("redis cache read failed", "key", key.String(), "error", err.Error())
		}
		return nil, false
	}
	series, err := decodeSeries(data)
	if err != nil {
		observability.Warn("redis cache entry corrupt", "key", key.String(), "error", err.Error())
		return nil, false
	}
	observability.GetMetrics().RecordCacheHit(c.Name())
	return series, true
}

func (c *RedisCache) Set(ctx context.Context, key Key, series *models.PriceSeries) {
	data, err := json.Marshal(series)
	if err != nil {
		observability.Warn("failed to encode series for redis", "key", key.String(), "error", err.Error())
		return
	}
	if err := c.client.Set(ctx, c.wrapKey(key), data, c.ttl).Err(); err != nil {
		observability.Warn("redis cache write failed", "key", key.String(), "error", err.Error())
	}
}

// Health pings the Redis server
func (c *RedisCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// StoreCache keeps series in the durable market_data_cache table
type StoreCache struct {
	store repository.CacheStore
	ttl   time.Duration
}

// NewStoreCache wraps a repository as a cache tier
func NewStoreCache(store repository.CacheStore, ttl time.Duration) *StoreCache {
	return &StoreCache{store: store, ttl: ttl}
}

func (c *StoreCache) Name() string { return "postgres" }

func (c *StoreCache) Get(ctx context.Context, key Key) (*models.PriceSeries, bool) {
	data, err := c.store.GetCachedData(ctx, key.Ticker, key.dataType())
	if err != nil {
		observability.Warn("postgres cache read failed", "key", key.String(), "error", err.Error())
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	series, err := decodeSeries(data)
	if err != nil {
		observability.Warn("postgres cache entry corrupt", "key", key.String(), "error", err.Error())
		return nil, false
	}
	observability.GetMetrics().RecordCacheHit(c.Name())
	return series, true
}

func (c *StoreCache) Set(ctx context.Context, key Key, series *models.PriceSeries) {
	data, err := json.Marshal(series)
	if err != nil {
		observability.Warn("failed to encode series for postgres", "key", key.String(), "error", err.Error())
		return
	}
	if err := c.store.SetCachedData(ctx, key.Ticker, key.dataType(), data, c.ttl); err != nil {
		observability.Warn("postgres cache write failed", "key", key.String(), "error", err.Error())
	}
}

func decodeSeries(data []byte) (*models.PriceSeries, error) {
	var series models.PriceSeries
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return &series, nil
}

// LayeredCache checks tiers in order and back-fills the earlier tiers on a
// hit. Writes go to every tier.
type LayeredCache struct {
	tiers []Cache
}

// NewLayeredCache builds a cache from fastest to slowest tier. Nil tiers
// are skipped.
func NewLayeredCache(tiers ...Cache) *LayeredCache {
	lc := &LayeredCache{}
	for _, t := range tiers {
		if t != nil {
			lc.tiers = append(lc.tiers, t)
		}
	}
	return lc
}

func (lc *LayeredCache) Name() string { return "layered" }

// Tiers returns the tier names in lookup order
func (lc *LayeredCache) Tiers() []string {
	names := make([]string, len(lc.tiers))
	for i, t := range lc.tiers {
		names[i] = t.Name()
	}
	return names
}

func (lc *LayeredCache) Get(ctx context.Context, key Key) (*models.PriceSeries, bool) {
	for i, tier := range lc.tiers {
		series, ok := tier.Get(ctx, key)
		if !ok {
			continue
		}
		for j := 0; j < i; j++ {
			lc.tiers[j].Set(ctx, key, series)
		}
		return series, true
	}
	return nil, false
}

func (lc *LayeredCache) Set(ctx context.Context, key Key, series *models.PriceSeries) {
	for _, tier := range lc.tiers {
		tier.Set(ctx, key, series)
	}
}
