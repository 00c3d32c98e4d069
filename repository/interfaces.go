package repository

import (
	"context"
	"time"
)

// CacheStore is the durable key/value surface used by the history loader
type CacheStore interface {
	Health(ctx context.Context) error
	GetCachedData(ctx context.Context, symbol, dataType string) ([]byte, error)
	SetCachedData(ctx context.Context, symbol, dataType string, data []byte, ttl time.Duration) error
	InvalidateCache(ctx context.Context, symbol, dataType string) error
	CleanExpiredCache(ctx context.Context) (int64, error)
}

// Compile-time interface verification
var _ CacheStore = (*Repository)(nil)
