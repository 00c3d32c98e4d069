package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stock-forecast/observability"
)

const cacheTable = "market_data_cache"

// GetCachedData returns the JSON document stored for symbol and dataType,
// or nil when there is no live entry
func (r *Repository) GetCachedData(ctx context.Context, symbol, dataType string) ([]byte, error) {
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveDB("select", cacheTable)

	var data []byte

	// Let the database handle expiry check to avoid timezone issues
	err := r.pool.QueryRow(ctx, `
		SELECT data FROM market_data_cache
		WHERE symbol = $1 AND data_type = $2 AND expires_at > NOW()
	`, symbol, dataType).Scan(&data)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		observability.GetMetrics().RecordDBError("select", cacheTable)
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	return data, nil
}

// SetCachedData upserts a JSON document that expires after ttl
func (r *Repository) SetCachedData(ctx context.Context, symbol, dataType string, data []byte, ttl time.Duration) error {
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveDB("upsert", cacheTable)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO market_data_cache (symbol, data_type, data, expires_at)
		VALUES ($1, $2, $3, NOW() + make_interval(secs => $4))
		ON CONFLICT (symbol, data_type)
		DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, created_at = NOW()
	`, symbol, dataType, data, ttl.Seconds())

	if err != nil {
		observability.GetMetrics().RecordDBError("upsert", cacheTable)
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// InvalidateCache removes cached data for a symbol and data type
func (r *Repository) InvalidateCache(ctx context.Context, symbol, dataType string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM market_data_cache WHERE symbol = $1 AND data_type = $2
	`, symbol, dataType)

	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	return nil
}

// CleanExpiredCache removes all expired cache entries
func (r *Repository) CleanExpiredCache(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM market_data_cache WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired cache: %w", err)
	}
	return result.RowsAffected(), nil
}
