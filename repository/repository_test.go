package repository

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"
)

// getTestDB returns a repository connected to the test database.
// If DATABASE_URL is not set, the test is skipped.
func getTestDB(t *testing.T) *Repository {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	repo, err := NewRepository(ctx, connString)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return repo
}

// cleanupCache removes all test cache entries
func cleanupCache(t *testing.T, repo *Repository) {
	t.Helper()
	ctx := context.Background()
	repo.pool.Exec(ctx, "DELETE FROM market_data_cache WHERE symbol LIKE 'TEST%'")
}

func TestRepository_Health(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()

	if err := repo.Health(context.Background()); err != nil {
		t.Errorf("Health failed: %v", err)
	}
}

func TestRepository_Cache_SetAndGet(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()
	defer cleanupCache(t, repo)

	ctx := context.Background()
	data := []byte(`{"ticker":"TEST001","bars":[{"date":"2024-01-02T00:00:00Z","close":150.5}]}`)

	if err := repo.SetCachedData(ctx, "TEST001", "history:2024-01-01:1d", data, time.Hour); err != nil {
		t.Fatalf("SetCachedData failed: %v", err)
	}

	cached, err := repo.GetCachedData(ctx, "TEST001", "history:2024-01-01:1d")
	if err != nil {
		t.Fatalf("GetCachedData failed: %v", err)
	}
	if cached == nil {
		t.Fatal("GetCachedData returned nil")
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(cached, &decoded); err != nil {
		t.Fatalf("cached data is not JSON: %v", err)
	}
	if decoded["ticker"] != "TEST001" {
		t.Errorf("expected ticker TEST001, got %v", decoded["ticker"])
	}
}

func TestRepository_Cache_Miss(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()

	cached, err := repo.GetCachedData(context.Background(), "TEST404", "history")
	if err != nil {
		t.Fatalf("GetCachedData failed: %v", err)
	}
	if cached != nil {
		t.Errorf("expected nil for missing entry, got %s", cached)
	}
}

func TestRepository_Cache_Expiration(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()
	defer cleanupCache(t, repo)

	ctx := context.Background()

	// Set cache with very short TTL
	if err := repo.SetCachedData(ctx, "TEST002", "history", []byte(`{}`), time.Millisecond); err != nil {
		t.Fatalf("SetCachedData failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	cached, err := repo.GetCachedData(ctx, "TEST002", "history")
	if err != nil {
		t.Fatalf("GetCachedData failed: %v", err)
	}
	if cached != nil {
		t.Error("expected nil for expired cache")
	}

	removed, err := repo.CleanExpiredCache(ctx)
	if err != nil {
		t.Fatalf("CleanExpiredCache failed: %v", err)
	}
	if removed < 1 {
		t.Errorf("expected at least one expired row removed, got %d", removed)
	}
}

func TestRepository_Cache_Upsert(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()
	defer cleanupCache(t, repo)

	ctx := context.Background()
	repo.SetCachedData(ctx, "TEST003", "history", []byte(`{"v":1}`), time.Hour)

	if err := repo.SetCachedData(ctx, "TEST003", "history", []byte(`{"v":2}`), time.Hour); err != nil {
		t.Fatalf("SetCachedData (upsert) failed: %v", err)
	}

	cached, _ := repo.GetCachedData(ctx, "TEST003", "history")
	var decoded map[string]float64
	json.Unmarshal(cached, &decoded)
	if decoded["v"] != 2 {
		t.Errorf("expected upserted value 2, got %v", decoded["v"])
	}
}

func TestRepository_InvalidateCache(t *testing.T) {
	repo := getTestDB(t)
	defer repo.Close()
	defer cleanupCache(t, repo)

	ctx := context.Background()
	repo.SetCachedData(ctx, "TEST004", "history", []byte(`{}`), time.Hour)

	if err := repo.InvalidateCache(ctx, "TEST004", "history"); err != nil {
		t.Fatalf("InvalidateCache failed: %v", err)
	}

	cached, _ := repo.GetCachedData(ctx, "TEST004", "history")
	if cached != nil {
		t.Error("expected nil after invalidation")
	}
}
