package analytics

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/agrowhq/field-analytics/internal/store"
)

// failingStore simulates a broken backend; every operation errors.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}
func (failingStore) Put(context.Context, string, []byte) error { return errors.New("disk on fire") }
func (failingStore) Delete(context.Context, string) error      { return errors.New("disk on fire") }

func sampleResult(metric string) *HeatmapResult {
	return &HeatmapResult{
		Metric:          metric,
		MeanValue:       0.65,
		MinValue:        0.2,
		MaxValue:        0.9,
		ImageBase64:     "aGVhdG1hcA==",
		Level:           "Moderate",
		Analysis:        "Vegetation is recovering.",
		Recommendations: []string{"irrigate the north corner"},
	}
}

func TestTileCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := NewTileCache(store.NewMemoryStore(), 0)
	key := TileKey(26.1885, 91.6894, "NDVI")

	if _, ok := cache.GetTile(ctx, key); ok {
		t.Fatal("expected miss on empty cache")
	}

	put := sampleResult("NDVI")
	cache.PutTile(ctx, key, put)

	got, ok := cache.GetTile(ctx, key)
	if !ok {
		t.Fatal("expected hit after put")
	}
	if got.CachedAt.IsZero() {
		t.Error("put must stamp CachedAt")
	}
	if !got.CachedAt.Equal(put.CachedAt) {
		t.Errorf("CachedAt changed in round-trip: %v vs %v", got.CachedAt, put.CachedAt)
	}
	got.CachedAt = put.CachedAt
	if !reflect.DeepEqual(got, put) {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", got, put)
	}
}

func TestTileCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewTileCache(store.NewMemoryStore(), 0)
	key := TileKey(1, 2, "SMI")

	cache.PutTile(ctx, key, sampleResult("SMI"))
	cache.Invalidate(ctx, key)

	if _, ok := cache.GetTile(ctx, key); ok {
		t.Fatal("expected miss after invalidate")
	}

	// Invalidating an absent key is a no-op, not an error.
	cache.Invalidate(ctx, key)
}

func TestTileCacheMaxAge(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryStore()
	key := TileKey(1, 2, "NDVI")

	cache := NewTileCache(backend, 50*time.Millisecond)
	cache.PutTile(ctx, key, sampleResult("NDVI"))

	if _, ok := cache.GetTile(ctx, key); !ok {
		t.Fatal("expected hit within max age")
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok := cache.GetTile(ctx, key); ok {
		t.Fatal("expected miss after max age elapsed")
	}

	// Zero max age keeps the same record forever.
	forever := NewTileCache(backend, 0)
	if _, ok := forever.GetTile(ctx, key); !ok {
		t.Fatal("expected hit with expiry disabled")
	}
}

func TestTileCacheStorageErrorsAreSoft(t *testing.T) {
	ctx := context.Background()
	cache := NewTileCache(failingStore{}, 0)
	key := TileKey(1, 2, "NDVI")

	// Read failure is just a miss.
	if _, ok := cache.GetTile(ctx, key); ok {
		t.Fatal("expected miss from failing backend")
	}

	// Write and delete failures must not panic or propagate.
	cache.PutTile(ctx, key, sampleResult("NDVI"))
	cache.Invalidate(ctx, key)
}

func TestSeriesCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := NewTileCache(store.NewMemoryStore(), 0)
	key := SeriesKey(26.1885, 91.6894, "NDVI")

	put := &TimeSeries{
		Metric:     "NDVI",
		Historical: []SeriesPoint{{Date: "2026-08-01", Value: 0.61}},
		Forecast:   []SeriesPoint{{Date: "2026-09-01", Value: 0.66}},
		Trend:      "increasing",
	}
	cache.PutSeries(ctx, key, put)

	got, ok := cache.GetSeries(ctx, key)
	if !ok {
		t.Fatal("expected hit after put")
	}
	got.CachedAt = put.CachedAt
	if !reflect.DeepEqual(got, put) {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", got, put)
	}
}
