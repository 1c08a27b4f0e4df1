package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/agrowhq/field-analytics/internal/metrics"
	"github.com/agrowhq/field-analytics/internal/store"
)

// TileCache serves previously computed analytic records without re-invoking
// the network, and supports explicit invalidation. Storage errors are soft:
// a failed read is a miss, a failed write is logged and the result is still
// returned to the caller.
type TileCache struct {
	backend Store

	// maxAge bounds how old a cached record may be before it is treated as
	// a miss. Zero keeps records until explicit invalidation.
	maxAge time.Duration
}

// NewTileCache wraps a store backend. maxAge of zero disables expiry.
func NewTileCache(backend Store, maxAge time.Duration) *TileCache {
	return &TileCache{backend: backend, maxAge: maxAge}
}

// GetTile returns the cached heatmap record for key, or false on a miss.
// Absence is the normal miss path, never an error.
func (c *TileCache) GetTile(ctx context.Context, key string) (*HeatmapResult, bool) {
	raw, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("cache: read failed for %s: %v", key, err)
			metrics.CacheErrors.WithLabelValues("tile").Inc()
		}
		metrics.CacheMisses.WithLabelValues("tile").Inc()
		return nil, false
	}

	var rec HeatmapResult
	if err := json.Unmarshal(raw, &rec); err != nil {
		// Corrupt record; treat as a miss so the next fetch overwrites it.
		log.Printf("cache: decode failed for %s: %v", key, err)
		metrics.CacheMisses.WithLabelValues("tile").Inc()
		return nil, false
	}

	if c.expired(rec.CachedAt) {
		metrics.CacheMisses.WithLabelValues("tile").Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues("tile").Inc()
	return &rec, true
}

// PutTile persists a freshly fetched record, stamping CachedAt. A write
// failure is non-fatal; callers proceed as if caching simply didn't happen.
func (c *TileCache) PutTile(ctx context.Context, key string, rec *HeatmapResult) {
	rec.CachedAt = time.Now().UTC()

	raw, err := json.Marshal(rec)
	if err != nil {
		log.Printf("cache: encode failed for %s: %v", key, err)
		return
	}
	if err := c.backend.Put(ctx, key, raw); err != nil {
		log.Printf("cache: write failed for %s: %v", key, err)
		metrics.CacheErrors.WithLabelValues("tile").Inc()
	}
}

// GetSeries returns the cached time series for key, or false on a miss.
func (c *TileCache) GetSeries(ctx context.Context, key string) (*TimeSeries, bool) {
	raw, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("cache: read failed for %s: %v", key, err)
			metrics.CacheErrors.WithLabelValues("series").Inc()
		}
		metrics.CacheMisses.WithLabelValues("series").Inc()
		return nil, false
	}

	var series TimeSeries
	if err := json.Unmarshal(raw, &series); err != nil {
		log.Printf("cache: decode failed for %s: %v", key, err)
		metrics.CacheMisses.WithLabelValues("series").Inc()
		return nil, false
	}

	if c.expired(series.CachedAt) {
		metrics.CacheMisses.WithLabelValues("series").Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues("series").Inc()
	return &series, true
}

// PutSeries persists a freshly fetched series, stamping CachedAt.
func (c *TileCache) PutSeries(ctx context.Context, key string, series *TimeSeries) {
	series.CachedAt = time.Now().UTC()

	raw, err := json.Marshal(series)
	if err != nil {
		log.Printf("cache: encode failed for %s: %v", key, err)
		return
	}
	if err := c.backend.Put(ctx, key, raw); err != nil {
		log.Printf("cache: write failed for %s: %v", key, err)
		metrics.CacheErrors.WithLabelValues("series").Inc()
	}
}

// Invalidate removes any record at key. Idempotent; invalidating an absent
// key is a no-op.
func (c *TileCache) Invalidate(ctx context.Context, key string) {
	if err := c.backend.Delete(ctx, key); err != nil {
		log.Printf("cache: delete failed for %s: %v", key, err)
	}
}

func (c *TileCache) expired(cachedAt time.Time) bool {
	if c.maxAge <= 0 || cachedAt.IsZero() {
		return false
	}
	return time.Since(cachedAt) > c.maxAge
}
