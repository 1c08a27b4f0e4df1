package analytics

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Timeouts bounds the outbound calls made while building one tile.
type Timeouts struct {
	// Primary bounds the heatmap fetch and the standalone series fetch.
	Primary time.Duration
	// AuxPerCall bounds each auxiliary enrichment call.
	AuxPerCall time.Duration
	// AuxTotal bounds the whole enrichment fan-out.
	AuxTotal time.Duration
}

// DefaultTimeouts reflect that heatmap generation (remote imagery + LLM
// analysis) is slow while enrichment must never hold a tile hostage.
var DefaultTimeouts = Timeouts{
	Primary:    90 * time.Second,
	AuxPerCall: 20 * time.Second,
	AuxTotal:   30 * time.Second,
}

// auxIndices is the fixed set of indices fetched as time-series enrichment
// for every heatmap request. Bounded to three so one tile never fans out
// unboundedly.
var auxIndices = [3]string{IndexNDVI, IndexNDRE, IndexSMI}

// ErrUnknownMetric is returned for metrics outside the registry.
var ErrUnknownMetric = fmt.Errorf("unknown metric")

// Service orchestrates the fetch-or-serve decision per tile: consult the
// cache, otherwise gather enrichment concurrently, call the heatmap
// provider, persist, and hand the result back tagged with its provenance.
type Service struct {
	cache    *TileCache
	heatmap  HeatmapProvider
	series   TimeSeriesProvider
	weather  WeatherProvider
	states   *StateStore
	timeouts Timeouts

	// flight coalesces concurrent requests for the same uncached key onto
	// a single provider fetch.
	flight singleflight.Group
}

// NewService wires the cache and providers together. The weather provider
// may be nil; enrichment then carries no weather context.
func NewService(cache *TileCache, heatmap HeatmapProvider, series TimeSeriesProvider, weather WeatherProvider, timeouts Timeouts) *Service {
	if timeouts.Primary <= 0 {
		timeouts = DefaultTimeouts
	}
	return &Service{
		cache:    cache,
		heatmap:  heatmap,
		series:   series,
		weather:  weather,
		states:   NewStateStore(),
		timeouts: timeouts,
	}
}

// GetTile serves the tile for (field, metric) from cache when possible and
// fetches it otherwise. The returned payload's Source reports which path
// was taken.
func (s *Service) GetTile(ctx context.Context, field FieldPoint, metric string) (*TilePayload, error) {
	if _, ok := CanonicalMetric(metric); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}

	key := TileKey(field.Lat, field.Lon, metric)

	if rec, ok := s.cache.GetTile(ctx, key); ok {
		s.states.Set(key, StateCached)
		return &TilePayload{Result: rec, Source: SourceCache}, nil
	}

	s.states.Set(key, StateLoading)

	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		return s.fetchTile(ctx, field, metric, key)
	})
	if err != nil {
		s.states.Set(key, StateError)
		return nil, err
	}

	s.states.Set(key, StateFetched)
	return &TilePayload{Result: v.(*HeatmapResult), Source: SourceNetwork}, nil
}

// Refresh clears the cached tile and forces a fresh fetch, yielding a new
// record with a newer CachedAt than any prior one.
func (s *Service) Refresh(ctx context.Context, field FieldPoint, metric string) (*TilePayload, error) {
	key := TileKey(field.Lat, field.Lon, metric)

	s.cache.Invalidate(ctx, key)
	// Drop any completed flight so the refresh does not reuse its result.
	s.flight.Forget(key)

	return s.GetTile(ctx, field, metric)
}

// PeekTile reads the cache only; it never triggers a network fetch.
func (s *Service) PeekTile(ctx context.Context, field FieldPoint, metric string) (*HeatmapResult, bool) {
	return s.cache.GetTile(ctx, TileKey(field.Lat, field.Lon, metric))
}

// TileStatus reports the lifecycle state of a tile.
func (s *Service) TileStatus(field FieldPoint, metric string) TileState {
	return s.states.Get(TileKey(field.Lat, field.Lon, metric))
}

// fetchTile gathers best-effort enrichment, calls the heatmap provider
// under a bounded timeout, and persists the result.
func (s *Service) fetchTile(ctx context.Context, field FieldPoint, metric, key string) (*HeatmapResult, error) {
	seriesData, weather := s.gatherEnrichment(ctx, field)

	primaryCtx, cancel := context.WithTimeout(ctx, s.timeouts.Primary)
	defer cancel()

	rec, err := s.heatmap.FetchHeatmap(primaryCtx, HeatmapRequest{
		Field:      field,
		Metric:     metric,
		SeriesData: seriesData,
		Weather:    weather,
	})
	if err != nil {
		return nil, fmt.Errorf("heatmap fetch for %s: %w", key, err)
	}

	s.cache.PutTile(ctx, key, rec)
	return rec, nil
}

// gatherEnrichment concurrently fetches the bounded auxiliary index series
// plus weather context. Any individual failure or timeout degrades that
// piece of the payload without failing the tile.
func (s *Service) gatherEnrichment(ctx context.Context, field FieldPoint) (map[string]*TimeSeries, *WeatherSummary) {
	auxCtx, cancel := context.WithTimeout(ctx, s.timeouts.AuxTotal)
	defer cancel()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		seriesData = make(map[string]*TimeSeries)
		weather    *WeatherSummary
	)

	for _, index := range auxIndices {
		index := index
		wg.Add(1)
		go func() {
			defer wg.Done()

			series, err := s.seriesForIndex(auxCtx, field, index)
			if err != nil {
				log.Printf("enrichment: series %s failed for %s: %v", index, field, err)
				return
			}

			mu.Lock()
			seriesData[index] = series
			mu.Unlock()
		}()
	}

	if s.weather != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(auxCtx, s.timeouts.AuxPerCall)
			defer cancel()

			w, err := s.weather.FetchWeather(callCtx, field.Lat, field.Lon)
			if err != nil {
				log.Printf("enrichment: weather failed for %s: %v", field, err)
				return
			}

			mu.Lock()
			weather = w
			mu.Unlock()
		}()
	}

	wg.Wait()

	if len(seriesData) == 0 {
		seriesData = nil
	}
	return seriesData, weather
}

// seriesForIndex serves an auxiliary index series from cache when possible
// and fetches it under the per-call timeout otherwise.
func (s *Service) seriesForIndex(ctx context.Context, field FieldPoint, index string) (*TimeSeries, error) {
	key := SeriesKey(field.Lat, field.Lon, index)

	if series, ok := s.cache.GetSeries(ctx, key); ok {
		return series, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeouts.AuxPerCall)
	defer cancel()

	series, err := s.series.FetchSeries(callCtx, field, index)
	if err != nil {
		return nil, err
	}

	s.cache.PutSeries(ctx, key, series)
	return series, nil
}

// GetSeries serves the standalone historical/forecast series for a metric,
// cached under its own key.
func (s *Service) GetSeries(ctx context.Context, field FieldPoint, metric string) (*TimeSeries, error) {
	if _, ok := CanonicalMetric(metric); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}

	key := SeriesKey(field.Lat, field.Lon, metric)

	if series, ok := s.cache.GetSeries(ctx, key); ok {
		return series, nil
	}

	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeouts.Primary)
		defer cancel()

		series, err := s.series.FetchSeries(callCtx, field, metric)
		if err != nil {
			return nil, fmt.Errorf("series fetch for %s: %w", key, err)
		}

		s.cache.PutSeries(ctx, key, series)
		return series, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*TimeSeries), nil
}
