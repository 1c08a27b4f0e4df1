package analytics

import (
	"context"
)

// HeatmapProvider abstracts the remote heatmap/analysis service.
type HeatmapProvider interface {
	Name() string
	FetchHeatmap(ctx context.Context, req HeatmapRequest) (*HeatmapResult, error)
}

// TimeSeriesProvider abstracts the remote historical/forecast series service.
type TimeSeriesProvider interface {
	Name() string
	FetchSeries(ctx context.Context, field FieldPoint, metric string) (*TimeSeries, error)
}

// WeatherProvider abstracts the weather enrichment source.
type WeatherProvider interface {
	Name() string
	FetchWeather(ctx context.Context, lat, lon float64) (*WeatherSummary, error)
}

// Store is the contract any cache backend (sqlite, memory, valkey) must
// satisfy. Get returns store.ErrNotFound when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
