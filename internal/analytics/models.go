package analytics

import (
	"fmt"
	"time"
)

// Pixel-wise vegetation/soil indices computed by the satellite pipeline.
const (
	IndexNDVI  = "NDVI"
	IndexNDRE  = "NDRE"
	IndexGNDVI = "GNDVI"
	IndexSMI   = "SMI"
	IndexSOMI  = "SOMI"
	IndexSFI   = "SFI"
	IndexSASI  = "SASI"
	IndexPRI   = "PRI"
)

// pixelwiseIndices are metrics rendered directly from index rasters.
var pixelwiseIndices = map[string]bool{
	IndexNDVI:  true,
	IndexNDRE:  true,
	IndexGNDVI: true,
	IndexSMI:   true,
	IndexSOMI:  true,
	IndexSFI:   true,
	IndexSASI:  true,
	IndexPRI:   true,
}

// metricAliases maps user-facing metric names to their underlying index.
var metricAliases = map[string]string{
	"soil_moisture":  IndexSMI,
	"greenness":      IndexNDVI,
	"nitrogen_level": IndexNDRE,
	"leaf_health":    IndexGNDVI,
}

// riskMetrics are derived metrics whose analysis text comes from the
// heatmap service's LLM pass; the value maps to the primary index used.
var riskMetrics = map[string]string{
	"pest_risk":       IndexNDVI,
	"disease_risk":    IndexNDVI,
	"nutrient_stress": IndexGNDVI,
	"stress_zones":    IndexNDVI,
	"heat_stress":     IndexNDVI,
}

// CanonicalMetric resolves aliases and reports whether the metric is known.
// Risk metrics pass through unchanged; the heatmap service picks the index.
func CanonicalMetric(metric string) (string, bool) {
	if pixelwiseIndices[metric] {
		return metric, true
	}
	if idx, ok := metricAliases[metric]; ok {
		return idx, true
	}
	if _, ok := riskMetrics[metric]; ok {
		return metric, true
	}
	return "", false
}

// Metrics returns all accepted metric names.
func Metrics() []string {
	out := make([]string, 0, len(pixelwiseIndices)+len(metricAliases)+len(riskMetrics))
	for m := range pixelwiseIndices {
		out = append(out, m)
	}
	for m := range metricAliases {
		out = append(out, m)
	}
	for m := range riskMetrics {
		out = append(out, m)
	}
	return out
}

// FieldPoint identifies a field by its center coordinates and size.
type FieldPoint struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	SizeHectares float64 `json:"sizeHectares"`
}

// String renders the field center for logs.
func (f FieldPoint) String() string {
	return fmt.Sprintf(keyPrecision+","+keyPrecision, f.Lat, f.Lon)
}

// keyPrecision fixes coordinate precision in derived cache keys.
// Six decimals is roughly 0.11 m at the equator, well below field scale,
// so float drift between repeated requests lands on the same key.
const keyPrecision = "%.6f"

// TileKey derives the canonical cache key for a (location, metric) tile.
func TileKey(lat, lon float64, metric string) string {
	return fmt.Sprintf("tile:"+keyPrecision+":"+keyPrecision+":%s", lat, lon, metric)
}

// SeriesKey derives the cache key for a (location, metric) time series.
func SeriesKey(lat, lon float64, metric string) string {
	return fmt.Sprintf("series:"+keyPrecision+":"+keyPrecision+":%s", lat, lon, metric)
}

// HeatmapResult is the analytic result for one tile as returned by the
// heatmap service and persisted in the cache. Immutable once written; a
// refresh produces a wholly new record under the same key.
type HeatmapResult struct {
	Metric           string    `json:"metric"`
	Mode             string    `json:"mode,omitempty"` // "pixelwise" or "llm"
	IndexUsed        string    `json:"indexUsed,omitempty"`
	MeanValue        float64   `json:"meanValue"`
	MinValue         float64   `json:"minValue"`
	MaxValue         float64   `json:"maxValue"`
	ImageBase64      string    `json:"imageBase64"`
	ColorbarBase64   string    `json:"colorbarBase64,omitempty"`
	BBox             []float64 `json:"bbox,omitempty"` // [swLon, swLat, neLon, neLat]
	Level            string    `json:"level,omitempty"`
	Analysis         string    `json:"analysis,omitempty"`
	DetailedAnalysis string    `json:"detailedAnalysis,omitempty"`
	Recommendations  []string  `json:"recommendations,omitempty"`
	Timestamp        string    `json:"timestamp,omitempty"` // provider-side generation time
	CachedAt         time.Time `json:"cachedAt"`
}

// TileSource tags where a served tile came from.
type TileSource string

const (
	SourceCache   TileSource = "cache"
	SourceNetwork TileSource = "network"
)

// TilePayload is what the API layer serves for one tile request.
type TilePayload struct {
	Result *HeatmapResult `json:"result"`
	Source TileSource     `json:"source"`
}

// SeriesPoint is one dated observation or prediction.
type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// TimeSeries holds historical observations and model forecast for one metric.
type TimeSeries struct {
	Metric     string             `json:"metric"`
	Historical []SeriesPoint      `json:"historical"`
	Forecast   []SeriesPoint      `json:"forecast"`
	Trend      string             `json:"trend,omitempty"`
	Stats      map[string]float64 `json:"stats,omitempty"`
	CachedAt   time.Time          `json:"cachedAt,omitempty"`
}

// WeatherDay is one day of aggregated weather for a field location.
type WeatherDay struct {
	Date               string  `json:"date"`
	TempMaxC           float64 `json:"tempMaxC"`
	TempMinC           float64 `json:"tempMinC"`
	PrecipitationMM    float64 `json:"precipitationMm"`
	HumidityPct        float64 `json:"humidityPercent"`
	WindMaxKMH         float64 `json:"windMaxKmh"`
	Evapotranspiration float64 `json:"et0"`
}

// WeatherSummary splits recent history from the forecast window.
type WeatherSummary struct {
	Historical []WeatherDay `json:"historical"`
	Forecast   []WeatherDay `json:"forecast"`
}

// HeatmapRequest is the enriched request sent to the heatmap provider.
type HeatmapRequest struct {
	Field       FieldPoint
	Metric      string
	OverlayMode bool

	// Best-effort enrichment; either may be nil/empty.
	SeriesData map[string]*TimeSeries
	Weather    *WeatherSummary
}
