package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/agrowhq/field-analytics/internal/analytics"
)

// HeatmapClient implements analytics.HeatmapProvider against the remote
// heatmap/analysis service.
type HeatmapClient struct {
	name    string
	baseURL string
	client  *http.Client
	backoff backoffConfig
	circuit *gobreaker.CircuitBreaker
}

// NewHeatmapClient points the client at the service's base URL.
func NewHeatmapClient(client *http.Client, baseURL string) *HeatmapClient {
	return &HeatmapClient{
		name:    "heatmap",
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		backoff: defaultBackoff,
		circuit: newBreaker("heatmap"),
	}
}

func (c *HeatmapClient) Name() string {
	return c.name
}

// heatmapWireRequest matches the service's generate-heatmap contract.
type heatmapWireRequest struct {
	CenterLat         float64                `json:"center_lat"`
	CenterLon         float64                `json:"center_lon"`
	FieldSizeHectares float64                `json:"field_size_hectares"`
	Metric            string                 `json:"metric"`
	OverlayMode       bool                   `json:"overlay_mode"`
	TimeSeriesData    map[string]seriesWire  `json:"time_series_data,omitempty"`
	WeatherData       map[string]interface{} `json:"weather_data,omitempty"`
	ShowFieldBoundary bool                   `json:"show_field_boundary"`
}

type seriesWire struct {
	Historical []pointWire        `json:"historical"`
	Forecast   []pointWire        `json:"forecast"`
	Trend      string             `json:"trend,omitempty"`
	Stats      map[string]float64 `json:"stats,omitempty"`
}

type pointWire struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type heatmapWireResponse struct {
	Success          bool      `json:"success"`
	Metric           string    `json:"metric"`
	Mode             string    `json:"mode"`
	IndexUsed        string    `json:"index_used"`
	MeanValue        float64   `json:"mean_value"`
	MinValue         float64   `json:"min_value"`
	MaxValue         float64   `json:"max_value"`
	ImageBase64      string    `json:"image_base64"`
	ColorbarBase64   string    `json:"colorbar_base64"`
	BBox             []float64 `json:"bbox"`
	Timestamp        string    `json:"timestamp"`
	Level            string    `json:"level"`
	Analysis         string    `json:"analysis"`
	DetailedAnalysis string    `json:"detailed_analysis"`
	Recommendations  []string  `json:"recommendations"`
}

// FetchHeatmap posts the enriched tile request and normalizes the response.
func (c *HeatmapClient) FetchHeatmap(ctx context.Context, req analytics.HeatmapRequest) (*analytics.HeatmapResult, error) {
	wire := heatmapWireRequest{
		CenterLat:         req.Field.Lat,
		CenterLon:         req.Field.Lon,
		FieldSizeHectares: req.Field.SizeHectares,
		Metric:            req.Metric,
		OverlayMode:       req.OverlayMode,
		ShowFieldBoundary: !req.OverlayMode,
	}

	if len(req.SeriesData) > 0 {
		wire.TimeSeriesData = make(map[string]seriesWire, len(req.SeriesData))
		for index, series := range req.SeriesData {
			wire.TimeSeriesData[index] = toSeriesWire(series)
		}
	}
	if req.Weather != nil {
		wire.WeatherData = map[string]interface{}{
			"historical": req.Weather.Historical,
			"forecast":   req.Weather.Forecast,
		}
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}

	buildRequest := func() (*http.Request, error) {
		httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+"/generate-heatmap", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return httpReq, nil
	}

	resp, err := resilientDo(ctx, c.name, c.client, c.backoff, c.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload heatmapWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if !payload.Success {
		return nil, fmt.Errorf("heatmap service reported failure for metric %s", req.Metric)
	}

	return &analytics.HeatmapResult{
		Metric:           payload.Metric,
		Mode:             payload.Mode,
		IndexUsed:        payload.IndexUsed,
		MeanValue:        payload.MeanValue,
		MinValue:         payload.MinValue,
		MaxValue:         payload.MaxValue,
		ImageBase64:      payload.ImageBase64,
		ColorbarBase64:   payload.ColorbarBase64,
		BBox:             payload.BBox,
		Level:            payload.Level,
		Analysis:         payload.Analysis,
		DetailedAnalysis: payload.DetailedAnalysis,
		Recommendations:  payload.Recommendations,
		Timestamp:        payload.Timestamp,
	}, nil
}

func toSeriesWire(series *analytics.TimeSeries) seriesWire {
	w := seriesWire{
		Historical: make([]pointWire, 0, len(series.Historical)),
		Forecast:   make([]pointWire, 0, len(series.Forecast)),
		Trend:      series.Trend,
		Stats:      series.Stats,
	}
	for _, p := range series.Historical {
		w.Historical = append(w.Historical, pointWire{Date: p.Date, Value: p.Value})
	}
	for _, p := range series.Forecast {
		w.Forecast = append(w.Forecast, pointWire{Date: p.Date, Value: p.Value})
	}
	return w
}
