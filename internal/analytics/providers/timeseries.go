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

// TimeSeriesClient implements analytics.TimeSeriesProvider against the
// remote historical/forecast prediction service.
type TimeSeriesClient struct {
	name    string
	baseURL string
	client  *http.Client
	backoff backoffConfig
	circuit *gobreaker.CircuitBreaker
}

// NewTimeSeriesClient points the client at the service's base URL.
func NewTimeSeriesClient(client *http.Client, baseURL string) *TimeSeriesClient {
	return &TimeSeriesClient{
		name:    "timeseries",
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		backoff: defaultBackoff,
		circuit: newBreaker("timeseries"),
	}
}

func (c *TimeSeriesClient) Name() string {
	return c.name
}

type seriesWireRequest struct {
	CenterLat         float64 `json:"center_lat"`
	CenterLon         float64 `json:"center_lon"`
	FieldSizeHectares float64 `json:"field_size_hectares"`
	Metric            string  `json:"metric"`
}

type seriesWireResponse struct {
	Success    bool               `json:"success"`
	Metric     string             `json:"metric"`
	Historical []pointWire        `json:"historical"`
	Forecast   []pointWire        `json:"forecast"`
	Trend      string             `json:"trend"`
	Stats      map[string]float64 `json:"stats"`
}

// FetchSeries requests the historical + forecast point series for a metric.
func (c *TimeSeriesClient) FetchSeries(ctx context.Context, field analytics.FieldPoint, metric string) (*analytics.TimeSeries, error) {
	body, err := json.Marshal(seriesWireRequest{
		CenterLat:         field.Lat,
		CenterLon:         field.Lon,
		FieldSizeHectares: field.SizeHectares,
		Metric:            metric,
	})
	if err != nil {
		return nil, err
	}

	buildRequest := func() (*http.Request, error) {
		httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+"/timeseries", bytes.NewReader(body))
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

	var payload seriesWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if !payload.Success {
		return nil, fmt.Errorf("timeseries service reported failure for metric %s", metric)
	}

	series := &analytics.TimeSeries{
		Metric:     payload.Metric,
		Historical: make([]analytics.SeriesPoint, 0, len(payload.Historical)),
		Forecast:   make([]analytics.SeriesPoint, 0, len(payload.Forecast)),
		Trend:      payload.Trend,
		Stats:      payload.Stats,
	}
	for _, p := range payload.Historical {
		series.Historical = append(series.Historical, analytics.SeriesPoint{Date: p.Date, Value: p.Value})
	}
	for _, p := range payload.Forecast {
		series.Forecast = append(series.Forecast, analytics.SeriesPoint{Date: p.Date, Value: p.Value})
	}
	return series, nil
}
