package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/agrowhq/field-analytics/internal/analytics"
)

// openMeteoPastDays controls the historical window; the same number of
// forecast days is requested so the summary splits evenly.
const openMeteoPastDays = 7

// OpenMeteoClient implements analytics.WeatherProvider using the free
// Open-Meteo daily API. No API key is required.
type OpenMeteoClient struct {
	name    string
	baseURL string
	client  *http.Client
	backoff backoffConfig
	circuit *gobreaker.CircuitBreaker
}

// NewOpenMeteoClient builds the weather enrichment client.
func NewOpenMeteoClient(client *http.Client) *OpenMeteoClient {
	return &OpenMeteoClient{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		client:  client,
		backoff: defaultBackoff,
		circuit: newBreaker("openmeteo"),
	}
}

func (c *OpenMeteoClient) Name() string {
	return c.name
}

// FetchWeather returns a 7-day historical + 7-day forecast daily summary
// for the given coordinates.
func (c *OpenMeteoClient) FetchWeather(ctx context.Context, lat, lon float64) (*analytics.WeatherSummary, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", lat))
		values.Set("longitude", fmt.Sprintf("%f", lon))
		values.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,"+
			"relative_humidity_2m_mean,wind_speed_10m_max,et0_fao_evapotranspiration")
		values.Set("past_days", fmt.Sprintf("%d", openMeteoPastDays))
		values.Set("forecast_days", fmt.Sprintf("%d", openMeteoPastDays))
		values.Set("timezone", "auto")

		return http.NewRequest(http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := resilientDo(ctx, c.name, c.client, c.backoff, c.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Daily struct {
			Time               []string  `json:"time"`
			TempMax            []float64 `json:"temperature_2m_max"`
			TempMin            []float64 `json:"temperature_2m_min"`
			Precipitation      []float64 `json:"precipitation_sum"`
			Humidity           []float64 `json:"relative_humidity_2m_mean"`
			WindMax            []float64 `json:"wind_speed_10m_max"`
			Evapotranspiration []float64 `json:"et0_fao_evapotranspiration"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	daily := payload.Daily
	if len(daily.Time) == 0 {
		return nil, fmt.Errorf("openmeteo returned no daily data")
	}

	days := make([]analytics.WeatherDay, 0, len(daily.Time))
	for i, date := range daily.Time {
		day := analytics.WeatherDay{Date: date}
		if i < len(daily.TempMax) {
			day.TempMaxC = daily.TempMax[i]
		}
		if i < len(daily.TempMin) {
			day.TempMinC = daily.TempMin[i]
		}
		if i < len(daily.Precipitation) {
			day.PrecipitationMM = daily.Precipitation[i]
		}
		if i < len(daily.Humidity) {
			day.HumidityPct = daily.Humidity[i]
		}
		if i < len(daily.WindMax) {
			day.WindMaxKMH = daily.WindMax[i]
		}
		if i < len(daily.Evapotranspiration) {
			day.Evapotranspiration = daily.Evapotranspiration[i]
		}
		days = append(days, day)
	}

	split := openMeteoPastDays
	if split > len(days) {
		split = len(days)
	}

	return &analytics.WeatherSummary{
		Historical: days[:split],
		Forecast:   days[split:],
	}, nil
}
