package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenMeteoClientSplitsHistoryAndForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("past_days") != "7" || q.Get("forecast_days") != "7" {
			t.Errorf("unexpected window params: %v", q)
		}

		// 14 days total: 7 past + 7 forecast.
		days := make([]string, 14)
		temps := make([]float64, 14)
		for i := range days {
			days[i] = fmt.Sprintf("2026-08-%02d", i+12)
			temps[i] = 25 + float64(i)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"daily": map[string]interface{}{
				"time":                       days,
				"temperature_2m_max":         temps,
				"temperature_2m_min":         temps,
				"precipitation_sum":          temps,
				"relative_humidity_2m_mean":  temps,
				"wind_speed_10m_max":         temps,
				"et0_fao_evapotranspiration": temps,
			},
		})
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.Client())
	client.baseURL = srv.URL

	summary, err := client.FetchWeather(context.Background(), 26.1885, 91.6894)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(summary.Historical) != 7 {
		t.Errorf("expected 7 historical days, got %d", len(summary.Historical))
	}
	if len(summary.Forecast) != 7 {
		t.Errorf("expected 7 forecast days, got %d", len(summary.Forecast))
	}
	if summary.Historical[0].TempMaxC != 25 {
		t.Errorf("unexpected first historical temp: %f", summary.Historical[0].TempMaxC)
	}
}

func TestOpenMeteoClientEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"daily": map[string]interface{}{}})
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.Client())
	client.baseURL = srv.URL

	if _, err := client.FetchWeather(context.Background(), 1, 2); err == nil {
		t.Fatal("expected error on empty daily payload")
	}
}
