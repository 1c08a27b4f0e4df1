package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	_ "modernc.org/sqlite"

	"github.com/agrowhq/field-analytics/internal/advisor"
	"github.com/agrowhq/field-analytics/internal/analytics"
	"github.com/agrowhq/field-analytics/internal/fields"
	"github.com/agrowhq/field-analytics/internal/store"
)

type stubHeatmap struct{ calls int32 }

func (s *stubHeatmap) Name() string { return "stub-heatmap" }

func (s *stubHeatmap) FetchHeatmap(_ context.Context, req analytics.HeatmapRequest) (*analytics.HeatmapResult, error) {
	atomic.AddInt32(&s.calls, 1)
	return &analytics.HeatmapResult{Metric: req.Metric, MeanValue: 0.65, ImageBase64: "aW1n"}, nil
}

type stubSeries struct{}

func (stubSeries) Name() string { return "stub-series" }

func (stubSeries) FetchSeries(_ context.Context, _ analytics.FieldPoint, metric string) (*analytics.TimeSeries, error) {
	return &analytics.TimeSeries{
		Metric:     metric,
		Historical: []analytics.SeriesPoint{{Date: "2026-08-01", Value: 0.6}},
		Forecast:   []analytics.SeriesPoint{{Date: "2026-09-01", Value: 0.62}},
	}, nil
}

func newTestApp(t *testing.T) (*fiber.App, *stubHeatmap) {
	t.Helper()

	heatmap := &stubHeatmap{}
	cache := analytics.NewTileCache(store.NewMemoryStore(), 0)
	tiles := analytics.NewService(cache, heatmap, stubSeries{}, nil, analytics.Timeouts{
		Primary:    2 * time.Second,
		AuxPerCall: 500 * time.Millisecond,
		AuxTotal:   time.Second,
	})

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	registry, err := fields.NewRegistry(db, "")
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": true, "message": err.Error()})
		},
	})
	RegisterRoutes(app, tiles, registry, advisor.New("", "", "gpt-4o-mini", tiles))
	return app, heatmap
}

func TestTilesValidation(t *testing.T) {
	app, _ := newTestApp(t)

	// Missing coordinates.
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/tiles?metric=NDVI", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing coords, got %d", resp.StatusCode)
	}

	// Out-of-range latitude.
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/tiles?lat=123&lon=91&metric=NDVI", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for out-of-range lat, got %d", resp.StatusCode)
	}

	// Unknown metric.
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/tiles?lat=26.1885&lon=91.6894&metric=bogus", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown metric, got %d", resp.StatusCode)
	}
}

func TestTilesFetchThenCache(t *testing.T) {
	app, heatmap := newTestApp(t)
	url := "/api/v1/tiles?lat=26.1885&lon=91.6894&sizeHa=10&metric=NDVI"

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, url, nil), 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload analytics.TilePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Source != analytics.SourceNetwork || payload.Result.MeanValue != 0.65 {
		t.Errorf("unexpected payload: %+v", payload)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, url, nil), 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Source != analytics.SourceCache {
		t.Errorf("expected cache source on second request, got %s", payload.Source)
	}
	if got := atomic.LoadInt32(&heatmap.calls); got != 1 {
		t.Errorf("expected 1 upstream call, got %d", got)
	}
}

func TestTileStatusEndpoint(t *testing.T) {
	app, _ := newTestApp(t)
	statusURL := "/api/v1/tiles/status?lat=26.1885&lon=91.6894&metric=NDVI"

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, statusURL, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		State analytics.TileState `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.State != analytics.StateIdle {
		t.Errorf("expected idle before any request, got %s", body.State)
	}

	if _, err := app.Test(httptest.NewRequest(http.MethodGet,
		"/api/v1/tiles?lat=26.1885&lon=91.6894&metric=NDVI", nil), 5000); err != nil {
		t.Fatalf("tile fetch: %v", err)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, statusURL, nil))
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.State != analytics.StateFetched {
		t.Errorf("expected fetched after request, got %s", body.State)
	}
}

func TestTimeSeriesEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet,
		"/api/v1/timeseries?lat=26.1885&lon=91.6894&metric=NDVI", nil), 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var series analytics.TimeSeries
	if err := json.NewDecoder(resp.Body).Decode(&series); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if series.Metric != "NDVI" || len(series.Historical) != 1 {
		t.Errorf("unexpected series: %+v", series)
	}
}

func TestFieldsLifecycle(t *testing.T) {
	app, _ := newTestApp(t)

	body := strings.NewReader(`{"name":"North paddy","lat":26.1885,"lon":91.6894,"sizeHectares":10}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/fields", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var created fields.Field
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated field id")
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/fields/"+created.ID, nil))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 on get, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/fields/"+created.ID, nil))
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 on delete, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/fields/"+created.ID, nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestAdvisorUnconfigured(t *testing.T) {
	app, _ := newTestApp(t)

	body := strings.NewReader(`{"lat":26.1885,"lon":91.6894,"question":"Should I irrigate?"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/advisor/chat", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when advisor is unconfigured, got %d", resp.StatusCode)
	}
}
