package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "field_analytics",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "field_analytics",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 15, 30, 60},
	}, []string{"method", "path"})

	// CacheHits counts cache hits per operation (tile, series).
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "field_analytics",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	// CacheMisses counts cache misses per operation.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "field_analytics",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// CacheErrors counts soft storage failures that fell through to the network.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "field_analytics",
		Subsystem: "cache",
		Name:      "errors_total",
		Help:      "Total cache storage errors (soft failures)",
	}, []string{"operation"})

	// ProviderErrors counts failed outbound provider calls.
	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "field_analytics",
		Subsystem: "provider",
		Name:      "errors_total",
		Help:      "Total provider fetch errors",
	}, []string{"provider"})

	// ProviderFetchDuration observes outbound provider call latency.
	ProviderFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "field_analytics",
		Subsystem: "provider",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of provider fetches",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"provider"})
)

// Middleware records request count and latency per route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()
		status := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		return err
	}
}

// Handler serves the Prometheus scrape endpoint through Fiber.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
