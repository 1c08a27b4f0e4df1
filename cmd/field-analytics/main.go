package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/agrowhq/field-analytics/internal/advisor"
	"github.com/agrowhq/field-analytics/internal/analytics"
	"github.com/agrowhq/field-analytics/internal/analytics/providers"
	httpapi "github.com/agrowhq/field-analytics/internal/api/http"
	"github.com/agrowhq/field-analytics/internal/config"
	"github.com/agrowhq/field-analytics/internal/fields"
	"github.com/agrowhq/field-analytics/internal/metrics"
	"github.com/agrowhq/field-analytics/internal/scheduler"
	"github.com/agrowhq/field-analytics/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// The SQLite file always exists: it persists the field registry, and is
	// also the default cache backend.
	sqliteStore, err := store.OpenSQLite(cfg.CachePath)
	if err != nil {
		log.Fatalf("failed to open sqlite at %s: %v", cfg.CachePath, err)
	}
	defer sqliteStore.Close()

	var backend analytics.Store
	switch cfg.CacheBackend {
	case "memory":
		backend = store.NewMemoryStore()
	case "valkey":
		vk, err := store.OpenValkey(cfg.ValkeyAddr)
		if err != nil {
			log.Fatalf("failed to connect to valkey at %s: %v", cfg.ValkeyAddr, err)
		}
		defer vk.Close()
		backend = vk
	default:
		backend = sqliteStore
	}

	cache := analytics.NewTileCache(backend, cfg.CacheMaxAge)

	heatmap := providers.NewHeatmapClient(httpClient, cfg.HeatmapServiceURL)
	series := providers.NewTimeSeriesClient(httpClient, cfg.TimeSeriesServiceURL)
	weather := providers.NewOpenMeteoClient(httpClient)

	tiles := analytics.NewService(cache, heatmap, series, weather, analytics.Timeouts{
		Primary:    cfg.PrimaryFetchTimeout,
		AuxPerCall: cfg.AuxFetchTimeout,
		AuxTotal:   cfg.AuxTotalTimeout,
	})

	registry, err := fields.NewRegistry(sqliteStore.DB(), cfg.GeocoderAPIKey)
	if err != nil {
		log.Fatalf("failed to init field registry: %v", err)
	}

	adv := advisor.New(cfg.AdvisorAPIKey, cfg.AdvisorBaseURL, cfg.AdvisorModel, tiles)

	sched := scheduler.New(registry, tiles, cfg.PrefetchMetrics, cfg.PrefetchInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "field-analytics",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Tile generation can take minutes on a cold cache.
		WriteTimeout: cfg.PrimaryFetchTimeout + cfg.AuxTotalTimeout + 10*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(metrics.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "field-analytics",
		})
	})
	app.Get("/metrics", metrics.Handler())

	httpapi.RegisterRoutes(app, tiles, registry, adv)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
