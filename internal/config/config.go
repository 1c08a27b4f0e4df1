package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds every runtime knob, loaded from the environment.
type AppConfig struct {
	// External analytics services.
	HeatmapServiceURL    string
	TimeSeriesServiceURL string

	// Outbound HTTP client timeout (transport-level; orchestration
	// timeouts are separate).
	HTTPTimeout time.Duration

	// Tile orchestration timeouts.
	PrimaryFetchTimeout time.Duration
	AuxFetchTimeout     time.Duration
	AuxTotalTimeout     time.Duration

	// Cache backend: "sqlite" (default), "memory", or "valkey".
	CacheBackend string
	CachePath    string
	ValkeyAddr   string
	// CacheMaxAge of zero keeps records until explicit refresh.
	CacheMaxAge time.Duration

	// Prefetch job: zero interval disables it.
	PrefetchInterval time.Duration
	PrefetchMetrics  []string

	// Advisor (OpenAI-compatible chat completion).
	AdvisorAPIKey  string
	AdvisorBaseURL string
	AdvisorModel   string

	// Google geocoding for address-based field registration.
	GeocoderAPIKey string

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.HeatmapServiceURL = getenvDefault("HEATMAP_SERVICE_URL", "http://localhost:8001")
	cfg.TimeSeriesServiceURL = getenvDefault("TIMESERIES_SERVICE_URL", "http://localhost:8002")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "2m"); err != nil {
		return nil, err
	}
	if cfg.PrimaryFetchTimeout, err = getenvDuration("PRIMARY_FETCH_TIMEOUT", "90s"); err != nil {
		return nil, err
	}
	if cfg.AuxFetchTimeout, err = getenvDuration("AUX_FETCH_TIMEOUT", "20s"); err != nil {
		return nil, err
	}
	if cfg.AuxTotalTimeout, err = getenvDuration("AUX_TOTAL_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	cfg.CacheBackend = getenvDefault("CACHE_BACKEND", "sqlite")
	switch cfg.CacheBackend {
	case "sqlite", "memory", "valkey":
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q (want sqlite, memory, or valkey)", cfg.CacheBackend)
	}
	cfg.CachePath = getenvDefault("CACHE_PATH", "field-analytics.db")
	cfg.ValkeyAddr = getenvDefault("VALKEY_ADDR", "localhost:6379")
	if cfg.CacheMaxAge, err = getenvDuration("CACHE_MAX_AGE", "0s"); err != nil {
		return nil, err
	}

	if cfg.PrefetchInterval, err = getenvDuration("PREFETCH_INTERVAL", "0s"); err != nil {
		return nil, err
	}
	cfg.PrefetchMetrics = splitCSV(getenvDefault("PREFETCH_METRICS", "NDVI,SMI"))

	cfg.AdvisorAPIKey = os.Getenv("ADVISOR_API_KEY")
	cfg.AdvisorBaseURL = os.Getenv("ADVISOR_BASE_URL")
	cfg.AdvisorModel = getenvDefault("ADVISOR_MODEL", "gpt-4o-mini")

	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
