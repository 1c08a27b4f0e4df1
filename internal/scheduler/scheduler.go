package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/agrowhq/field-analytics/internal/analytics"
	"github.com/agrowhq/field-analytics/internal/fields"
)

// Scheduler periodically warms the tile cache for registered fields so the
// first app request of the day is served from cache.
type Scheduler struct {
	scheduler *gocron.Scheduler
	tiles     *analytics.Service
	registry  *fields.Registry
	metrics   []string
	interval  time.Duration
}

// New creates a prefetch scheduler over the given metric set.
func New(registry *fields.Registry, tiles *analytics.Service, metrics []string, interval time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		tiles:     tiles,
		registry:  registry,
		metrics:   metrics,
		interval:  interval,
	}
}

// Start schedules the periodic prefetch job. A non-positive interval
// disables prefetching entirely.
func (s *Scheduler) Start() error {
	if s.interval <= 0 || len(s.metrics) == 0 {
		log.Println("scheduler: prefetch disabled")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 1
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.runOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	registered, err := s.registry.List(ctx)
	if err != nil {
		log.Printf("scheduler: listing fields failed: %v", err)
		return
	}
	if len(registered) == 0 {
		return
	}

	log.Printf("scheduler: prefetching %d fields x %d metrics", len(registered), len(s.metrics))

	var wg sync.WaitGroup
	for _, f := range registered {
		point := analytics.FieldPoint{Lat: f.Lat, Lon: f.Lon, SizeHectares: f.SizeHectares}
		for _, metric := range s.metrics {
			metric := metric
			wg.Add(1)
			go func() {
				defer wg.Done()

				// Refresh rather than GetTile so stale records are replaced
				// even without an explicit max age.
				if _, err := s.tiles.Refresh(ctx, point, metric); err != nil {
					log.Printf("scheduler: prefetch failed for %s %s: %v", point, metric, err)
				}
			}()
		}
		wg.Wait() // one field at a time keeps provider load bounded
	}

	log.Println("scheduler: prefetch job completed")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
