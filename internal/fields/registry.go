package fields

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kelvins/geocoder"
)

// ErrNotFound is returned when no field exists for a given id.
var ErrNotFound = errors.New("field not found")

// Field is a registered plot tracked by the gateway. Registered fields
// drive the scheduled cache prefetch.
type Field struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	SizeHectares float64   `json:"sizeHectares"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Address locates a field by street address when coordinates are unknown.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	Country string `json:"country"`
}

// Registry persists fields in SQLite and resolves addresses to coordinates.
type Registry struct {
	db *sql.DB

	// geocode is swappable for tests; defaults to the Google geocoding API.
	geocode func(Address) (lat, lon float64, err error)
}

// NewRegistry ensures the schema and configures geocoding. An empty API key
// leaves address-based registration disabled; coordinate-based registration
// still works.
func NewRegistry(db *sql.DB, geocoderAPIKey string) (*Registry, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS fields (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		lat        REAL NOT NULL,
		lon        REAL NOT NULL,
		size_ha    REAL NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create fields table: %w", err)
	}

	r := &Registry{db: db}
	if geocoderAPIKey != "" {
		geocoder.ApiKey = geocoderAPIKey
		r.geocode = googleGeocode
	}
	return r, nil
}

func googleGeocode(addr Address) (float64, float64, error) {
	loc, err := geocoder.Geocoding(geocoder.Address{
		Street:  addr.Street,
		City:    addr.City,
		State:   addr.State,
		Country: addr.Country,
	})
	if err != nil {
		return 0, 0, err
	}
	return loc.Latitude, loc.Longitude, nil
}

// Create registers a field. When lat/lon are both zero and an address is
// given, the address is geocoded.
func (r *Registry) Create(ctx context.Context, name string, lat, lon, sizeHa float64, addr *Address) (*Field, error) {
	if lat == 0 && lon == 0 && addr != nil {
		if r.geocode == nil {
			return nil, fmt.Errorf("geocoding is not configured; provide coordinates")
		}
		var err error
		lat, lon, err = r.geocode(*addr)
		if err != nil {
			return nil, fmt.Errorf("geocode address: %w", err)
		}
	}

	f := &Field{
		ID:           uuid.NewString(),
		Name:         name,
		Lat:          lat,
		Lon:          lon,
		SizeHectares: sizeHa,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO fields (id, name, lat, lon, size_ha, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		f.ID, f.Name, f.Lat, f.Lon, f.SizeHectares, f.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert field: %w", err)
	}
	return f, nil
}

// Get returns one field by id.
func (r *Registry) Get(ctx context.Context, id string) (*Field, error) {
	var f Field
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, lat, lon, size_ha, created_at FROM fields WHERE id = ?", id,
	).Scan(&f.ID, &f.Name, &f.Lat, &f.Lon, &f.SizeHectares, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// List returns all registered fields, newest first.
func (r *Registry) List(ctx context.Context) ([]Field, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, lat, lon, size_ha, created_at FROM fields ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Field
	for rows.Next() {
		var f Field
		if err := rows.Scan(&f.ID, &f.Name, &f.Lat, &f.Lon, &f.SizeHectares, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Delete removes a field. Deleting an absent id is a no-op.
func (r *Registry) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM fields WHERE id = ?", id)
	return err
}
