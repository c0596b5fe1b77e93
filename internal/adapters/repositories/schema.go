package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Initialize the database schema. The DDL is portable between SQLite
// and Postgres.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createForecastsQuery := `
	CREATE TABLE IF NOT EXISTS pickup_forecasts (
		point_id INTEGER NOT NULL,
		service_date TEXT NOT NULL,
		name TEXT NOT NULL,
		street TEXT NOT NULL DEFAULT '',
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		demand_kg REAL NOT NULL,
		priority INTEGER NOT NULL DEFAULT 1,
		service_minutes REAL NOT NULL DEFAULT 10,
		confidence TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (point_id, service_date)
	);
	`

	createRouteCacheQuery := `
	CREATE TABLE IF NOT EXISTS route_cache (
		route_key TEXT PRIMARY KEY,
		distance_km REAL NOT NULL,
		duration_min REAL NOT NULL,
		geometry TEXT NOT NULL
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_pickup_forecasts_date
	ON pickup_forecasts(service_date);
	`

	statements := []string{
		createForecastsQuery,
		createRouteCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// ForecastSeed is one row of the forecasting model's daily output.
type ForecastSeed struct {
	PointID        int     `json:"point_id"`
	Date           string  `json:"date"`
	Name           string  `json:"name"`
	Street         string  `json:"street"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	DemandKg       float64 `json:"predicted_demand_kg"`
	Priority       int     `json:"priority"`
	ServiceMinutes float64 `json:"service_minutes"`
	Confidence     string  `json:"confidence"`
}

// Populate pickup_forecasts from a JSON array of ForecastSeed.
func SeedFromJSON(ctx context.Context, db *sqlx.DB, jsonPath string) (int, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("seed forecasts: read %q: %w", jsonPath, err)
	}

	var data []ForecastSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return 0, fmt.Errorf("seed forecasts: parse json: %w", err)
	}

	rows := make([]ForecastSeed, 0, len(data))
	for i, item := range data {
		if item.PointID <= 0 {
			return 0, fmt.Errorf("seed forecasts: invalid point_id at index %d: %d", i+1, item.PointID)
		}
		if _, err := time.Parse(dateLayout, item.Date); err != nil {
			return 0, fmt.Errorf("seed forecasts: item %d: date %q: %w", i+1, item.Date, err)
		}
		if item.DemandKg < 0 {
			return 0, fmt.Errorf("seed forecasts: item %d: negative demand %f", i+1, item.DemandKg)
		}
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			item.Name = fmt.Sprintf("point-%d", item.PointID)
		}
		if item.Priority == 0 {
			item.Priority = 1
		}
		if item.ServiceMinutes == 0 {
			item.ServiceMinutes = 10
		}
		rows = append(rows, item)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("seed forecasts: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := tx.Rebind(`
	INSERT INTO pickup_forecasts (
		point_id, service_date, name, street, lat, lon,
		demand_kg, priority, service_minutes, confidence
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (point_id, service_date) DO UPDATE
	SET name = EXCLUDED.name,
		street = EXCLUDED.street,
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon,
		demand_kg = EXCLUDED.demand_kg,
		priority = EXCLUDED.priority,
		service_minutes = EXCLUDED.service_minutes,
		confidence = EXCLUDED.confidence;
	`)
	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("seed forecasts: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range rows {
		if _, err := stmt.ExecContext(ctx,
			p.PointID, p.Date, p.Name, strings.TrimSpace(p.Street), p.Lat, p.Lon,
			p.DemandKg, p.Priority, p.ServiceMinutes, p.Confidence,
		); err != nil {
			return 0, fmt.Errorf("seed forecasts: insert point_id=%d date=%s: %w", p.PointID, p.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("seed forecasts: commit tx: %w", err)
	}

	return len(rows), nil
}
