package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/platform/obs"
)

// SQLRouteCache is a SQL-backed cache of route lookups keyed by the
// oracle's rounded coordinate key. Queries are written with '?' and rebound
// per driver, so the same cache serves Postgres (pgx) and SQLite.
type SQLRouteCache struct {
	DB *sqlx.DB
}

func NewSQLRouteCache(db *sqlx.DB) *SQLRouteCache {
	return &SQLRouteCache{DB: db}
}

type routeRow struct {
	DistanceKm  float64 `db:"distance_km"`
	DurationMin float64 `db:"duration_min"`
	Geometry    string  `db:"geometry"`
}

// Fetch one cached route.
func (s *SQLRouteCache) GetRoute(ctx context.Context, key string) (_ domain.RouteResult, _ bool, err error) {
	defer obs.Time(ctx, "route.cache.Get")(&err)

	if s.DB == nil {
		return domain.RouteResult{}, false, errors.New("route cache: db is nil")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return domain.RouteResult{}, false, errors.New("get route cache: key must not be empty")
	}

	q := s.DB.Rebind(`
	SELECT distance_km, duration_min, geometry
	FROM route_cache
	WHERE route_key = ?;
	`)

	var row routeRow
	if err := s.DB.GetContext(ctx, &row, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RouteResult{}, false, nil
		}
		return domain.RouteResult{}, false, fmt.Errorf("get route cache: query route_cache table: %w", err)
	}

	var geometry []domain.Coordinates
	if err := json.Unmarshal([]byte(row.Geometry), &geometry); err != nil {
		return domain.RouteResult{}, false, fmt.Errorf("get route cache: decode geometry for %q: %w", key, err)
	}

	return domain.RouteResult{
		Geometry:    geometry,
		DistanceKm:  row.DistanceKm,
		DurationMin: row.DurationMin,
	}, true, nil
}

// Store one route. Existing rows are overwritten.
func (s *SQLRouteCache) PutRoute(ctx context.Context, key string, r domain.RouteResult) (err error) {
	defer obs.Time(ctx, "route.cache.Put")(&err)

	if s.DB == nil {
		return errors.New("route cache: db is nil")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("insert route cache: key must not be empty")
	}

	geometry, err := json.Marshal(r.Geometry)
	if err != nil {
		return fmt.Errorf("insert route cache: encode geometry: %w", err)
	}

	q := s.DB.Rebind(`
	INSERT INTO route_cache (route_key, distance_km, duration_min, geometry)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (route_key) DO UPDATE
	SET distance_km = EXCLUDED.distance_km,
		duration_min = EXCLUDED.duration_min,
		geometry = EXCLUDED.geometry;
	`)

	if _, err := s.DB.ExecContext(ctx, q, key, r.DistanceKm, r.DurationMin, string(geometry)); err != nil {
		return fmt.Errorf("insert route cache key=%q: %w", key, err)
	}

	return nil
}
