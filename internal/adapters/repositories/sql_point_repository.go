package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/platform/obs"
)

const dateLayout = "2006-01-02"

// SQL implementation of the PointRepository port over pickup_forecasts.
type SQLPointRepository struct{ DB *sqlx.DB }

func NewSQLPointRepository(db *sqlx.DB) *SQLPointRepository {
	return &SQLPointRepository{DB: db}
}

type forecastRow struct {
	PointID        int     `db:"point_id"`
	Name           string  `db:"name"`
	Street         string  `db:"street"`
	Lat            float64 `db:"lat"`
	Lon            float64 `db:"lon"`
	DemandKg       float64 `db:"demand_kg"`
	Priority       int     `db:"priority"`
	ServiceMinutes float64 `db:"service_minutes"`
	Confidence     string  `db:"confidence"`
}

// Return the forecast snapshot for day, ordered by point id.
func (s *SQLPointRepository) ListPickupPoints(ctx context.Context, day time.Time) (_ []domain.PickupPoint, err error) {
	defer obs.Time(ctx, "points.ListPickupPoints")(&err)

	if s.DB == nil {
		return nil, errors.New("sql point repository: DB is nil")
	}

	query := s.DB.Rebind(`
	SELECT
		point_id, name, street, lat, lon,
		demand_kg, priority, service_minutes, confidence
	FROM pickup_forecasts
	WHERE service_date = ?
	ORDER BY point_id;
	`)

	var rows []forecastRow
	if err := s.DB.SelectContext(ctx, &rows, query, day.Format(dateLayout)); err != nil {
		return nil, fmt.Errorf("list pickup points: query pickup_forecasts: %w", err)
	}

	points := make([]domain.PickupPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, domain.PickupPoint{
			ID:             r.PointID,
			Name:           r.Name,
			Street:         r.Street,
			Location:       domain.Coordinates{Lat: r.Lat, Lon: r.Lon},
			DemandKg:       r.DemandKg,
			Priority:       domain.Priority(r.Priority),
			ServiceMinutes: r.ServiceMinutes,
			Confidence:     r.Confidence,
		})
	}

	return points, nil
}
