package ports

import (
	"context"
	"time"

	"waste-dispatch-service/internal/domain"
)

// Port: a boundary for reading the forecast snapshot for a service day.
type PointRepository interface {
	// Retrieve pickup points with predicted demand for the given date.
	ListPickupPoints(ctx context.Context, day time.Time) ([]domain.PickupPoint, error)
}
