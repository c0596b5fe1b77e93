package ports

import (
	"context"

	"waste-dispatch-service/internal/domain"
)

// Contract for a street-routing service.
// Implementations return (lat, lon) ordered geometry with km and minutes.
// Any failure is returned as an error; callers decide how to degrade.
type RouteProvider interface {
	Route(ctx context.Context, from, to domain.Coordinates) (domain.RouteResult, error)
}
