package distance

import (
	"fmt"

	"waste-dispatch-service/internal/domain"
)

// toRoute converts provider units (meters, seconds, [lon, lat]) into the
// domain's (km, minutes, lat/lon) representation.
func toRoute(coords [][]float64, meters, seconds float64) (domain.RouteResult, error) {
	if len(coords) < 2 {
		return domain.RouteResult{}, fmt.Errorf("geometry has %d points, want at least 2", len(coords))
	}
	if meters < 0 || seconds < 0 {
		return domain.RouteResult{}, fmt.Errorf("negative metrics: distance=%f duration=%f", meters, seconds)
	}

	geometry := make([]domain.Coordinates, 0, len(coords))
	for i, c := range coords {
		if len(c) < 2 {
			return domain.RouteResult{}, fmt.Errorf("invalid coordinate at index %d", i)
		}
		geometry = append(geometry, domain.Coordinates{Lon: c[0], Lat: c[1]})
	}

	return domain.RouteResult{
		Geometry:    geometry,
		DistanceKm:  meters / 1000,
		DurationMin: seconds / 60,
	}, nil
}
