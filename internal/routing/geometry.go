package routing

import (
	"fmt"
	"math"

	"waste-dispatch-service/internal/domain"
)

const (
	// identicalEps is the per-axis tolerance, in degrees, under which two
	// coordinates are treated as the same place (roughly 11 m).
	identicalEps = 1e-4

	simplifyTolerance = 1e-4

	// fallbackMinPerKm assumes 30 km/h through town.
	fallbackMinPerKm = 2.0
)

// Key is the cache key for a directed pair, rounded to 6 decimals.
func Key(from, to domain.Coordinates) string {
	return fmt.Sprintf("%.6f,%.6f-%.6f,%.6f", from.Lat, from.Lon, to.Lat, to.Lon)
}

// simplify drops points within simplifyTolerance (Manhattan, degrees) of
// the last kept point. The first and last points are always kept.
func simplify(geometry []domain.Coordinates) []domain.Coordinates {
	if len(geometry) <= 2 {
		return geometry
	}

	out := make([]domain.Coordinates, 0, len(geometry))
	out = append(out, geometry[0])
	last := geometry[0]
	for _, c := range geometry[1 : len(geometry)-1] {
		if math.Abs(c.Lat-last.Lat)+math.Abs(c.Lon-last.Lon) > simplifyTolerance {
			out = append(out, c)
			last = c
		}
	}
	return append(out, geometry[len(geometry)-1])
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// straightLine is the great-circle estimate used whenever the provider
// cannot be used.
func straightLine(from, to domain.Coordinates) domain.RouteResult {
	km := round(domain.HaversineKm(from, to), 3)
	return domain.RouteResult{
		Geometry:    []domain.Coordinates{from, to},
		DistanceKm:  km,
		DurationMin: round(km*fallbackMinPerKm, 2),
		Fallback:    true,
	}
}

func trivial(at domain.Coordinates) domain.RouteResult {
	return domain.RouteResult{Geometry: []domain.Coordinates{at}}
}

// normalize validates and tidies a provider result.
func normalize(r domain.RouteResult) (domain.RouteResult, bool) {
	if len(r.Geometry) == 0 ||
		math.IsNaN(r.DistanceKm) || math.IsInf(r.DistanceKm, 0) || r.DistanceKm < 0 ||
		math.IsNaN(r.DurationMin) || math.IsInf(r.DurationMin, 0) || r.DurationMin < 0 {
		return domain.RouteResult{}, false
	}
	return domain.RouteResult{
		Geometry:    simplify(r.Geometry),
		DistanceKm:  round(r.DistanceKm, 2),
		DurationMin: round(r.DurationMin, 2),
	}, true
}
