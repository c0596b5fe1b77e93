package services

import (
	"slices"

	"waste-dispatch-service/internal/domain"
)

type rankedPoint struct {
	point domain.PickupPoint
	km    float64
}

// nearestFirst orders points by straight-line distance from origin.
// Ties go to the lower point id so the ordering is deterministic and can be
// re-derived later from the same inputs.
func nearestFirst(origin domain.Coordinates, points []domain.PickupPoint) []rankedPoint {
	ranked := make([]rankedPoint, 0, len(points))
	for _, p := range points {
		ranked = append(ranked, rankedPoint{point: p, km: domain.HaversineKm(origin, p.Location)})
	}

	slices.SortFunc(ranked, func(a, b rankedPoint) int {
		if a.km < b.km {
			return -1
		}
		if a.km > b.km {
			return 1
		}
		return a.point.ID - b.point.ID
	})
	return ranked
}

func feasibleFor(v domain.Vehicle, points []domain.PickupPoint) []domain.PickupPoint {
	out := make([]domain.PickupPoint, 0, len(points))
	for _, p := range points {
		if v.CanServe(p) {
			out = append(out, p)
		}
	}
	return out
}

func depotDecision(v domain.Vehicle, depot domain.Coordinates, rationale string) domain.Decision {
	return domain.Decision{
		VehicleID:  v.ID,
		TargetID:   domain.DepotTarget,
		Rationale:  rationale,
		DistanceKm: domain.HaversineKm(v.Position, depot),
	}
}
