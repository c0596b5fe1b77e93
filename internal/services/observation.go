package services

import (
	"math"

	"waste-dispatch-service/internal/domain"
)

const (
	// ObservationSlots is the number of nearest points described in an observation.
	ObservationSlots = 10

	// positionScaleDeg maps depot-relative offsets into [-1, 1] (about 11 km).
	positionScaleDeg = 0.1
	slotFeatures     = 4
)

// ObservationSize is the length of the vector built by BuildObservation
// for k slots.
func ObservationSize(k int) int { return 3 + slotFeatures*k }

// BuildObservation encodes the vehicle and its k nearest pending points
// for a trained policy:
//
//	[dLat, dLon, load] then per slot [distance, demand, priority, occupied]
//
// Offsets are relative to the depot, distances are straight-line and
// scaled by maxDistanceKm, demand by vehicle capacity. Empty slots are
// padded with distance 1 and zeros. The returned slots are the points in
// the same order, so action k maps back to slots[k-1].
func BuildObservation(
	v domain.Vehicle,
	depot domain.Coordinates,
	pending []domain.PickupPoint,
	k int,
	maxDistanceKm float64,
) ([]float32, []domain.PickupPoint) {
	obs := make([]float32, ObservationSize(k))
	obs[0] = float32(clamp((v.Position.Lat-depot.Lat)/positionScaleDeg, -1, 1))
	obs[1] = float32(clamp((v.Position.Lon-depot.Lon)/positionScaleDeg, -1, 1))
	obs[2] = float32(clamp(v.LoadFraction(), 0, 1))

	ranked := nearestFirst(v.Position, pending)
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	slots := make([]domain.PickupPoint, 0, len(ranked))
	for i := 0; i < k; i++ {
		base := 3 + i*slotFeatures
		if i >= len(ranked) {
			obs[base] = 1
			continue
		}

		r := ranked[i]
		slots = append(slots, r.point)
		obs[base] = float32(clamp(r.km/maxDistanceKm, 0, 1))
		if v.CapacityKg > 0 {
			obs[base+1] = float32(clamp(r.point.DemandKg/v.CapacityKg, 0, 1))
		}
		obs[base+2] = float32(float64(r.point.EffectivePriority()) / float64(domain.MaxPriority))
		obs[base+3] = 1
	}

	return obs, slots
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
