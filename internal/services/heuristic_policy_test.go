package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"waste-dispatch-service/internal/domain"
)

func vehicleAt(id int, capacity, load float64, at domain.Coordinates) domain.Vehicle {
	return domain.Vehicle{ID: id, CapacityKg: capacity, LoadKg: load, Position: at, Active: true}
}

func TestCandidatesExcludeInfeasiblePoints(t *testing.T) {
	h := NewHeuristicPolicy(&lineRouter{}, depot, HeuristicWeights{})
	v := vehicleAt(1, 100, 70, depot)

	served := point(3, 5, 0.001, 0)
	served.Served = true
	points := []domain.PickupPoint{
		point(1, 31, 0.001, 0), // exceeds the 30 kg left
		point(2, 30, 0.002, 0),
		served,
		point(4, 10, 0.003, 0),
	}

	got := h.Candidates(v, points)
	ids := make([]int, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	require.Equal(t, []int{2, 4}, ids)

	d := h.Propose(context.Background(), v, points, nil)
	require.NotEqual(t, 1, d.TargetID)
	require.NotEqual(t, 3, d.TargetID)
}

func TestCandidatesAreCappedByStraightLineDistance(t *testing.T) {
	h := NewHeuristicPolicy(&lineRouter{}, depot, HeuristicWeights{MaxCandidates: 3})
	v := vehicleAt(1, 100, 0, depot)

	points := []domain.PickupPoint{
		point(1, 1, 0.04, 0),
		point(2, 1, 0.01, 0),
		point(3, 1, 0.03, 0),
		point(4, 1, 0.02, 0),
		point(5, 1, 0.05, 0),
	}
	got := h.Candidates(v, points)
	require.Len(t, got, 3)
	require.Equal(t, 2, got[0].ID)
	require.Equal(t, 4, got[1].ID)
	require.Equal(t, 3, got[2].ID)
}

func TestProposeReturnsDepotWithoutCandidates(t *testing.T) {
	h := NewHeuristicPolicy(&lineRouter{}, depot, HeuristicWeights{})
	v := vehicleAt(1, 100, 95, domain.Coordinates{Lat: depot.Lat + 0.01, Lon: depot.Lon})

	d := h.Propose(context.Background(), v, []domain.PickupPoint{point(1, 10, 0.02, 0)}, nil)
	require.True(t, d.IsDepot())
	require.Equal(t, 1, d.VehicleID)
	require.InDelta(t, 1.11, d.DistanceKm, 0.01)
}

func TestProposePrefersCloseHighPriorityPoints(t *testing.T) {
	h := NewHeuristicPolicy(&lineRouter{}, depot, HeuristicWeights{})
	v := vehicleAt(1, 100, 0, depot)

	far := point(1, 10, 0.05, 0)
	near := point(2, 10, 0.005, 0)
	d := h.Propose(context.Background(), v, []domain.PickupPoint{far, near}, nil)
	require.Equal(t, 2, d.TargetID)
	require.Equal(t, near.Benefit(), d.Benefit)

	// Same distance, higher priority wins.
	a := point(3, 10, 0.01, 0)
	b := point(4, 10, -0.01, 0)
	b.Priority = domain.PriorityUrgent
	d = h.Propose(context.Background(), v, []domain.PickupPoint{a, b}, nil)
	require.Equal(t, 4, d.TargetID)
}

func TestProposeFollowsTheSameStreet(t *testing.T) {
	h := NewHeuristicPolicy(&lineRouter{}, depot, HeuristicWeights{})
	v := vehicleAt(1, 100, 10, depot)
	v.LastStreet = "Av. Arturo Prat"

	other := point(1, 10, 0.002, 0)
	other.Street = "Calle Tarapaca"
	same := point(2, 10, 0.004, 0)
	same.Street = "av. arturo prat"

	d := h.Propose(context.Background(), v, []domain.PickupPoint{other, same}, nil)
	require.Equal(t, 2, d.TargetID)
}

func TestProposeAvoidsPointsClaimedByCloserAgents(t *testing.T) {
	h := NewHeuristicPolicy(&lineRouter{}, depot, HeuristicWeights{})
	v := vehicleAt(2, 100, 0, depot)

	contested := point(1, 10, 0.010, 0)
	alternative := point(2, 10, 0.011, 0)
	others := []domain.Decision{{VehicleID: 1, TargetID: 1, DistanceKm: 0.2}}

	d := h.Propose(context.Background(), v, []domain.PickupPoint{contested, alternative}, nil)
	require.Equal(t, 1, d.TargetID)

	d = h.Propose(context.Background(), v, []domain.PickupPoint{contested, alternative}, others)
	require.Equal(t, 2, d.TargetID)
}

func TestScoreIsNeverNegative(t *testing.T) {
	h := NewHeuristicPolicy(&lineRouter{}, depot, HeuristicWeights{})
	v := vehicleAt(1, 1000, 0, depot)
	v.LastStreet = "A"

	p := point(1, 0, 0.2, 0)
	p.Street = "B"
	others := []domain.Decision{{VehicleID: 2, TargetID: 1, DistanceKm: 0}}

	require.Zero(t, h.score(v, p, 0.1, others))
}

func TestNegativeWeightSwitchesTermOff(t *testing.T) {
	v := vehicleAt(1, 100, 0, depot)
	p := point(1, 10, 0.0001, 0) // inside the cluster radius

	on := NewHeuristicPolicy(&lineRouter{}, depot, HeuristicWeights{})
	off := NewHeuristicPolicy(&lineRouter{}, depot, HeuristicWeights{ClusterBonus: -1})

	require.Equal(t, 0.6, on.Weights.ClusterBonus)
	require.Zero(t, off.Weights.ClusterBonus)
	require.Equal(t, 2.0, off.Weights.DistanceWeight, "unset weights keep their defaults")
	require.InDelta(t, 0.6, on.score(v, p, 0.01, nil)-off.score(v, p, 0.01, nil), 1e-9)
}
