package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"waste-dispatch-service/internal/domain"
)

type fakeModel struct {
	action int
	err    error
	seen   []float32
}

func (f *fakeModel) Predict(_ context.Context, obs []float32) (int, error) {
	f.seen = obs
	return f.action, f.err
}

func learned(action int, err error) (*LearnedPolicy, *fakeModel) {
	m := &fakeModel{action: action, err: err}
	return NewLearnedPolicy(m, NewHeuristicPolicy(&lineRouter{}, depot, HeuristicWeights{})), m
}

func TestBuildObservationPadsEmptySlots(t *testing.T) {
	v := vehicleAt(1, 100, 25, domain.Coordinates{Lat: depot.Lat + 0.05, Lon: depot.Lon - 0.2})
	pending := []domain.PickupPoint{point(1, 50, 0.06, -0.2), point(2, 500, 0.05, -0.19)}

	obs, slots := BuildObservation(v, depot, pending, 3, 10)
	require.Len(t, obs, ObservationSize(3))
	require.Equal(t, 15, len(obs))
	require.Len(t, slots, 2)

	require.InDelta(t, 0.5, obs[0], 1e-6)
	require.Equal(t, float32(-1), obs[1])
	require.Equal(t, float32(0.25), obs[2])

	// Occupied slots.
	require.Equal(t, float32(1), obs[6])
	require.Equal(t, float32(1), obs[10])
	// Point 2 is nearer; its demand is clamped to capacity.
	require.Equal(t, float32(1), obs[4])
	require.InDelta(t, 0.5, obs[8], 1e-6)

	// Padding.
	require.Equal(t, []float32{1, 0, 0, 0}, obs[11:15])
}

func TestLearnedPolicyFollowsValidActions(t *testing.T) {
	p, m := learned(2, nil)
	v := vehicleAt(1, 100, 0, depot)
	pending := []domain.PickupPoint{point(1, 10, 0.02, 0), point(2, 10, 0.01, 0)}

	d := p.Propose(context.Background(), v, pending, nil)
	require.Equal(t, "learned", d.Rationale)
	require.Equal(t, 1, d.TargetID, "action 2 is the second nearest point")
	require.InDelta(t, 2.22, d.DistanceKm, 0.01)
	require.Len(t, m.seen, ObservationSize(ObservationSlots))
}

func TestLearnedPolicyGuardrails(t *testing.T) {
	pending := []domain.PickupPoint{point(1, 10, 0.01, 0)}

	cases := []struct {
		name      string
		action    int
		err       error
		load      float64
		pending   []domain.PickupPoint
		rationale string
		depot     bool
	}{
		{name: "empty depot", action: 0, load: 0, pending: pending, rationale: "heuristic/guard_empty_depot"},
		{name: "early depot", action: 0, load: 50, pending: pending, rationale: "heuristic/guard_early_depot"},
		{name: "full enough", action: 0, load: 90, pending: pending, rationale: "learned_depot", depot: true},
		{name: "nothing fits", action: 0, load: 50, pending: []domain.PickupPoint{point(1, 60, 0.01, 0)}, rationale: "learned_depot", depot: true},
		{name: "out of range", action: 2, load: 0, pending: pending, rationale: "heuristic/invalid_action"},
		{name: "negative", action: -1, load: 0, pending: pending, rationale: "heuristic/invalid_action"},
		{name: "model error", err: errors.New("boom"), load: 0, pending: pending, rationale: "heuristic/model_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := learned(tc.action, tc.err)
			v := vehicleAt(1, 100, tc.load, depot)

			d := p.Propose(context.Background(), v, tc.pending, nil)
			require.Equal(t, tc.rationale, d.Rationale)
			require.Equal(t, tc.depot, d.IsDepot())
			if !tc.depot {
				require.Equal(t, 1, d.TargetID)
			}
		})
	}
}

func TestLearnedPolicyRejectsInfeasibleSlot(t *testing.T) {
	p, _ := learned(1, nil)
	v := vehicleAt(1, 100, 50, depot)
	pending := []domain.PickupPoint{point(1, 80, 0.01, 0), point(2, 20, 0.02, 0)}

	d := p.Propose(context.Background(), v, pending, nil)
	require.Equal(t, "heuristic/infeasible_action", d.Rationale)
	require.Equal(t, 2, d.TargetID)
}
