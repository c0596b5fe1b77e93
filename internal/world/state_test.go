package world

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"waste-dispatch-service/internal/domain"
)

// lineRouter prices every move as the great-circle distance at 30 km/h.
type lineRouter struct{ calls int }

func (l *lineRouter) Route(_ context.Context, from, to domain.Coordinates) domain.RouteResult {
	l.calls++
	km := domain.HaversineKm(from, to)
	return domain.RouteResult{
		Geometry:    []domain.Coordinates{from, to},
		DistanceKm:  km,
		DurationMin: km * 2,
	}
}

var depot = domain.Coordinates{Lat: -20.2666, Lon: -70.1300}

func pt(id int, demand float64, dLat float64) domain.PickupPoint {
	return domain.PickupPoint{
		ID:       id,
		Name:     "p",
		Location: domain.Coordinates{Lat: depot.Lat + dLat, Lon: depot.Lon},
		DemandKg: demand,
		Priority: domain.PriorityNormal,
	}
}

func newState(t *testing.T, points []domain.PickupPoint, capacities ...float64) *State {
	t.Helper()
	s, err := New(points, capacities, &lineRouter{}, Config{Depot: depot})
	require.NoError(t, err)
	return s
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	good := []domain.PickupPoint{pt(1, 10, 0.01)}

	cases := map[string]func() error{
		"no vehicles": func() error { _, err := New(good, nil, &lineRouter{}, Config{}); return err },
		"no points":   func() error { _, err := New(nil, []float64{10}, &lineRouter{}, Config{}); return err },
		"negative capacity": func() error {
			_, err := New(good, []float64{-5}, &lineRouter{}, Config{})
			return err
		},
		"duplicate ids": func() error {
			_, err := New([]domain.PickupPoint{pt(1, 1, 0), pt(1, 2, 0)}, []float64{10}, &lineRouter{}, Config{})
			return err
		},
		"zero id": func() error {
			_, err := New([]domain.PickupPoint{pt(0, 1, 0)}, []float64{10}, &lineRouter{}, Config{})
			return err
		},
		"nil router": func() error { _, err := New(good, []float64{10}, nil, Config{}); return err },
	}

	for name, fn := range cases {
		require.ErrorIs(t, fn(), domain.ErrInvalidConfiguration, name)
	}
}

func TestCommitVisitMovesAndLoads(t *testing.T) {
	s := newState(t, []domain.PickupPoint{pt(1, 30, 0.01), pt(2, 30, 0.02)}, 100)

	visit, err := s.CommitVisit(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, 30.0, visit.LoadKg)

	v, _ := s.Vehicle(1)
	require.Equal(t, 30.0, v.LoadKg)
	require.Equal(t, []int{2}, v.Trip)
	require.InDelta(t, 2.22, v.DistanceKm, 0.01)
	require.InDelta(t, v.DistanceKm*2+domain.DefaultServiceMinutes, v.DurationMin, 1e-9)
	require.Equal(t, []float64{0, 30}, v.LoadHistory)

	require.Len(t, s.PendingPoints(), 1)
	require.Equal(t, []int{2}, s.ServedIDs())
	require.False(t, s.IsComplete())
}

func TestCommitVisitRejectsServedPoint(t *testing.T) {
	s := newState(t, []domain.PickupPoint{pt(1, 10, 0.01)}, 100, 100)

	_, err := s.CommitVisit(context.Background(), 1, 1)
	require.NoError(t, err)

	_, err = s.CommitVisit(context.Background(), 2, 1)
	require.ErrorIs(t, err, domain.ErrAlreadyServed)

	v, _ := s.Vehicle(2)
	require.Zero(t, v.LoadKg)
	require.Equal(t, depot, v.Position)
}

func TestCommitVisitCapacityBoundary(t *testing.T) {
	s := newState(t, []domain.PickupPoint{pt(1, 90, 0.01), pt(2, 10, 0.02), pt(3, 0.5, 0.03)}, 100)
	ctx := context.Background()

	_, err := s.CommitVisit(ctx, 1, 1)
	require.NoError(t, err)

	// 90 + 10 fills the vehicle exactly.
	_, err = s.CommitVisit(ctx, 1, 2)
	require.NoError(t, err)

	_, err = s.CommitVisit(ctx, 1, 3)
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	avail, err := s.CapacityAvailable(1)
	require.NoError(t, err)
	require.Zero(t, avail)
}

func TestCommitDepotReturnUnloads(t *testing.T) {
	s := newState(t, []domain.PickupPoint{pt(1, 40, 0.01), pt(2, 40, 0.02)}, 100)
	ctx := context.Background()

	_, err := s.CommitVisit(ctx, 1, 1)
	require.NoError(t, err)

	ret, err := s.CommitDepotReturn(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 40.0, ret.UnloadedKg)

	v, _ := s.Vehicle(1)
	require.Zero(t, v.LoadKg)
	require.Empty(t, v.Trip)
	require.Equal(t, []int{1}, v.Route)
	require.Equal(t, 1, v.Trips)
	require.Equal(t, depot, v.Position)
	require.InDelta(t, 2.22, v.DistanceKm, 0.01)
}

func TestUnknownIDs(t *testing.T) {
	s := newState(t, []domain.PickupPoint{pt(1, 10, 0.01)}, 100)

	_, err := s.CommitVisit(context.Background(), 9, 1)
	require.ErrorIs(t, err, domain.ErrUnknownVehicle)

	_, err = s.CommitVisit(context.Background(), 1, 9)
	require.ErrorIs(t, err, domain.ErrUnknownPoint)

	_, err = s.CapacityAvailable(0)
	require.ErrorIs(t, err, domain.ErrUnknownVehicle)
}

func TestEnRoutePickupRespectsCapacity(t *testing.T) {
	points := []domain.PickupPoint{
		pt(1, 20, 0.0002), // about 22 m from the leg start
		pt(2, 50, 0.0004),
		pt(3, 40, 0.02),
	}
	s, err := New(points, []float64{100}, &lineRouter{}, Config{Depot: depot, EnRoute: true})
	require.NoError(t, err)

	visit, err := s.CommitVisit(context.Background(), 1, 3)
	require.NoError(t, err)

	// Point 1 fits alongside the target, point 2 would overflow.
	require.Equal(t, []int{1}, visit.EnRoute)
	require.Equal(t, 60.0, visit.LoadKg)

	p2, _ := s.Point(2)
	require.False(t, p2.Served)
}

func TestEnRoutePickupAlongStraightLeg(t *testing.T) {
	aside := pt(3, 10, 0.01)
	aside.Location.Lon += 0.002 // about 200 m off the leg

	points := []domain.PickupPoint{pt(1, 10, 0.01), pt(2, 10, 0.02), aside}
	s, err := New(points, []float64{100}, &lineRouter{}, Config{Depot: depot, EnRoute: true})
	require.NoError(t, err)

	visit, err := s.CommitVisit(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, visit.Route.Geometry, 2)
	require.Equal(t, []int{1}, visit.EnRoute)
	require.Equal(t, 20.0, visit.LoadKg)

	p1, _ := s.Point(1)
	require.True(t, p1.Served)
	p3, _ := s.Point(3)
	require.False(t, p3.Served)
}

func TestNearLeg(t *testing.T) {
	a := depot
	b := domain.Coordinates{Lat: depot.Lat + 0.02, Lon: depot.Lon + 0.02}
	mid := domain.Coordinates{Lat: depot.Lat + 0.01, Lon: depot.Lon + 0.01}
	beyond := domain.Coordinates{Lat: depot.Lat + 0.03, Lon: depot.Lon + 0.03}

	require.True(t, nearLeg(mid, []domain.Coordinates{a, b}, 0.05))
	require.False(t, nearLeg(beyond, []domain.Coordinates{a, b}, 0.05))
	require.True(t, nearLeg(a, []domain.Coordinates{a}, 0.05))
	require.False(t, nearLeg(mid, nil, 0.05))
}

func TestBaseReturnUnloadsThenDrivesToBase(t *testing.T) {
	base := domain.Coordinates{Lat: depot.Lat - 0.05, Lon: depot.Lon}
	s, err := New([]domain.PickupPoint{pt(1, 10, 0.01)}, []float64{100}, &lineRouter{}, Config{Depot: depot, Base: base})
	require.NoError(t, err)

	v, _ := s.Vehicle(1)
	require.Equal(t, base, v.Position)

	_, err = s.CommitVisit(context.Background(), 1, 1)
	require.NoError(t, err)

	ret, err := s.CommitBaseReturn(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 10.0, ret.UnloadedKg)

	v, _ = s.Vehicle(1)
	require.Equal(t, base, v.Position)
	require.Zero(t, v.LoadKg)
	require.Equal(t, 1, v.Trips)
}

func TestCapacityInvariantUnderRandomProposals(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	points := make([]domain.PickupPoint, 0, 40)
	for i := 1; i <= 40; i++ {
		points = append(points, pt(i, float64(rng.IntN(60)+1), rng.Float64()*0.05))
	}
	s := newState(t, points, 120, 80, 150)
	ctx := context.Background()

	servedBefore := 0
	for range 500 {
		vid := rng.IntN(3) + 1
		var err error
		if rng.IntN(8) == 0 {
			_, err = s.CommitDepotReturn(ctx, vid)
		} else {
			_, err = s.CommitVisit(ctx, vid, rng.IntN(40)+1)
		}
		if err != nil && !errors.Is(err, domain.ErrAlreadyServed) && !errors.Is(err, domain.ErrCapacityExceeded) {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, v := range s.Vehicles() {
			if v.LoadKg < 0 || v.LoadKg > v.CapacityKg {
				t.Fatalf("vehicle %d load %.1f outside [0, %.1f]", v.ID, v.LoadKg, v.CapacityKg)
			}
		}

		served := s.ServedIDs()
		if len(served) < servedBefore {
			t.Fatalf("served shrank from %d to %d", servedBefore, len(served))
		}
		seen := map[int]bool{}
		for _, id := range served {
			if seen[id] {
				t.Fatalf("point %d served twice", id)
			}
			seen[id] = true
		}
		servedBefore = len(served)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	s := newState(t, []domain.PickupPoint{pt(1, 10, 0.01), pt(2, 10, 0.02)}, 100)
	_, err := s.CommitVisit(context.Background(), 1, 1)
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.Pending, 1)
	require.Len(t, snap.Served, 1)
	require.Equal(t, 50.0, snap.Completion)

	snap.Vehicles[0].Trip[0] = 99
	v, _ := s.Vehicle(1)
	require.Equal(t, []int{1}, v.Trip)
}
