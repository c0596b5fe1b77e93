package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"waste-dispatch-service/internal/adapters/distance"
	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/routing"
	"waste-dispatch-service/internal/world"
)

var depot = domain.Coordinates{Lat: -20.2666, Lon: -70.1300}

// lineRouter prices moves as great-circle distance at 30 km/h.
type lineRouter struct {
	mu    sync.Mutex
	calls int
}

func (l *lineRouter) Route(_ context.Context, from, to domain.Coordinates) domain.RouteResult {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()

	km := domain.HaversineKm(from, to)
	return domain.RouteResult{
		Geometry:    []domain.Coordinates{from, to},
		DistanceKm:  km,
		DurationMin: km * 2,
	}
}

func point(id int, demand, dLat, dLon float64) domain.PickupPoint {
	return domain.PickupPoint{
		ID:       id,
		Name:     "point",
		Location: domain.Coordinates{Lat: depot.Lat + dLat, Lon: depot.Lon + dLon},
		DemandKg: demand,
		Priority: domain.PriorityNormal,
	}
}

func testOracle() *routing.Oracle {
	return routing.New(distance.NewMockRouteProvider(), routing.Options{RatePerSec: -1})
}

func newTestWorld(t *testing.T, points []domain.PickupPoint, capacities ...float64) *world.State {
	t.Helper()
	w, err := world.New(points, capacities, &lineRouter{}, world.Config{Depot: depot})
	require.NoError(t, err)
	return w
}

func heuristicAgents(w *world.State) []*Agent {
	h := NewHeuristicPolicy(&lineRouter{}, w.Depot(), HeuristicWeights{})
	var agents []*Agent
	for _, v := range w.Vehicles() {
		agents = append(agents, NewAgent(v.ID, h))
	}
	return agents
}
