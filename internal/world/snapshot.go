package world

import "waste-dispatch-service/internal/domain"

// Snapshot is a consistent copy of the world taken under one read lock.
type Snapshot struct {
	Depot      domain.Coordinates   `json:"depot"`
	Base       domain.Coordinates   `json:"base"`
	Vehicles   []domain.Vehicle     `json:"vehicles"`
	Pending    []domain.PickupPoint `json:"pending_points"`
	Served     []domain.PickupPoint `json:"served_points"`
	Completion float64              `json:"completion_pct"`
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Depot:    s.cfg.Depot,
		Base:     s.cfg.Base,
		Vehicles: make([]domain.Vehicle, 0, len(s.vehicles)),
		Pending:  s.filterLocked(func(p *domain.PickupPoint) bool { return !p.Served }),
		Served:   make([]domain.PickupPoint, 0, len(s.served)),
	}
	for _, v := range s.vehicles {
		snap.Vehicles = append(snap.Vehicles, cloneVehicle(v))
	}
	for _, id := range s.served {
		snap.Served = append(snap.Served, *s.points[id])
	}
	snap.Completion = 100 * float64(len(s.served)) / float64(len(s.ids))
	return snap
}
