package world

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"waste-dispatch-service/internal/domain"
)

// DefaultEnRouteRadiusKm is how close a pending point must be to a leg's
// geometry to be picked up on the way.
const DefaultEnRouteRadiusKm = 0.05

// Router prices a move. *routing.Oracle satisfies it.
type Router interface {
	Route(ctx context.Context, from, to domain.Coordinates) domain.RouteResult
}

// Config holds the fixed locations and optional behaviours of a world.
type Config struct {
	// Depot is where vehicles unload.
	Depot domain.Coordinates
	// Base is where vehicles start and finish. Zero means Depot.
	Base domain.Coordinates
	// EnRoute serves pending points passed within EnRouteRadiusKm of a leg.
	EnRoute         bool
	EnRouteRadiusKm float64
}

// Visit describes a committed move to a pickup point.
type Visit struct {
	VehicleID int                `json:"vehicle_id"`
	PointID   int                `json:"point_id"`
	EnRoute   []int              `json:"en_route,omitempty"`
	Route     domain.RouteResult `json:"route"`
	LoadKg    float64            `json:"load_kg"`
}

// Return describes a committed move to the depot or base.
type Return struct {
	VehicleID  int                `json:"vehicle_id"`
	Route      domain.RouteResult `json:"route"`
	UnloadedKg float64            `json:"unloaded_kg"`
}

// State owns the pickup points and vehicles of one episode.
//
// Writes go through CommitVisit and CommitDepotReturn, which price the move
// outside the lock and then re-validate before applying, so readers never
// wait on the routing provider and never observe a half-applied move.
type State struct {
	mu     sync.RWMutex
	router Router
	cfg    Config

	points   map[int]*domain.PickupPoint
	ids      []int
	vehicles []*domain.Vehicle
	served   []int
}

// New validates the inputs and places every vehicle, empty, at the base.
// Vehicle ids are 1..len(capacities).
func New(points []domain.PickupPoint, capacities []float64, router Router, cfg Config) (*State, error) {
	if router == nil {
		return nil, fmt.Errorf("new world: router is nil: %w", domain.ErrInvalidConfiguration)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("new world: no pickup points: %w", domain.ErrInvalidConfiguration)
	}
	if len(capacities) == 0 {
		return nil, fmt.Errorf("new world: no vehicles: %w", domain.ErrInvalidConfiguration)
	}
	if cfg.Base == (domain.Coordinates{}) {
		cfg.Base = cfg.Depot
	}
	if cfg.EnRouteRadiusKm <= 0 {
		cfg.EnRouteRadiusKm = DefaultEnRouteRadiusKm
	}

	s := &State{
		router: router,
		cfg:    cfg,
		points: make(map[int]*domain.PickupPoint, len(points)),
		ids:    make([]int, 0, len(points)),
	}

	for i, p := range points {
		if p.ID <= 0 {
			return nil, fmt.Errorf("new world: point #%d has id %d: %w", i+1, p.ID, domain.ErrInvalidConfiguration)
		}
		if _, dup := s.points[p.ID]; dup {
			return nil, fmt.Errorf("new world: duplicate point id %d: %w", p.ID, domain.ErrInvalidConfiguration)
		}
		if p.DemandKg < 0 {
			return nil, fmt.Errorf("new world: point %d has negative demand: %w", p.ID, domain.ErrInvalidConfiguration)
		}
		p.Served = false
		p.Priority = p.EffectivePriority()
		if p.ServiceMinutes <= 0 {
			p.ServiceMinutes = domain.DefaultServiceMinutes
		}
		s.points[p.ID] = &p
		s.ids = append(s.ids, p.ID)
	}
	slices.Sort(s.ids)

	for i, c := range capacities {
		if c <= 0 {
			return nil, fmt.Errorf("new world: vehicle %d has capacity %.1f: %w", i+1, c, domain.ErrInvalidConfiguration)
		}
		s.vehicles = append(s.vehicles, &domain.Vehicle{
			ID:          i + 1,
			CapacityKg:  c,
			Position:    cfg.Base,
			Active:      true,
			LoadHistory: []float64{0},
		})
	}

	return s, nil
}

func (s *State) Depot() domain.Coordinates { return s.cfg.Depot }
func (s *State) Base() domain.Coordinates  { return s.cfg.Base }

// PendingPoints returns unserved points ordered by id.
func (s *State) PendingPoints() []domain.PickupPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(func(p *domain.PickupPoint) bool { return !p.Served })
}

// Points returns every point ordered by id.
func (s *State) Points() []domain.PickupPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(func(*domain.PickupPoint) bool { return true })
}

func (s *State) filterLocked(keep func(*domain.PickupPoint) bool) []domain.PickupPoint {
	out := make([]domain.PickupPoint, 0, len(s.ids))
	for _, id := range s.ids {
		if p := s.points[id]; keep(p) {
			out = append(out, *p)
		}
	}
	return out
}

func (s *State) Point(id int) (domain.PickupPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.points[id]
	if !ok {
		return domain.PickupPoint{}, false
	}
	return *p, true
}

func (s *State) Vehicle(id int) (domain.Vehicle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, err := s.vehicleLocked(id)
	if err != nil {
		return domain.Vehicle{}, false
	}
	return cloneVehicle(v), true
}

// Vehicles returns copies ordered by id.
func (s *State) Vehicles() []domain.Vehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, cloneVehicle(v))
	}
	return out
}

// CapacityAvailable is capacity minus current load.
func (s *State) CapacityAvailable(vehicleID int) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, err := s.vehicleLocked(vehicleID)
	if err != nil {
		return 0, err
	}
	return v.AvailableKg(), nil
}

func (s *State) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.served) == len(s.ids)
}

// ServedIDs returns point ids in the order they were served.
func (s *State) ServedIDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.served)
}

// Completion is the served share of points in percent.
func (s *State) Completion() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return 100 * float64(len(s.served)) / float64(len(s.ids))
}

func (s *State) SetSector(vehicleID, sector int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.vehicleLocked(vehicleID)
	if err != nil {
		return err
	}
	v.Sector = sector
	return nil
}

func (s *State) SetActive(vehicleID int, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.vehicleLocked(vehicleID)
	if err != nil {
		return err
	}
	v.Active = active
	return nil
}

// CommitVisit moves the vehicle to the point and collects its demand.
// It returns ErrAlreadyServed or ErrCapacityExceeded without changing
// anything when the visit is no longer valid.
func (s *State) CommitVisit(ctx context.Context, vehicleID, pointID int) (Visit, error) {
	s.mu.RLock()
	v, p, err := s.checkVisitLocked(vehicleID, pointID)
	var from domain.Coordinates
	if err == nil {
		from = v.Position
	}
	s.mu.RUnlock()
	if err != nil {
		return Visit{}, err
	}

	r := s.router.Route(ctx, from, p.Location)

	s.mu.Lock()
	defer s.mu.Unlock()

	v, p, err = s.checkVisitLocked(vehicleID, pointID)
	if err != nil {
		return Visit{}, err
	}
	if v.Position != from {
		return Visit{}, fmt.Errorf("commit visit: vehicle %d moved while pricing", vehicleID)
	}

	visit := Visit{VehicleID: v.ID, PointID: p.ID, Route: r}

	if s.cfg.EnRoute {
		spare := v.AvailableKg() - p.DemandKg
		for _, id := range s.ids {
			q := s.points[id]
			if q.Served || q.ID == p.ID || q.DemandKg > spare {
				continue
			}
			if !nearLeg(q.Location, r.Geometry, s.cfg.EnRouteRadiusKm) {
				continue
			}
			s.serveLocked(v, q)
			spare -= q.DemandKg
			visit.EnRoute = append(visit.EnRoute, q.ID)
		}
	}

	v.Position = p.Location
	v.DistanceKm += r.DistanceKm
	v.DurationMin += r.DurationMin
	v.LastLeg = r.Geometry
	s.serveLocked(v, p)

	visit.LoadKg = v.LoadKg
	return visit, nil
}

func (s *State) checkVisitLocked(vehicleID, pointID int) (*domain.Vehicle, *domain.PickupPoint, error) {
	v, err := s.vehicleLocked(vehicleID)
	if err != nil {
		return nil, nil, err
	}
	p, ok := s.points[pointID]
	if !ok {
		return nil, nil, fmt.Errorf("commit visit: point %d: %w", pointID, domain.ErrUnknownPoint)
	}
	if p.Served {
		return nil, nil, fmt.Errorf("commit visit: point %d: %w", pointID, domain.ErrAlreadyServed)
	}
	if p.DemandKg > v.AvailableKg() {
		return nil, nil, fmt.Errorf(
			"commit visit: point %d needs %.1f kg, vehicle %d has %.1f kg: %w",
			pointID, p.DemandKg, vehicleID, v.AvailableKg(), domain.ErrCapacityExceeded,
		)
	}
	return v, p, nil
}

// serveLocked collects p into v. Callers have checked capacity.
func (s *State) serveLocked(v *domain.Vehicle, p *domain.PickupPoint) {
	p.Served = true
	s.served = append(s.served, p.ID)

	v.LoadKg += p.DemandKg
	v.CollectedKg += p.DemandKg
	v.DurationMin += p.ServiceMinutes
	v.Trip = append(v.Trip, p.ID)
	v.Route = append(v.Route, p.ID)
	v.LastStreet = p.Street
	v.LoadHistory = append(v.LoadHistory, v.LoadKg)
}

// CommitDepotReturn drives the vehicle to the depot, unloads it and
// starts a new trip.
func (s *State) CommitDepotReturn(ctx context.Context, vehicleID int) (Return, error) {
	return s.commitReturn(ctx, vehicleID, s.cfg.Depot, true)
}

// CommitBaseReturn ends the vehicle's shift: it unloads at the depot when
// carrying anything and then drives to the base if that is elsewhere.
func (s *State) CommitBaseReturn(ctx context.Context, vehicleID int) (Return, error) {
	v, ok := s.Vehicle(vehicleID)
	if !ok {
		return Return{}, fmt.Errorf("commit base return: vehicle %d: %w", vehicleID, domain.ErrUnknownVehicle)
	}

	out := Return{VehicleID: vehicleID}
	if v.LoadKg > 0 {
		r, err := s.CommitDepotReturn(ctx, vehicleID)
		if err != nil {
			return Return{}, err
		}
		out = r
	}

	if s.cfg.Base == s.cfg.Depot && v.LoadKg > 0 {
		return out, nil
	}

	r, err := s.commitReturn(ctx, vehicleID, s.cfg.Base, false)
	if err != nil {
		return Return{}, err
	}
	r.UnloadedKg = out.UnloadedKg
	r.Route.DistanceKm += out.Route.DistanceKm
	r.Route.DurationMin += out.Route.DurationMin
	return r, nil
}

func (s *State) commitReturn(ctx context.Context, vehicleID int, to domain.Coordinates, unload bool) (Return, error) {
	s.mu.RLock()
	v, err := s.vehicleLocked(vehicleID)
	var from domain.Coordinates
	if err == nil {
		from = v.Position
	}
	s.mu.RUnlock()
	if err != nil {
		return Return{}, err
	}

	r := s.router.Route(ctx, from, to)

	s.mu.Lock()
	defer s.mu.Unlock()

	v, err = s.vehicleLocked(vehicleID)
	if err != nil {
		return Return{}, err
	}

	out := Return{VehicleID: v.ID, Route: r}
	v.Position = to
	v.DistanceKm += r.DistanceKm
	v.DurationMin += r.DurationMin
	v.LastLeg = r.Geometry
	v.LastStreet = ""

	if unload {
		out.UnloadedKg = v.LoadKg
		if v.LoadKg > 0 {
			v.Trips++
		}
		v.LoadKg = 0
		v.Trip = nil
		v.LoadHistory = append(v.LoadHistory, 0)
	}
	return out, nil
}

func (s *State) vehicleLocked(id int) (*domain.Vehicle, error) {
	if id < 1 || id > len(s.vehicles) {
		return nil, fmt.Errorf("vehicle %d: %w", id, domain.ErrUnknownVehicle)
	}
	return s.vehicles[id-1], nil
}

// nearLeg reports whether c lies within radiusKm of the polyline leg.
func nearLeg(c domain.Coordinates, leg []domain.Coordinates, radiusKm float64) bool {
	if len(leg) == 1 {
		return domain.HaversineKm(c, leg[0]) <= radiusKm
	}
	for i := 1; i < len(leg); i++ {
		if segmentDistanceKm(c, leg[i-1], leg[i]) <= radiusKm {
			return true
		}
	}
	return false
}

// segmentDistanceKm is the distance from c to the closest point of segment
// a-b, projected on a plane scaled by cos(lat) at a. Legs are short enough
// for the projection to hold.
func segmentDistanceKm(c, a, b domain.Coordinates) float64 {
	kx := math.Cos(a.Lat * math.Pi / 180)
	dx, dy := (b.Lon-a.Lon)*kx, b.Lat-a.Lat
	px, py := (c.Lon-a.Lon)*kx, c.Lat-a.Lat

	t := 0.0
	if l2 := dx*dx + dy*dy; l2 > 0 {
		t = min(max((px*dx+py*dy)/l2, 0), 1)
	}
	closest := domain.Coordinates{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lon: a.Lon + t*(b.Lon-a.Lon),
	}
	return domain.HaversineKm(c, closest)
}

func cloneVehicle(v *domain.Vehicle) domain.Vehicle {
	out := *v
	out.Trip = slices.Clone(v.Trip)
	out.Route = slices.Clone(v.Route)
	out.LastLeg = slices.Clone(v.LastLeg)
	out.LoadHistory = slices.Clone(v.LoadHistory)
	return out
}
