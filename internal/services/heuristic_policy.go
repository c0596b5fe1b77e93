package services

import (
	"context"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/world"
)

// HeuristicWeights tunes the multi-factor scorer. Zero values take defaults;
// a negative weight or bonus switches its term off.
type HeuristicWeights struct {
	MaxDistanceKm   float64 `json:"max_distance_km" yaml:"max_distance_km"`     // 10
	DistanceWeight  float64 `json:"distance_weight" yaml:"distance_weight"`     // 2
	DemandWeight    float64 `json:"demand_weight" yaml:"demand_weight"`         // 1
	PriorityWeight  float64 `json:"priority_weight" yaml:"priority_weight"`     // 1
	NearDepotBonus  float64 `json:"near_depot_bonus" yaml:"near_depot_bonus"`   // 0.15
	SameStreetBonus float64 `json:"same_street_bonus" yaml:"same_street_bonus"` // 0.7
	ClusterBonus    float64 `json:"cluster_bonus" yaml:"cluster_bonus"`         // 0.6
	ConflictCloser  float64 `json:"conflict_closer" yaml:"conflict_closer"`     // 0.8, another agent is closer to the point
	ConflictFarther float64 `json:"conflict_farther" yaml:"conflict_farther"`   // 0.4
	MaxCandidates   int     `json:"max_candidates" yaml:"max_candidates"`       // 15
	PricingWorkers  int     `json:"pricing_workers" yaml:"pricing_workers"`     // 4
}

func (w HeuristicWeights) withDefaults() HeuristicWeights {
	if w.MaxDistanceKm <= 0 {
		w.MaxDistanceKm = 10
	}
	def := func(v *float64, d float64) { *v = weightOrDefault(*v, d) }
	def(&w.DistanceWeight, 2)
	def(&w.DemandWeight, 1)
	def(&w.PriorityWeight, 1)
	def(&w.NearDepotBonus, 0.15)
	def(&w.SameStreetBonus, 0.7)
	def(&w.ClusterBonus, 0.6)
	def(&w.ConflictCloser, 0.8)
	def(&w.ConflictFarther, 0.4)
	if w.MaxCandidates <= 0 {
		w.MaxCandidates = 15
	}
	if w.PricingWorkers <= 0 {
		w.PricingWorkers = 4
	}
	return w
}

// weightOrDefault maps an unset (zero) weight to d and a negative one to 0.
func weightOrDefault(v, d float64) float64 {
	switch {
	case v == 0:
		return d
	case v < 0:
		return 0
	}
	return v
}

const (
	nearDepotLoadFraction = 0.8
	nearDepotKm           = 2.0
	clusterKm             = 0.03
	streetChangeKm        = 0.5
	streetPenaltyMin      = 0.4
	streetPenaltyMax      = 0.8
)

// HeuristicPolicy scores feasible candidates with street distances from the
// router and picks the best one.
type HeuristicPolicy struct {
	Router  world.Router
	Depot   domain.Coordinates
	Weights HeuristicWeights
}

func NewHeuristicPolicy(router world.Router, depot domain.Coordinates, w HeuristicWeights) *HeuristicPolicy {
	return &HeuristicPolicy{Router: router, Depot: depot, Weights: w.withDefaults()}
}

// Candidates returns the feasible points (pending and within remaining
// capacity) closest to the vehicle in a straight line, capped at
// MaxCandidates to bound the number of routed lookups.
func (h *HeuristicPolicy) Candidates(v domain.Vehicle, points []domain.PickupPoint) []domain.PickupPoint {
	ranked := nearestFirst(v.Position, feasibleFor(v, points))
	if len(ranked) > h.Weights.MaxCandidates {
		ranked = ranked[:h.Weights.MaxCandidates]
	}

	out := make([]domain.PickupPoint, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.point)
	}
	return out
}

type scoredPoint struct {
	point domain.PickupPoint
	km    float64
	score float64
}

func (h *HeuristicPolicy) Propose(
	ctx context.Context,
	v domain.Vehicle,
	candidates []domain.PickupPoint,
	others []domain.Decision,
) domain.Decision {
	pool := h.Candidates(v, candidates)
	if len(pool) == 0 {
		return depotDecision(v, h.Depot, "no_feasible_candidate")
	}

	scored := h.price(ctx, v, pool)
	for i := range scored {
		scored[i].score = h.score(v, scored[i].point, scored[i].km, others)
	}

	best := scored[0]
	for _, s := range scored[1:] {
		if better(s, best) {
			best = s
		}
	}

	return domain.Decision{
		VehicleID:  v.ID,
		TargetID:   best.point.ID,
		Rationale:  "heuristic",
		Score:      best.score,
		DistanceKm: best.km,
		Benefit:    best.point.Benefit(),
	}
}

// price fetches street distances for the pool with a bounded number of
// concurrent lookups. Nothing is mutated until all lookups are back.
func (h *HeuristicPolicy) price(ctx context.Context, v domain.Vehicle, pool []domain.PickupPoint) []scoredPoint {
	out := make([]scoredPoint, len(pool))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.Weights.PricingWorkers)
	for i, p := range pool {
		g.Go(func() error {
			r := h.Router.Route(gctx, v.Position, p.Location)
			out[i] = scoredPoint{point: p, km: r.DistanceKm}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (h *HeuristicPolicy) score(v domain.Vehicle, p domain.PickupPoint, km float64, others []domain.Decision) float64 {
	w := h.Weights

	closeness := math.Max(0, 1-km/w.MaxDistanceKm)
	s := w.DistanceWeight * closeness * closeness * closeness
	s += w.DemandWeight * p.DemandKg / v.CapacityKg
	s += w.PriorityWeight * float64(p.EffectivePriority()) / float64(domain.MaxPriority)

	if v.LoadFraction() > nearDepotLoadFraction && domain.HaversineKm(p.Location, h.Depot) <= nearDepotKm {
		s += w.NearDepotBonus
	}

	if v.LastStreet != "" && p.Street != "" {
		if strings.EqualFold(strings.TrimSpace(v.LastStreet), strings.TrimSpace(p.Street)) {
			s += w.SameStreetBonus
		} else if km < streetChangeKm {
			// Closer jumps to another street cost more.
			s -= streetPenaltyMin + (streetPenaltyMax-streetPenaltyMin)*(1-km/streetChangeKm)
		}
	}

	if domain.HaversineKm(v.Position, p.Location) <= clusterKm {
		s += w.ClusterBonus
	}

	penalty := 0.0
	for _, o := range others {
		if o.VehicleID == v.ID || o.TargetID != p.ID {
			continue
		}
		if o.DistanceKm < km {
			penalty = math.Max(penalty, w.ConflictCloser)
		} else {
			penalty = math.Max(penalty, w.ConflictFarther)
		}
	}
	s -= penalty

	return math.Max(0, s)
}

// better orders by score, then shorter distance, then lower id.
func better(a, b scoredPoint) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.km != b.km {
		return a.km < b.km
	}
	return a.point.ID < b.point.ID
}
