package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/platform/metrics"
	"waste-dispatch-service/internal/world"
)

// Weights shapes the per-decision reward. Zero values take defaults; a
// negative reward or penalty switches it off.
type Weights struct {
	BaseReward      float64 `json:"base_reward" yaml:"base_reward"`           // 10, times the point priority
	DistancePenalty float64 `json:"distance_penalty" yaml:"distance_penalty"` // 0.1 per km
	InvalidPenalty  float64 `json:"invalid_penalty" yaml:"invalid_penalty"`   // 1, for a stale or infeasible target
	ReturnLoad      float64 `json:"return_load" yaml:"return_load"`           // 0.9, load fraction above which a vehicle must unload
}

func (w Weights) withDefaults() Weights {
	w.BaseReward = weightOrDefault(w.BaseReward, 10)
	w.DistancePenalty = weightOrDefault(w.DistancePenalty, 0.1)
	w.InvalidPenalty = weightOrDefault(w.InvalidPenalty, 1)
	if w.ReturnLoad <= 0 || w.ReturnLoad > 1 {
		w.ReturnLoad = 0.9
	}
	return w
}

// DefaultStallThreshold is the number of consecutive rounds without a visit
// after which a round is flagged as stalled.
const DefaultStallThreshold = 3

// RoundReport summarises one coordinator round.
type RoundReport struct {
	Round           int               `json:"round"`
	Decisions       []domain.Decision `json:"decisions"`
	Conflicts       int               `json:"conflicts"`
	Reassigned      int               `json:"reassigned"`
	Stale           int               `json:"stale"`
	Visits          []world.Visit     `json:"visits"`
	Returns         []world.Return    `json:"returns"`
	TotalReward     float64           `json:"total_reward"`
	MeanReward      float64           `json:"mean_reward"`
	DistanceKm      float64           `json:"distance_km"`
	Served          int               `json:"served"`
	ServedThisRound int               `json:"served_this_round"`
	Pending         int               `json:"pending"`
	ActiveAgents    int               `json:"active_agents"`
	Complete        bool              `json:"complete"`
	Stalled         bool              `json:"stalled"`
	Warnings        []string          `json:"warnings,omitempty"`
}

// Coordinator runs decision rounds for every active agent of one world.
// It is the only writer of the world state.
type Coordinator struct {
	world   *world.State
	agents  []*Agent
	sectors Sectors
	weights Weights
	metrics *metrics.Collector

	stallThreshold int
	stallRun       int
	round          int
}

func NewCoordinator(
	w *world.State,
	agents []*Agent,
	sectors Sectors,
	weights Weights,
	stallThreshold int,
	m *metrics.Collector,
) *Coordinator {
	if stallThreshold <= 0 {
		stallThreshold = DefaultStallThreshold
	}
	sorted := slices.Clone(agents)
	slices.SortFunc(sorted, func(a, b *Agent) int { return a.VehicleID - b.VehicleID })

	return &Coordinator{
		world:          w,
		agents:         sorted,
		sectors:        sectors,
		weights:        weights.withDefaults(),
		metrics:        m,
		stallThreshold: stallThreshold,
	}
}

func (c *Coordinator) Agents() []*Agent { return c.agents }

// RunRound collects one decision per active agent, resolves conflicts and
// commits the result in vehicle id order.
func (c *Coordinator) RunRound(ctx context.Context) RoundReport {
	c.round++
	rep := RoundReport{Round: c.round}

	pending := c.world.PendingPoints()
	if len(pending) == 0 {
		rep.Complete = true
		rep.Served = len(c.world.ServedIDs())
		return rep
	}

	decisions := c.collect(ctx, pending, &rep)
	decisions = c.resolve(ctx, pending, decisions, &rep)
	c.commit(ctx, decisions, &rep)

	rep.Decisions = decisions
	if len(decisions) > 0 {
		rep.MeanReward = rep.TotalReward / float64(len(decisions))
	}
	rep.Served = len(c.world.ServedIDs())
	rep.Pending = len(c.world.PendingPoints())
	rep.Complete = rep.Pending == 0

	if rep.ServedThisRound == 0 && !rep.Complete {
		c.stallRun++
	} else {
		c.stallRun = 0
	}
	if c.stallRun >= c.stallThreshold {
		rep.Stalled = true
		msg := fmt.Sprintf("no point served for %d consecutive rounds with %d pending", c.stallRun, rep.Pending)
		rep.Warnings = append(rep.Warnings, msg)
		log.Warn().Int("round", c.round).Int("stall_rounds", c.stallRun).Int("pending", rep.Pending).Msg("dispatch stalled")
	}

	c.metrics.Round(rep.Conflicts, rep.ServedThisRound, rep.Stalled)
	return rep
}

// collect asks every active agent for a decision. Vehicles above the return
// load, or with nothing feasible left anywhere, are sent to the depot.
func (c *Coordinator) collect(ctx context.Context, pending []domain.PickupPoint, rep *RoundReport) []domain.Decision {
	decisions := make([]domain.Decision, 0, len(c.agents))

	for _, a := range c.agents {
		v, ok := c.world.Vehicle(a.VehicleID)
		if !ok || !v.Active {
			continue
		}
		rep.ActiveAgents++

		var d domain.Decision
		switch {
		case v.LoadFraction() > c.weights.ReturnLoad:
			d = depotDecision(v, c.world.Depot(), "load_threshold")
		case len(feasibleFor(v, pending)) == 0:
			d = depotDecision(v, c.world.Depot(), "no_feasible_point")
		default:
			d = a.Policy.Propose(ctx, v, c.sectors.Scope(pending, v), decisions)
		}
		d.VehicleID = v.ID
		decisions = append(decisions, d)
	}

	return decisions
}

// resolve keeps, for every point proposed by more than one vehicle, the
// proposal with the lowest distance per benefit (lower vehicle id on ties).
// Losers get one sequential re-proposal against the points nobody holds,
// so the pass cannot create new conflicts. A loser with no alternative
// returns to the depot.
func (c *Coordinator) resolve(
	ctx context.Context,
	pending []domain.PickupPoint,
	decisions []domain.Decision,
	rep *RoundReport,
) []domain.Decision {
	byTarget := make(map[int][]int)
	for i, d := range decisions {
		if !d.IsDepot() {
			byTarget[d.TargetID] = append(byTarget[d.TargetID], i)
		}
	}

	var losers []int
	for _, idxs := range byTarget {
		if len(idxs) < 2 {
			continue
		}
		rep.Conflicts++

		slices.SortFunc(idxs, func(a, b int) int {
			ra, rb := conflictRank(decisions[a]), conflictRank(decisions[b])
			if ra < rb {
				return -1
			}
			if ra > rb {
				return 1
			}
			return decisions[a].VehicleID - decisions[b].VehicleID
		})
		losers = append(losers, idxs[1:]...)
		log.Debug().Int("point", decisions[idxs[0]].TargetID).Int("winner", decisions[idxs[0]].VehicleID).Int("contenders", len(idxs)).Msg("conflict resolved")
	}
	if len(losers) == 0 {
		return decisions
	}
	slices.SortFunc(losers, func(a, b int) int { return decisions[a].VehicleID - decisions[b].VehicleID })

	lost := make(map[int]bool, len(losers))
	for _, i := range losers {
		lost[i] = true
	}
	claimed := make(map[int]bool)
	for i, d := range decisions {
		if !d.IsDepot() && !lost[i] {
			claimed[d.TargetID] = true
		}
	}

	for _, i := range losers {
		a := c.agentFor(decisions[i].VehicleID)
		v, ok := c.world.Vehicle(decisions[i].VehicleID)
		if a == nil || !ok {
			decisions[i] = domain.Decision{VehicleID: decisions[i].VehicleID, Rationale: "conflict_lost"}
			continue
		}

		remaining := c.sectors.Scope(unclaimed(pending, claimed), v)

		others := make([]domain.Decision, 0, len(decisions))
		for j, d := range decisions {
			if j != i {
				others = append(others, d)
			}
		}

		d := depotDecision(v, c.world.Depot(), "conflict_lost")
		if len(remaining) > 0 {
			d = a.Policy.Propose(ctx, v, remaining, others)
			d.Rationale += "/reassigned"
		}
		d.VehicleID = v.ID
		if !d.IsDepot() && claimed[d.TargetID] {
			d = depotDecision(v, c.world.Depot(), "conflict_lost")
		}
		if !d.IsDepot() {
			claimed[d.TargetID] = true
		}

		decisions[i] = d
		rep.Reassigned++
	}

	return decisions
}

func conflictRank(d domain.Decision) float64 {
	return d.DistanceKm / (d.Benefit + 1)
}

func unclaimed(pending []domain.PickupPoint, claimed map[int]bool) []domain.PickupPoint {
	out := make([]domain.PickupPoint, 0, len(pending))
	for _, p := range pending {
		if !claimed[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

func (c *Coordinator) agentFor(vehicleID int) *Agent {
	for _, a := range c.agents {
		if a.VehicleID == vehicleID {
			return a
		}
	}
	return nil
}

// commit applies decisions to the world in vehicle id order.
func (c *Coordinator) commit(ctx context.Context, decisions []domain.Decision, rep *RoundReport) {
	order := make([]int, len(decisions))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return decisions[a].VehicleID - decisions[b].VehicleID })

	for _, i := range order {
		d := decisions[i]
		if a := c.agentFor(d.VehicleID); a != nil {
			a.Record(d)
		}

		if d.IsDepot() {
			ret, err := c.world.CommitDepotReturn(ctx, d.VehicleID)
			if err != nil {
				log.Warn().Err(err).Int("vehicle", d.VehicleID).Msg("depot return failed")
				continue
			}
			rep.Returns = append(rep.Returns, ret)
			rep.DistanceKm += ret.Route.DistanceKm
			rep.TotalReward -= ret.Route.DistanceKm * c.weights.DistancePenalty
			continue
		}

		visit, err := c.world.CommitVisit(ctx, d.VehicleID, d.TargetID)
		if err != nil {
			rep.Stale++
			rep.TotalReward -= c.weights.InvalidPenalty
			if errors.Is(err, domain.ErrAlreadyServed) || errors.Is(err, domain.ErrCapacityExceeded) {
				log.Debug().Err(err).Int("vehicle", d.VehicleID).Int("point", d.TargetID).Msg("stale proposal discarded")
			} else {
				log.Warn().Err(err).Int("vehicle", d.VehicleID).Int("point", d.TargetID).Msg("visit failed")
			}
			continue
		}

		rep.Visits = append(rep.Visits, visit)
		rep.DistanceKm += visit.Route.DistanceKm
		rep.TotalReward += c.visitReward(visit)
		rep.ServedThisRound += 1 + len(visit.EnRoute)
	}
}

func (c *Coordinator) visitReward(v world.Visit) float64 {
	reward := -v.Route.DistanceKm * c.weights.DistancePenalty
	for _, id := range append([]int{v.PointID}, v.EnRoute...) {
		if p, ok := c.world.Point(id); ok {
			reward += c.weights.BaseReward * float64(p.EffectivePriority())
		}
	}
	return reward
}
