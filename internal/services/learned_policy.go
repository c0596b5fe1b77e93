package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/ports"
)

// learnedDepotLoadFraction is the load under which the trained policy may
// not send a vehicle home while it can still collect something.
const learnedDepotLoadFraction = 0.9

// LearnedPolicy asks a trained model for the next action and falls back to
// the heuristic whenever the answer is unusable.
type LearnedPolicy struct {
	Model     ports.DecisionModel
	Heuristic *HeuristicPolicy
	Slots     int
}

func NewLearnedPolicy(model ports.DecisionModel, heuristic *HeuristicPolicy) *LearnedPolicy {
	return &LearnedPolicy{Model: model, Heuristic: heuristic, Slots: ObservationSlots}
}

func (l *LearnedPolicy) Propose(
	ctx context.Context,
	v domain.Vehicle,
	candidates []domain.PickupPoint,
	others []domain.Decision,
) domain.Decision {
	h := l.Heuristic
	obs, slots := BuildObservation(v, h.Depot, candidates, l.Slots, h.Weights.MaxDistanceKm)

	action, err := l.Model.Predict(ctx, obs)
	if err != nil {
		log.Debug().Err(err).Int("vehicle", v.ID).Msg("policy model failed, using heuristic")
		return l.fallback(ctx, v, candidates, others, "model_error")
	}

	if action == domain.DepotTarget {
		if v.LoadKg <= 0 {
			return l.fallback(ctx, v, candidates, others, "guard_empty_depot")
		}
		if v.LoadFraction() < learnedDepotLoadFraction && len(feasibleFor(v, slots)) > 0 {
			return l.fallback(ctx, v, candidates, others, "guard_early_depot")
		}
		return depotDecision(v, h.Depot, "learned_depot")
	}

	if action < 1 || action > len(slots) {
		return l.fallback(ctx, v, candidates, others, "invalid_action")
	}

	target := slots[action-1]
	if !v.CanServe(target) {
		return l.fallback(ctx, v, candidates, others, "infeasible_action")
	}

	r := h.Router.Route(ctx, v.Position, target.Location)
	return domain.Decision{
		VehicleID:  v.ID,
		TargetID:   target.ID,
		Rationale:  "learned",
		Score:      1,
		DistanceKm: r.DistanceKm,
		Benefit:    target.Benefit(),
	}
}

func (l *LearnedPolicy) fallback(
	ctx context.Context,
	v domain.Vehicle,
	candidates []domain.PickupPoint,
	others []domain.Decision,
	reason string,
) domain.Decision {
	d := l.Heuristic.Propose(ctx, v, candidates, others)
	d.Rationale = d.Rationale + "/" + reason
	return d
}
