package services

import (
	"context"
	"sync"

	"waste-dispatch-service/internal/domain"
)

const historyLimit = 32

// AgentPolicy proposes the next target for one vehicle. Candidates are the
// pending points in the agent's scope. Others holds the decisions already
// taken by agents earlier in the same round.
type AgentPolicy interface {
	Propose(ctx context.Context, v domain.Vehicle, candidates []domain.PickupPoint, others []domain.Decision) domain.Decision
}

// Agent is the decision maker attached to one vehicle.
type Agent struct {
	VehicleID int
	Policy    AgentPolicy

	mu      sync.Mutex
	history []domain.Decision
}

func NewAgent(vehicleID int, policy AgentPolicy) *Agent {
	return &Agent{VehicleID: vehicleID, Policy: policy}
}

// Record keeps the last historyLimit decisions.
func (a *Agent) Record(d domain.Decision) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, d)
	if over := len(a.history) - historyLimit; over > 0 {
		a.history = append(a.history[:0], a.history[over:]...)
	}
}

func (a *Agent) History() []domain.Decision {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Decision, len(a.history))
	copy(out, a.history)
	return out
}
