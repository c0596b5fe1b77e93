package domain

// Priority class of a pickup point. Higher is more urgent.
type Priority int

const (
	PriorityNormal Priority = 1
	PriorityHigh   Priority = 2
	PriorityUrgent Priority = 3

	MaxPriority = PriorityUrgent
)

// DefaultServiceMinutes is the nominal time spent loading at a point.
const DefaultServiceMinutes = 10.0

// Represents a single collection point with its forecast demand.
// A PickupPoint is created from the forecasting snapshot when an episode
// starts. Served is terminal: once set, no vehicle may target the point again.
type PickupPoint struct {
	ID             int         `json:"id" yaml:"id"`
	Name           string      `json:"name" yaml:"name"`
	Street         string      `json:"street,omitempty" yaml:"street"`
	Location       Coordinates `json:"location" yaml:"location"`
	DemandKg       float64     `json:"demand_kg" yaml:"demand_kg"`
	Priority       Priority    `json:"priority" yaml:"priority"`
	Served         bool        `json:"served" yaml:"served"`
	ServiceMinutes float64     `json:"service_minutes" yaml:"service_minutes"`
	Confidence     string      `json:"confidence,omitempty" yaml:"confidence"`
}

// Benefit is the demand weighted by priority.
func (p PickupPoint) Benefit() float64 {
	return p.DemandKg * float64(p.EffectivePriority())
}

// EffectivePriority clamps unset or out of range priorities into [Normal, MaxPriority].
func (p PickupPoint) EffectivePriority() Priority {
	switch {
	case p.Priority < PriorityNormal:
		return PriorityNormal
	case p.Priority > MaxPriority:
		return MaxPriority
	default:
		return p.Priority
	}
}
