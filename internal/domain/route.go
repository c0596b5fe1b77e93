package domain

// DepotTarget is the Decision target id meaning "return to the unload depot".
const DepotTarget = 0

// Travel geometry and cost between two coordinates.
// Geometry is ordered (lat, lon) pairs. Fallback marks a straight-line
// estimate used when the street-routing provider was not consulted or failed.
type RouteResult struct {
	Geometry    []Coordinates `json:"geometry"`
	DistanceKm  float64       `json:"distance_km"`
	DurationMin float64       `json:"duration_min"`
	Fallback    bool          `json:"fallback"`
}

// One agent's proposal for the current round.
// A Decision is consumed by the coordinator and then kept only in the
// agent's bounded history.
type Decision struct {
	VehicleID  int     `json:"vehicle_id"`
	TargetID   int     `json:"target_id"`
	Rationale  string  `json:"rationale"`
	Score      float64 `json:"score"`
	DistanceKm float64 `json:"distance_km"`
	Benefit    float64 `json:"benefit"`
}

// IsDepot reports whether the decision is a depot return.
func (d Decision) IsDepot() bool { return d.TargetID == DepotTarget }
