package domain

// Collection truck state for the duration of an episode.
// Load, Trip and LastLeg describe the current trip and reset at the depot.
// Route and LoadHistory accumulate over the whole episode.
type Vehicle struct {
	ID          int           `json:"id"`
	CapacityKg  float64       `json:"capacity_kg"`
	LoadKg      float64       `json:"load_kg"`
	Position    Coordinates   `json:"position"`
	DistanceKm  float64       `json:"distance_km"`
	DurationMin float64       `json:"duration_min"`
	Trip        []int         `json:"trip"`
	LastLeg     []Coordinates `json:"last_leg,omitempty"`
	Route       []int         `json:"route"`
	Sector      int           `json:"sector"`
	Active      bool          `json:"active"`
	LastStreet  string        `json:"last_street,omitempty"`
	CollectedKg float64       `json:"collected_kg"`
	Trips       int           `json:"trips"`
	LoadHistory []float64     `json:"load_history"`
}

// AvailableKg is the remaining capacity for the current trip.
func (v Vehicle) AvailableKg() float64 {
	if rem := v.CapacityKg - v.LoadKg; rem > 0 {
		return rem
	}
	return 0
}

// LoadFraction is LoadKg / CapacityKg, or 0 when capacity is unset.
func (v Vehicle) LoadFraction() float64 {
	if v.CapacityKg <= 0 {
		return 0
	}
	return v.LoadKg / v.CapacityKg
}

// CanServe reports whether p is pending and fits in the remaining capacity.
func (v Vehicle) CanServe(p PickupPoint) bool {
	return !p.Served && p.DemandKg <= v.AvailableKg()
}
