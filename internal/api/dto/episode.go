package dto

import (
	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/services"
)

type PointRequest struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Street         string  `json:"street"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	DemandKg       float64 `json:"demand_kg"`
	Priority       int     `json:"priority"`
	ServiceMinutes float64 `json:"service_minutes"`
}

func (p PointRequest) ToDomain() domain.PickupPoint {
	return domain.PickupPoint{
		ID:             p.ID,
		Name:           p.Name,
		Street:         p.Street,
		Location:       domain.Coordinates{Lat: p.Lat, Lon: p.Lon},
		DemandKg:       p.DemandKg,
		Priority:       domain.Priority(p.Priority),
		ServiceMinutes: p.ServiceMinutes,
	}
}

// CreateEpisodeRequest starts an episode either from inline points or from
// the forecast stored for Date. Zero fields take the server defaults.
type CreateEpisodeRequest struct {
	Vehicles        int                 `json:"vehicles"`
	CapacityKg      float64             `json:"capacity_kg"`
	Capacities      []float64           `json:"capacities"`
	Depot           *domain.Coordinates `json:"depot"`
	Base            *domain.Coordinates `json:"base"`
	Seed            uint64              `json:"seed"`
	MinDemandKg     float64             `json:"min_demand_kg"`
	EnRoute         bool                `json:"en_route"`
	SkipFinalReturn bool                `json:"skip_final_return"`
	StallThreshold  int                 `json:"stall_threshold"`
	MaxRounds       int                 `json:"max_rounds"`
	Date            string              `json:"date"`
	Points          []PointRequest      `json:"points"`
}

// Config merges the request over defaults.
func (r CreateEpisodeRequest) Config(defaults services.EpisodeConfig) services.EpisodeConfig {
	cfg := defaults
	if r.Vehicles > 0 {
		cfg.Vehicles = r.Vehicles
	}
	if r.CapacityKg > 0 {
		cfg.CapacityKg = r.CapacityKg
	}
	if len(r.Capacities) > 0 {
		cfg.Capacities = r.Capacities
	}
	if r.Depot != nil {
		cfg.Depot = *r.Depot
	}
	if r.Base != nil {
		cfg.Base = *r.Base
	}
	if r.Seed != 0 {
		cfg.Seed = r.Seed
	}
	if r.MinDemandKg > 0 {
		cfg.MinDemandKg = r.MinDemandKg
	}
	if r.StallThreshold > 0 {
		cfg.StallThreshold = r.StallThreshold
	}
	if r.MaxRounds > 0 {
		cfg.MaxRounds = r.MaxRounds
	}
	cfg.EnRoute = cfg.EnRoute || r.EnRoute
	cfg.SkipFinalReturn = cfg.SkipFinalReturn || r.SkipFinalReturn
	return cfg
}

type AutoplayRequest struct {
	IntervalMs int `json:"interval_ms"`
}

type ListEpisodesResponse struct {
	Episodes []services.EpisodeSummary `json:"episodes"`
}

// StreamMessage is one websocket frame of an episode stream.
type StreamMessage struct {
	Type     string                    `json:"type"`
	Snapshot *services.EpisodeSnapshot `json:"snapshot,omitempty"`
	Round    *services.RoundReport     `json:"round,omitempty"`
}
