package dto

type PointResponse struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Street     string  `json:"street,omitempty"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	DemandKg   float64 `json:"demand_kg"`
	Priority   int     `json:"priority"`
	Confidence string  `json:"confidence,omitempty"`
}

type ListPointsResponse struct {
	Date   string          `json:"date"`
	Points []PointResponse `json:"points"`
}
