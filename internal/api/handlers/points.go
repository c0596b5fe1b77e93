package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"waste-dispatch-service/internal/api/dto"
	"waste-dispatch-service/internal/ports"
)

const dateLayout = "2006-01-02"

// PointHandler exposes the stored demand forecast.
type PointHandler struct {
	Repo ports.PointRepository
}

// parseDay reads ?date=YYYY-MM-DD, defaulting to today.
func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now(), nil
	}
	return time.Parse(dateLayout, raw)
}

func (h *PointHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		writeError(w, r, http.StatusServiceUnavailable, "forecast store not configured")
		return
	}

	day, err := parseDay(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	points, err := h.Repo.ListPickupPoints(r.Context(), day)
	if err != nil {
		log.Error().Err(err).Msg("list pickup points failed")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := dto.ListPointsResponse{
		Date:   day.Format(dateLayout),
		Points: make([]dto.PointResponse, 0, len(points)),
	}
	for _, p := range points {
		res.Points = append(res.Points, dto.PointResponse{
			ID:         p.ID,
			Name:       p.Name,
			Street:     p.Street,
			Lat:        p.Location.Lat,
			Lon:        p.Location.Lon,
			DemandKg:   p.DemandKg,
			Priority:   int(p.Priority),
			Confidence: p.Confidence,
		})
	}

	writeJSON(w, r, http.StatusOK, res)
}
