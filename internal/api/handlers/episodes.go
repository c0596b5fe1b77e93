package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"waste-dispatch-service/internal/api/dto"
	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/ports"
	"waste-dispatch-service/internal/services"
)

const (
	maxVehicles             = 50
	defaultAutoplayInterval = 500 * time.Millisecond
	minAutoplayInterval     = 10 * time.Millisecond
)

type EpisodeHandler struct {
	Registry *services.Registry
	Repo     ports.PointRepository
	Defaults services.EpisodeConfig
}

// Create starts an episode from inline points, or from the stored forecast
// for the requested date when none are given.
func (h *EpisodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateEpisodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cfg := req.Config(h.Defaults)
	if len(cfg.Capacities) == 0 && (cfg.Vehicles < 1 || cfg.Vehicles > maxVehicles) {
		writeError(w, r, http.StatusBadRequest, "vehicles must be between 1 and 50")
		return
	}
	if len(cfg.Capacities) > maxVehicles {
		writeError(w, r, http.StatusBadRequest, "at most 50 capacities")
		return
	}

	var points []domain.PickupPoint
	if len(req.Points) > 0 {
		points = make([]domain.PickupPoint, 0, len(req.Points))
		for _, p := range req.Points {
			points = append(points, p.ToDomain())
		}
	} else {
		if h.Repo == nil {
			writeError(w, r, http.StatusBadRequest, "points are required")
			return
		}
		day, err := parseDay(req.Date)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		points, err = h.Repo.ListPickupPoints(r.Context(), day)
		if err != nil {
			writeServiceError(w, r, "load forecast", err)
			return
		}
		if len(points) == 0 {
			writeError(w, r, http.StatusNotFound, "no forecast for "+day.Format(dateLayout))
			return
		}
	}

	e, err := h.Registry.Create(cfg, points)
	if err != nil {
		writeServiceError(w, r, "create episode", err)
		return
	}

	w.Header().Set("Location", "/episodes/"+e.ID)
	writeJSON(w, r, http.StatusCreated, e.Summary())
}

func (h *EpisodeHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, dto.ListEpisodesResponse{Episodes: h.Registry.List()})
}

func (h *EpisodeHandler) episode(w http.ResponseWriter, r *http.Request) (*services.Episode, bool) {
	e, err := h.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "get episode", err)
		return nil, false
	}
	return e, true
}

// Get returns a consistent snapshot, even while autoplay is running.
func (h *EpisodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, ok := h.episode(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, e.Snapshot())
}

func (h *EpisodeHandler) Round(w http.ResponseWriter, r *http.Request) {
	e, ok := h.episode(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, e.RunRound(r.Context()))
}

// Run plays the episode to completion, or for ?max_rounds more rounds.
func (h *EpisodeHandler) Run(w http.ResponseWriter, r *http.Request) {
	e, ok := h.episode(w, r)
	if !ok {
		return
	}

	maxRounds := 0
	if raw := r.URL.Query().Get("max_rounds"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, "max_rounds must be a positive integer")
			return
		}
		maxRounds = n
	}

	writeJSON(w, r, http.StatusOK, e.RunToCompletion(r.Context(), maxRounds))
}

func (h *EpisodeHandler) StartAutoplay(w http.ResponseWriter, r *http.Request) {
	e, ok := h.episode(w, r)
	if !ok {
		return
	}

	var req dto.AutoplayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	interval := defaultAutoplayInterval
	if req.IntervalMs != 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}
	if interval < minAutoplayInterval {
		writeError(w, r, http.StatusBadRequest, "interval_ms must be at least 10")
		return
	}

	if err := e.Autoplay(interval); err != nil {
		writeServiceError(w, r, "start autoplay", err)
		return
	}
	log.Info().Str("episode", e.ID).Dur("interval", interval).Msg("autoplay started")
	writeJSON(w, r, http.StatusAccepted, e.Summary())
}

func (h *EpisodeHandler) StopAutoplay(w http.ResponseWriter, r *http.Request) {
	e, ok := h.episode(w, r)
	if !ok {
		return
	}
	e.Stop()
	writeJSON(w, r, http.StatusOK, e.Summary())
}

func (h *EpisodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.Delete(r.PathValue("id")); err != nil {
		writeServiceError(w, r, "delete episode", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
