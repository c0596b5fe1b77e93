package api

import (
	"net/http"

	"waste-dispatch-service/internal/api/handlers"
	"waste-dispatch-service/internal/platform/metrics"
	"waste-dispatch-service/internal/ports"
	"waste-dispatch-service/internal/routing"
	"waste-dispatch-service/internal/services"
)

// Deps are what the HTTP layer needs from the rest of the process.
// Repo and Metrics may be nil.
type Deps struct {
	Registry *services.Registry
	Oracle   *routing.Oracle
	Repo     ports.PointRepository
	Broker   *handlers.Broker
	Metrics  *metrics.Collector
	Defaults services.EpisodeConfig
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	health := &handlers.HealthHandler{Oracle: d.Oracle}
	points := &handlers.PointHandler{Repo: d.Repo}
	episodes := &handlers.EpisodeHandler{
		Registry: d.Registry,
		Repo:     d.Repo,
		Defaults: d.Defaults,
	}

	mux.HandleFunc("GET /health", health.Check)
	mux.HandleFunc("GET /points", points.List)

	mux.HandleFunc("POST /episodes", episodes.Create)
	mux.HandleFunc("GET /episodes", episodes.List)
	mux.HandleFunc("GET /episodes/{id}", episodes.Get)
	mux.HandleFunc("DELETE /episodes/{id}", episodes.Delete)
	mux.HandleFunc("POST /episodes/{id}/rounds", episodes.Round)
	mux.HandleFunc("POST /episodes/{id}/run", episodes.Run)
	mux.HandleFunc("POST /episodes/{id}/autoplay", episodes.StartAutoplay)
	mux.HandleFunc("DELETE /episodes/{id}/autoplay", episodes.StopAutoplay)

	if d.Broker != nil {
		stream := &handlers.StreamHandler{Registry: d.Registry, Broker: d.Broker}
		mux.HandleFunc("GET /episodes/{id}/stream", stream.Stream)
	}
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	return loggingMiddleware(d.Metrics, mux)
}
