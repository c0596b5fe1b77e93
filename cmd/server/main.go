package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"waste-dispatch-service/internal/adapters/repositories"
	"waste-dispatch-service/internal/api"
	"waste-dispatch-service/internal/api/handlers"
	"waste-dispatch-service/internal/bootstrap"
	"waste-dispatch-service/internal/config"
	"waste-dispatch-service/internal/platform/metrics"
	"waste-dispatch-service/internal/services"
)

// main is the application composition root.
// It wires concrete adapters (store, route cache, route provider, policy
// model) behind ports and starts the HTTP server.
func main() {
	config.Load()
	bootstrap.SetupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open store")
	}
	defer store.Close()

	// Initialize schema and seed demo data on startup for local runs.
	if err := repositories.InitSchema(ctx, store); err != nil {
		log.Fatal().Err(err).Msg("cannot initialise schema")
	}
	if seedPath := config.Get("SEED_PATH", ""); seedPath != "" {
		n, err := repositories.SeedFromJSON(ctx, store, seedPath)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot seed forecasts")
		}
		log.Info().Int("rows", n).Str("path", seedPath).Msg("forecasts seeded")
	}

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot register metrics")
	}

	routeCache, closeCache, err := bootstrap.RouteCache(ctx, store)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open route cache")
	}
	defer closeCache()

	provider, err := bootstrap.RouteProvider()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create route provider")
	}
	model, err := bootstrap.DecisionModel()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create policy model")
	}

	oracle := bootstrap.Oracle(provider, routeCache, m)
	broker := handlers.NewBroker()
	registry := services.NewRegistry(services.Deps{
		Oracle:  oracle,
		Model:   model,
		Metrics: m,
		OnRound: broker.Publish,
	})
	defer registry.Close()

	router := api.NewRouter(api.Deps{
		Registry: registry,
		Oracle:   oracle,
		Repo:     repositories.NewSQLPointRepository(store),
		Broker:   broker,
		Metrics:  m,
		Defaults: services.EpisodeConfig{
			Vehicles:       config.GetInt("DEFAULT_VEHICLES", 3),
			CapacityKg:     config.GetFloat("DEFAULT_CAPACITY_KG", 1000),
			Depot:          bootstrap.Depot(),
			StallThreshold: config.GetInt("STALL_THRESHOLD", services.DefaultStallThreshold),
		},
	})

	port := config.Get("PORT", "8080")
	// Long write timeout: a full run can wait on many cold-cache route lookups.
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		registry.Close()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}
