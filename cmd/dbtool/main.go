package main

import (
	"context"
	"flag"

	"github.com/rs/zerolog/log"

	"waste-dispatch-service/internal/adapters/repositories"
	"waste-dispatch-service/internal/bootstrap"
	"waste-dispatch-service/internal/config"
)

// dbtool prepares the store: schema, then the forecast snapshot.
func main() {
	config.Load()
	bootstrap.SetupLogging()

	seedPath := flag.String("seed", config.Get("SEED_PATH", "data/seeds/forecasts.json"), "forecast JSON to load")
	schemaOnly := flag.Bool("schema-only", false, "create tables without seeding")
	flag.Parse()

	store, err := bootstrap.OpenStore()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open store")
	}
	defer store.Close()

	ctx := context.Background()

	log.Info().Msg("initializing database schema")
	if err := repositories.InitSchema(ctx, store); err != nil {
		log.Fatal().Err(err).Msg("schema initialization failed")
	}
	log.Info().Msg("schema ready")

	if *schemaOnly {
		return
	}

	log.Info().Str("path", *seedPath).Msg("seeding forecasts")
	n, err := repositories.SeedFromJSON(ctx, store, *seedPath)
	if err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}
	log.Info().Int("rows", n).Msg("seeding complete")
}
