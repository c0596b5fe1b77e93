// Command dispatch runs one collection episode from a YAML scenario and
// prints the final report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"

	"waste-dispatch-service/internal/adapters/repositories"
	"waste-dispatch-service/internal/bootstrap"
	"waste-dispatch-service/internal/config"
	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/ports"
	"waste-dispatch-service/internal/services"
)

func main() {
	config.Load()
	bootstrap.SetupLogging()

	scenarioPath := flag.String("scenario", "", "YAML scenario file")
	maxRounds := flag.Int("max-rounds", 0, "round budget (0 uses the scenario or default budget)")
	asJSON := flag.Bool("json", false, "print the final report as JSON")
	verbose := flag.Bool("v", false, "print every round")
	flag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "usage: dispatch -scenario file.yaml [-max-rounds n] [-json] [-v]")
		os.Exit(2)
	}

	sc, err := loadScenario(*scenarioPath)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load scenario")
	}
	if sc.Episode.Depot == (domain.Coordinates{}) {
		sc.Episode.Depot = bootstrap.Depot()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rep, err := run(ctx, sc, *maxRounds, *verbose)
	if err != nil {
		log.Fatal().Err(err).Msg("episode failed")
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatal().Err(err).Msg("cannot encode report")
		}
		return
	}
	if err := writeReport(os.Stdout, rep); err != nil {
		log.Fatal().Err(err).Msg("cannot write report")
	}
}

func run(ctx context.Context, sc scenario, maxRounds int, verbose bool) (services.FinalReport, error) {
	var (
		cacheStore ports.RouteCache
		points     = sc.Points
	)

	// The store is only needed for forecast dates or a SQL route cache.
	needStore := len(points) == 0 || config.Get("ROUTE_CACHE", "memory") != "memory"
	if needStore {
		store, err := bootstrap.OpenStore()
		if err != nil {
			return services.FinalReport{}, err
		}
		defer store.Close()

		if err := repositories.InitSchema(ctx, store); err != nil {
			return services.FinalReport{}, err
		}

		if len(points) == 0 {
			day, err := time.Parse("2006-01-02", sc.Date)
			if err != nil {
				return services.FinalReport{}, fmt.Errorf("scenario date %q: %w", sc.Date, err)
			}
			points, err = repositories.NewSQLPointRepository(store).ListPickupPoints(ctx, day)
			if err != nil {
				return services.FinalReport{}, err
			}
		}

		c, closeCache, err := bootstrap.RouteCache(ctx, store)
		if err != nil {
			return services.FinalReport{}, err
		}
		defer closeCache()
		cacheStore = c
	}

	provider, err := bootstrap.RouteProvider()
	if err != nil {
		return services.FinalReport{}, err
	}
	model, err := bootstrap.DecisionModel()
	if err != nil {
		return services.FinalReport{}, err
	}

	deps := services.Deps{
		Oracle: bootstrap.Oracle(provider, cacheStore, nil),
		Model:  model,
	}
	if verbose {
		deps.OnRound = func(_ string, rep services.RoundReport) {
			fmt.Fprintln(os.Stderr, roundLine(rep))
		}
	}

	e, err := services.NewEpisode(sc.Episode, points, deps)
	if err != nil {
		return services.FinalReport{}, err
	}
	return e.RunToCompletion(ctx, maxRounds), nil
}
