// Package bootstrap builds the process-wide collaborators from the
// environment. Both the HTTP server and the CLI are composed from it.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"waste-dispatch-service/internal/adapters/cache"
	"waste-dispatch-service/internal/adapters/distance"
	"waste-dispatch-service/internal/adapters/policy"
	"waste-dispatch-service/internal/config"
	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/platform/db"
	"waste-dispatch-service/internal/platform/metrics"
	"waste-dispatch-service/internal/ports"
	"waste-dispatch-service/internal/routing"
)

// SetupLogging configures the global zerolog logger from LOG_LEVEL and
// LOG_FORMAT (console or json).
func SetupLogging() {
	level, err := zerolog.ParseLevel(strings.ToLower(config.Get("LOG_LEVEL", "info")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.Get("LOG_FORMAT", "console") == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
}

// OpenStore connects to Postgres when DATABASE_URL is set, else to the
// SQLite file at DB_PATH.
func OpenStore() (*sqlx.DB, error) {
	if url := strings.TrimSpace(config.Get("DATABASE_URL", "")); url != "" {
		raw, err := db.Open(url)
		if err != nil {
			return nil, err
		}
		log.Info().Str("driver", "pgx").Msg("store connected")
		return sqlx.NewDb(raw, "pgx"), nil
	}

	path := config.Get("DB_PATH", "data/app.db")
	raw, err := db.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", "sqlite").Str("path", path).Msg("store connected")
	return sqlx.NewDb(raw, "sqlite"), nil
}

// RouteCache picks the second-tier route cache from ROUTE_CACHE:
// memory (none), sql (the store), or redis. The returned func releases
// whatever the cache opened.
func RouteCache(ctx context.Context, store *sqlx.DB) (ports.RouteCache, func(), error) {
	kind := strings.ToLower(config.Get("ROUTE_CACHE", "sql"))
	noop := func() {}

	switch kind {
	case "memory", "none", "":
		return nil, noop, nil
	case "sql", "sqlite", "postgres":
		if store == nil {
			return nil, noop, fmt.Errorf("route cache %q: no store: %w", kind, domain.ErrInvalidConfiguration)
		}
		return cache.NewSQLRouteCache(store), noop, nil
	case "redis":
		opt, err := redis.ParseURL(config.Get("REDIS_URL", "redis://localhost:6379/0"))
		if err != nil {
			return nil, noop, fmt.Errorf("route cache: parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("route cache: ping redis: %w", err)
		}
		ttl := config.GetDuration("ROUTE_CACHE_TTL", 7*24*time.Hour)
		log.Info().Str("addr", opt.Addr).Dur("ttl", ttl).Msg("redis route cache ready")
		return cache.NewRedisRouteCache(client, ttl), func() { _ = client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("route cache %q: %w", kind, domain.ErrInvalidConfiguration)
	}
}

// RouteProvider selects OpenRouteService when ORS_API_KEY is set and the
// public OSRM servers otherwise. ROUTE_PROVIDER=none runs without one.
func RouteProvider() (ports.RouteProvider, error) {
	timeout := config.GetDuration("ORACLE_TIMEOUT", 5*time.Second)

	switch strings.ToLower(config.Get("ROUTE_PROVIDER", "")) {
	case "none", "offline":
		log.Warn().Msg("no route provider, using straight-line distances")
		return nil, nil
	}

	if key := strings.TrimSpace(config.Get("ORS_API_KEY", "")); key != "" {
		p, err := distance.NewORSRouteProvider(key, config.Get("ORS_PROFILE", "driving-hgv"), timeout)
		if err != nil {
			return nil, err
		}
		log.Info().Str("provider", "ors").Msg("route provider ready")
		return p, nil
	}

	servers := config.GetList("OSRM_URLS", distance.DefaultOSRMServers)
	p, err := distance.NewOSRMRouteProvider(servers, timeout)
	if err != nil {
		return nil, err
	}
	log.Info().Str("provider", "osrm").Strs("servers", servers).Msg("route provider ready")
	return p, nil
}

// Oracle builds the distance oracle with ORACLE_* tuning.
func Oracle(provider ports.RouteProvider, store ports.RouteCache, m *metrics.Collector) *routing.Oracle {
	return routing.New(provider, routing.Options{
		Cache:         store,
		Metrics:       m,
		Timeout:       config.GetDuration("ORACLE_TIMEOUT", 5*time.Second),
		MaxFailures:   config.GetInt("ORACLE_MAX_FAILURES", 50),
		RetryAttempts: config.GetInt("ORACLE_RETRY_ATTEMPTS", 2),
		RetryBackoff:  config.GetDuration("ORACLE_RETRY_BACKOFF", 200*time.Millisecond),
		RatePerSec:    config.GetFloat("ORACLE_RATE_PER_SEC", 10),
	})
}

// DecisionModel returns the trained policy behind POLICY_URL, or nil when
// it is unset so episodes use the heuristic.
func DecisionModel() (ports.DecisionModel, error) {
	url := strings.TrimSpace(config.Get("POLICY_URL", ""))
	if url == "" {
		return nil, nil
	}
	m, err := policy.NewHTTPModel(url, config.Get("POLICY_API_KEY", ""), config.GetDuration("POLICY_TIMEOUT", 2*time.Second))
	if err != nil {
		return nil, err
	}
	log.Info().Str("url", url).Msg("learned policy enabled")
	return m, nil
}

// Depot reads DEPOT_LAT / DEPOT_LON.
func Depot() domain.Coordinates {
	return domain.Coordinates{
		Lat: config.GetFloat("DEPOT_LAT", -20.2666),
		Lon: config.GetFloat("DEPOT_LON", -70.1300),
	}
}
