package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"waste-dispatch-service/internal/adapters/cache"
	"waste-dispatch-service/internal/adapters/distance"
	"waste-dispatch-service/internal/adapters/policy"
	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/platform/db"
)

func TestRouteCacheSelection(t *testing.T) {
	ctx := context.Background()

	raw, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	store := sqlx.NewDb(raw, "sqlite")
	defer store.Close()

	t.Setenv("ROUTE_CACHE", "memory")
	c, done, err := RouteCache(ctx, store)
	require.NoError(t, err)
	require.Nil(t, c)
	done()

	t.Setenv("ROUTE_CACHE", "sqlite")
	c, done, err = RouteCache(ctx, store)
	require.NoError(t, err)
	require.IsType(t, &cache.SQLRouteCache{}, c)
	done()

	_, _, err = RouteCache(ctx, nil)
	require.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	mr := miniredis.RunT(t)
	t.Setenv("ROUTE_CACHE", "redis")
	t.Setenv("REDIS_URL", "redis://"+mr.Addr()+"/0")
	c, done, err = RouteCache(ctx, nil)
	require.NoError(t, err)
	require.IsType(t, &cache.RedisRouteCache{}, c)
	done()

	t.Setenv("ROUTE_CACHE", "memcached")
	_, _, err = RouteCache(ctx, store)
	require.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestRouteProviderSelection(t *testing.T) {
	t.Setenv("ROUTE_PROVIDER", "none")
	p, err := RouteProvider()
	require.NoError(t, err)
	require.Nil(t, p)

	t.Setenv("ROUTE_PROVIDER", "")
	t.Setenv("ORS_API_KEY", "key")
	p, err = RouteProvider()
	require.NoError(t, err)
	require.IsType(t, &distance.ORSRouteProvider{}, p)

	t.Setenv("ORS_API_KEY", "")
	t.Setenv("OSRM_URLS", "http://localhost:5000")
	p, err = RouteProvider()
	require.NoError(t, err)
	require.IsType(t, &distance.OSRMRouteProvider{}, p)
}

func TestOracleWithoutProviderIsDegraded(t *testing.T) {
	o := Oracle(nil, nil, nil)
	require.True(t, o.Degraded())

	r := o.Route(context.Background(), domain.Coordinates{Lat: -20.2, Lon: -70.1}, domain.Coordinates{Lat: -20.21, Lon: -70.1})
	require.True(t, r.Fallback)
}

func TestDecisionModelIsOptional(t *testing.T) {
	t.Setenv("POLICY_URL", "")
	m, err := DecisionModel()
	require.NoError(t, err)
	require.Nil(t, m)

	t.Setenv("POLICY_URL", "http://localhost:9000")
	m, err = DecisionModel()
	require.NoError(t, err)
	require.IsType(t, &policy.HTTPModel{}, m)
}

func TestDepotFromEnv(t *testing.T) {
	t.Setenv("DEPOT_LAT", "-33.45")
	t.Setenv("DEPOT_LON", "-70.66")
	require.Equal(t, domain.Coordinates{Lat: -33.45, Lon: -70.66}, Depot())
}
