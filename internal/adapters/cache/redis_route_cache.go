package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/platform/obs"
)

const redisKeyPrefix = "dispatch:route:"

// RedisRouteCache shares route lookups between processes.
// A zero TTL keeps entries until evicted by Redis.
type RedisRouteCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisRouteCache(client *redis.Client, ttl time.Duration) *RedisRouteCache {
	return &RedisRouteCache{Client: client, TTL: ttl}
}

func (c *RedisRouteCache) GetRoute(ctx context.Context, key string) (_ domain.RouteResult, _ bool, err error) {
	defer obs.Time(ctx, "route.redis.Get")(&err)

	if c.Client == nil {
		return domain.RouteResult{}, false, errors.New("redis route cache: client is nil")
	}

	raw, err := c.Client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RouteResult{}, false, nil
	}
	if err != nil {
		return domain.RouteResult{}, false, fmt.Errorf("redis route cache: get %q: %w", key, err)
	}

	var r domain.RouteResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.RouteResult{}, false, fmt.Errorf("redis route cache: decode %q: %w", key, err)
	}
	return r, true, nil
}

func (c *RedisRouteCache) PutRoute(ctx context.Context, key string, r domain.RouteResult) (err error) {
	defer obs.Time(ctx, "route.redis.Put")(&err)

	if c.Client == nil {
		return errors.New("redis route cache: client is nil")
	}

	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("redis route cache: encode %q: %w", key, err)
	}

	if err := c.Client.Set(ctx, redisKeyPrefix+key, raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("redis route cache: set %q: %w", key, err)
	}
	return nil
}
