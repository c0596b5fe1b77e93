package routing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/platform/metrics"
	"waste-dispatch-service/internal/ports"
)

// Options tunes an Oracle. Zero values take the defaults noted per field.
type Options struct {
	// Cache is an optional persistent second tier behind the in-process map.
	Cache   ports.RouteCache
	Metrics *metrics.Collector

	// Timeout bounds each remote attempt. Default 5s.
	Timeout time.Duration
	// Once consecutive failed lookups exceed MaxFailures the oracle
	// switches to straight-line estimates for the rest of its life. Default 50.
	MaxFailures int
	// RetryAttempts per lookup, including the first. Default 2.
	RetryAttempts int
	// RetryBackoff is the first pause between attempts, doubled each time. Default 200ms.
	RetryBackoff time.Duration
	// RatePerSec caps remote calls. Default 10; negative disables the limit.
	RatePerSec float64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = 50
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 2
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 200 * time.Millisecond
	}
	if o.RatePerSec == 0 {
		o.RatePerSec = 10
	}
	return o
}

// Stats is a point-in-time view of the oracle counters.
type Stats struct {
	Lookups             int64 `json:"lookups"`
	CacheHits           int64 `json:"cache_hits"`
	StoreHits           int64 `json:"store_hits"`
	RemoteCalls         int64 `json:"remote_calls"`
	RemoteFailures      int64 `json:"remote_failures"`
	Fallbacks           int64 `json:"fallbacks"`
	ConsecutiveFailures int   `json:"consecutive_failures"`
	Degraded            bool  `json:"degraded"`
}

// Oracle prices movement between coordinates. Route never fails: when the
// provider is unusable it answers with a straight-line estimate.
//
// Successful remote results are cached for the life of the oracle and are
// never modified, so the oracle is safe for concurrent use.
type Oracle struct {
	provider ports.RouteProvider
	opts     Options
	limiter  *rate.Limiter
	group    singleflight.Group

	cacheMu sync.RWMutex
	cache   map[string]domain.RouteResult

	mu    sync.Mutex
	stats Stats
}

func New(provider ports.RouteProvider, opts Options) *Oracle {
	opts = opts.withDefaults()

	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}

	o := &Oracle{
		provider: provider,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		cache:    make(map[string]domain.RouteResult),
	}
	if provider == nil {
		o.stats.Degraded = true
		opts.Metrics.SetDegraded(true)
	}
	return o
}

// Route returns the travel geometry, distance and duration from one point to another.
func (o *Oracle) Route(ctx context.Context, from, to domain.Coordinates) domain.RouteResult {
	o.count(func(s *Stats) { s.Lookups++ })

	if from.Near(to, identicalEps) {
		o.opts.Metrics.RouteLookup("trivial")
		return trivial(to)
	}

	key := Key(from, to)

	if r, ok := o.cached(key); ok {
		return r
	}

	if o.Degraded() {
		return o.fallback(from, to)
	}

	v, _, _ := o.group.Do(key, func() (any, error) {
		return o.lookup(ctx, key, from, to), nil
	})
	return v.(domain.RouteResult)
}

// lookup consults the persistent store, then the provider.
func (o *Oracle) lookup(ctx context.Context, key string, from, to domain.Coordinates) domain.RouteResult {
	// A concurrent caller may have finished the same lookup in between.
	if r, ok := o.cached(key); ok {
		return r
	}

	if o.opts.Cache != nil {
		r, ok, err := o.opts.Cache.GetRoute(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("route store read failed")
		}
		if ok {
			o.remember(key, r)
			o.count(func(s *Stats) { s.StoreHits++ })
			o.opts.Metrics.RouteLookup("store_hit")
			return r
		}
	}

	r, err := o.remote(ctx, from, to)
	if err != nil {
		if ctx.Err() == nil {
			o.recordFailure(err)
		}
		return o.fallback(from, to)
	}

	o.recordSuccess()
	o.remember(key, r)
	o.opts.Metrics.RouteLookup("miss")

	if o.opts.Cache != nil {
		if err := o.opts.Cache.PutRoute(ctx, key, r); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("route store write failed")
		}
	}
	return r
}

// remote calls the provider with bounded retries and exponential backoff.
func (o *Oracle) remote(ctx context.Context, from, to domain.Coordinates) (domain.RouteResult, error) {
	backoff := o.opts.RetryBackoff
	var lastErr error

	for attempt := 1; attempt <= o.opts.RetryAttempts; attempt++ {
		if err := o.limiter.Wait(ctx); err != nil {
			return domain.RouteResult{}, fmt.Errorf("route: rate limit wait: %w", err)
		}

		r, err := o.attempt(ctx, from, to)
		if err == nil {
			return r, nil
		}
		lastErr = err

		if !retryable(err) || attempt == o.opts.RetryAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.RouteResult{}, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}

	return domain.RouteResult{}, lastErr
}

func (o *Oracle) attempt(ctx context.Context, from, to domain.Coordinates) (domain.RouteResult, error) {
	actx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	o.count(func(s *Stats) { s.RemoteCalls++ })
	start := time.Now()

	raw, err := o.provider.Route(actx, from, to)
	if err != nil {
		o.opts.Metrics.RemoteCall("error", time.Since(start))
		return domain.RouteResult{}, fmt.Errorf("route %s: %w", Key(from, to), err)
	}

	r, ok := normalize(raw)
	if !ok {
		o.opts.Metrics.RemoteCall("malformed", time.Since(start))
		return domain.RouteResult{}, fmt.Errorf("route %s: %w", Key(from, to), errMalformed)
	}

	o.opts.Metrics.RemoteCall("ok", time.Since(start))
	return r, nil
}

var errMalformed = errors.New("malformed provider response")

// retryable reports transient failures: timeouts, network errors and
// errors that describe themselves as temporary (429, 5xx).
func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) && temp.Temporary() {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (o *Oracle) fallback(from, to domain.Coordinates) domain.RouteResult {
	o.count(func(s *Stats) { s.Fallbacks++ })
	o.opts.Metrics.RouteLookup("fallback")
	return straightLine(from, to)
}

func (o *Oracle) cached(key string) (domain.RouteResult, bool) {
	o.cacheMu.RLock()
	r, ok := o.cache[key]
	o.cacheMu.RUnlock()
	if ok {
		o.count(func(s *Stats) { s.CacheHits++ })
		o.opts.Metrics.RouteLookup("hit")
	}
	return r, ok
}

func (o *Oracle) remember(key string, r domain.RouteResult) {
	o.cacheMu.Lock()
	if _, ok := o.cache[key]; !ok {
		o.cache[key] = r
	}
	o.cacheMu.Unlock()
}

func (o *Oracle) recordSuccess() {
	o.mu.Lock()
	o.stats.ConsecutiveFailures = 0
	o.mu.Unlock()
}

func (o *Oracle) recordFailure(err error) {
	o.mu.Lock()
	o.stats.RemoteFailures++
	o.stats.ConsecutiveFailures++
	tripped := !o.stats.Degraded && o.stats.ConsecutiveFailures > o.opts.MaxFailures
	if tripped {
		o.stats.Degraded = true
	}
	failures := o.stats.ConsecutiveFailures
	o.mu.Unlock()

	log.Debug().Err(err).Int("consecutive", failures).Msg("route provider failed, using straight line")
	if tripped {
		o.opts.Metrics.SetDegraded(true)
		log.Warn().Int("failures", failures).Msg("route provider disabled, straight-line estimates from now on")
	}
}

func (o *Oracle) count(fn func(*Stats)) {
	o.mu.Lock()
	fn(&o.stats)
	o.mu.Unlock()
}

// Degraded reports whether remote calls have been abandoned.
func (o *Oracle) Degraded() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats.Degraded
}

func (o *Oracle) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}
