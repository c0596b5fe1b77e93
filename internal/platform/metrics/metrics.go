package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the dispatch service's Prometheus metrics.
// A nil *Collector is valid and records nothing, so components can be
// built without metrics in tests and the CLI.
type Collector struct {
	gatherer prometheus.Gatherer

	RouteLookups   *prometheus.CounterVec
	RemoteCalls    *prometheus.CounterVec
	RemoteLatency  prometheus.Histogram
	OracleDegraded prometheus.Gauge

	Rounds         prometheus.Counter
	Conflicts      prometheus.Counter
	PointsServed   prometheus.Counter
	Stalls         prometheus.Counter
	ActiveEpisodes prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
}

// New registers the metrics against reg, defaulting to the global
// registry when reg is nil. Registering twice on the same registry reuses
// the existing collectors.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.RouteLookups, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_route_lookups_total",
		Help: "Route lookups by result (hit, store_hit, miss, fallback, trivial).",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if c.RemoteCalls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_route_remote_calls_total",
		Help: "Calls to the street-routing provider by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if c.RemoteLatency, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_route_remote_duration_seconds",
		Help:    "Street-routing provider latency in seconds.",
		Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})); err != nil {
		return nil, err
	}
	if c.OracleDegraded, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_route_oracle_degraded",
		Help: "1 once the route oracle stopped calling the provider.",
	})); err != nil {
		return nil, err
	}
	if c.Rounds, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_rounds_total",
		Help: "Coordinator rounds executed.",
	})); err != nil {
		return nil, err
	}
	if c.Conflicts, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_conflicts_total",
		Help: "Pickup points proposed by more than one vehicle in a round.",
	})); err != nil {
		return nil, err
	}
	if c.PointsServed, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_points_served_total",
		Help: "Pickup points served.",
	})); err != nil {
		return nil, err
	}
	if c.Stalls, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_stall_rounds_total",
		Help: "Rounds without progress while points were pending.",
	})); err != nil {
		return nil, err
	}
	if c.ActiveEpisodes, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_active_episodes",
		Help: "Episodes currently held by the registry.",
	})); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})); err != nil {
		return nil, err
	}

	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("metrics: register: %w", err)
	}
	return col, nil
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) RouteLookup(result string) {
	if c == nil {
		return
	}
	c.RouteLookups.WithLabelValues(result).Inc()
}

func (c *Collector) RemoteCall(outcome string, dur time.Duration) {
	if c == nil {
		return
	}
	c.RemoteCalls.WithLabelValues(outcome).Inc()
	c.RemoteLatency.Observe(dur.Seconds())
}

func (c *Collector) SetDegraded(on bool) {
	if c == nil {
		return
	}
	if on {
		c.OracleDegraded.Set(1)
		return
	}
	c.OracleDegraded.Set(0)
}

// Round records one coordinator round.
func (c *Collector) Round(conflicts, served int, stalled bool) {
	if c == nil {
		return
	}
	c.Rounds.Inc()
	c.Conflicts.Add(float64(conflicts))
	c.PointsServed.Add(float64(served))
	if stalled {
		c.Stalls.Inc()
	}
}

func (c *Collector) SetActiveEpisodes(n int) {
	if c == nil {
		return
	}
	c.ActiveEpisodes.Set(float64(n))
}

func (c *Collector) HTTPRequest(method, route string, code int) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, fmt.Sprint(code)).Inc()
}
