package distance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"waste-dispatch-service/internal/domain"
)

// ErrMockUnavailable is returned by MockRouteProvider while failing.
var ErrMockUnavailable = errors.New("mock provider unavailable")

// MockRouteProvider answers with a straight two-point route whose distance
// is the great-circle distance scaled by Detour. It counts calls and can be
// switched to fail, which is what tests need from a remote router.
type MockRouteProvider struct {
	Detour      float64
	SpeedKmh    float64
	calls       atomic.Int64
	mu          sync.Mutex
	fail        bool
	overrideFor func(from, to domain.Coordinates) (domain.RouteResult, error)
}

func NewMockRouteProvider() *MockRouteProvider {
	return &MockRouteProvider{Detour: 1.3, SpeedKmh: 30}
}

// SetFailing toggles failure mode.
func (m *MockRouteProvider) SetFailing(fail bool) {
	m.mu.Lock()
	m.fail = fail
	m.mu.Unlock()
}

// Override replaces the default answer. Pass nil to restore it.
func (m *MockRouteProvider) Override(fn func(from, to domain.Coordinates) (domain.RouteResult, error)) {
	m.mu.Lock()
	m.overrideFor = fn
	m.mu.Unlock()
}

// Calls returns how many times Route was invoked.
func (m *MockRouteProvider) Calls() int { return int(m.calls.Load()) }

func (m *MockRouteProvider) Route(ctx context.Context, from, to domain.Coordinates) (domain.RouteResult, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return domain.RouteResult{}, err
	}

	m.mu.Lock()
	fail, fn := m.fail, m.overrideFor
	m.mu.Unlock()

	if fail {
		return domain.RouteResult{}, ErrMockUnavailable
	}
	if fn != nil {
		return fn(from, to)
	}

	detour, speed := m.Detour, m.SpeedKmh
	if detour <= 0 {
		detour = 1
	}
	if speed <= 0 {
		speed = 30
	}

	km := domain.HaversineKm(from, to) * detour
	return domain.RouteResult{
		Geometry:    []domain.Coordinates{from, to},
		DistanceKm:  km,
		DurationMin: km / speed * 60,
	}, nil
}
