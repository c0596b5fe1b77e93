package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"waste-dispatch-service/internal/domain"
	"waste-dispatch-service/internal/platform/metrics"
	"waste-dispatch-service/internal/ports"
	"waste-dispatch-service/internal/routing"
	"waste-dispatch-service/internal/world"
)

// EpisodeConfig describes the fleet and rules of one episode.
type EpisodeConfig struct {
	Vehicles   int       `json:"vehicles" yaml:"vehicles"`
	CapacityKg float64   `json:"capacity_kg" yaml:"capacity_kg"`
	Capacities []float64 `json:"capacities,omitempty" yaml:"capacities"`

	Depot domain.Coordinates `json:"depot" yaml:"depot"`
	Base  domain.Coordinates `json:"base" yaml:"base"`
	Seed  uint64             `json:"seed" yaml:"seed"`

	MinDemandKg     float64 `json:"min_demand_kg" yaml:"min_demand_kg"`
	EnRoute         bool    `json:"en_route" yaml:"en_route"`
	SkipFinalReturn bool    `json:"skip_final_return" yaml:"skip_final_return"`
	StallThreshold  int     `json:"stall_threshold" yaml:"stall_threshold"`
	MaxRounds       int     `json:"max_rounds" yaml:"max_rounds"`

	Weights   Weights          `json:"weights" yaml:"weights"`
	Heuristic HeuristicWeights `json:"heuristic" yaml:"heuristic"`
}

func (c EpisodeConfig) capacities() ([]float64, error) {
	if len(c.Capacities) > 0 {
		return c.Capacities, nil
	}
	if c.Vehicles <= 0 {
		return nil, fmt.Errorf("episode: vehicles=%d: %w", c.Vehicles, domain.ErrInvalidConfiguration)
	}
	if c.CapacityKg <= 0 {
		return nil, fmt.Errorf("episode: capacity_kg=%.1f: %w", c.CapacityKg, domain.ErrInvalidConfiguration)
	}
	out := make([]float64, c.Vehicles)
	for i := range out {
		out[i] = c.CapacityKg
	}
	return out, nil
}

// Deps are the shared collaborators of every episode in a process.
type Deps struct {
	Oracle  *routing.Oracle
	Model   ports.DecisionModel
	Metrics *metrics.Collector
	// OnRound, when set, receives every round report.
	OnRound func(episodeID string, rep RoundReport)
}

// VehicleReport is the per-vehicle part of a FinalReport.
type VehicleReport struct {
	ID          int       `json:"id"`
	Sector      int       `json:"sector"`
	DistanceKm  float64   `json:"distance_km"`
	DurationMin float64   `json:"duration_min"`
	CollectedKg float64   `json:"collected_kg"`
	Trips       int       `json:"trips"`
	Route       []int     `json:"route"`
	LoadHistory []float64 `json:"load_history"`
}

type FinalReport struct {
	EpisodeID        string          `json:"episode_id"`
	Policy           string          `json:"policy"`
	Rounds           int             `json:"rounds"`
	Complete         bool            `json:"complete"`
	Truncated        bool            `json:"truncated"`
	CompletionPct    float64         `json:"completion_pct"`
	Served           int             `json:"served"`
	Total            int             `json:"total"`
	Deferred         int             `json:"deferred"`
	TotalReward      float64         `json:"total_reward"`
	TotalDistanceKm  float64         `json:"total_distance_km"`
	TotalCollectedKg float64         `json:"total_collected_kg"`
	Conflicts        int             `json:"conflicts"`
	Stale            int             `json:"stale"`
	StalledRounds    int             `json:"stalled_rounds"`
	Vehicles         []VehicleReport `json:"vehicles"`
	Routing          routing.Stats   `json:"routing"`
	Elapsed          time.Duration   `json:"elapsed_ns"`
}

// EpisodeSnapshot is what a foreground observer sees of a running episode.
type EpisodeSnapshot struct {
	ID          string         `json:"id"`
	Round       int            `json:"round"`
	Complete    bool           `json:"complete"`
	Autoplay    bool           `json:"autoplay"`
	TotalReward float64        `json:"total_reward"`
	World       world.Snapshot `json:"world"`
}

// Episode owns one world and its coordinator. Rounds are serialised, so
// the round loop is the single writer. Readers never wait for a round:
// the world hands out copies taken between two commits.
type Episode struct {
	ID        string
	CreatedAt time.Time

	cfg      EpisodeConfig
	policy   string
	deferred int
	world    *world.State
	coord    *Coordinator
	deps     Deps

	// roundMu serialises rounds and the final return.
	roundMu   sync.Mutex
	finalized bool

	mu          sync.Mutex
	rounds      int
	totalReward float64
	conflicts   int
	stale       int
	stalled     int
	started     time.Time

	autoMu sync.Mutex
	stop   context.CancelFunc
	done   chan struct{}
}

// NewEpisode validates cfg, builds the world, assigns sectors and picks the
// policy: the learned one when a model is configured, else the heuristic.
func NewEpisode(cfg EpisodeConfig, points []domain.PickupPoint, deps Deps) (*Episode, error) {
	if deps.Oracle == nil {
		return nil, fmt.Errorf("new episode: oracle is nil: %w", domain.ErrInvalidConfiguration)
	}
	caps, err := cfg.capacities()
	if err != nil {
		return nil, err
	}

	kept := points
	deferred := 0
	if cfg.MinDemandKg > 0 {
		kept = make([]domain.PickupPoint, 0, len(points))
		for _, p := range points {
			if p.DemandKg < cfg.MinDemandKg {
				deferred++
				continue
			}
			kept = append(kept, p)
		}
	}

	w, err := world.New(kept, caps, deps.Oracle, world.Config{
		Depot:   cfg.Depot,
		Base:    cfg.Base,
		EnRoute: cfg.EnRoute,
	})
	if err != nil {
		return nil, fmt.Errorf("new episode: %w", err)
	}

	sectors, err := AssignSectors(kept, len(caps), cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("new episode: %w", err)
	}

	heuristic := NewHeuristicPolicy(deps.Oracle, cfg.Depot, cfg.Heuristic)
	var policy AgentPolicy = heuristic
	policyName := "heuristic"
	if deps.Model != nil {
		policy = NewLearnedPolicy(deps.Model, heuristic)
		policyName = "learned"
	}

	agents := make([]*Agent, 0, len(caps))
	for i := range caps {
		id := i + 1
		if err := w.SetSector(id, i); err != nil {
			return nil, fmt.Errorf("new episode: %w", err)
		}
		agents = append(agents, NewAgent(id, policy))
	}

	e := &Episode{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		cfg:       cfg,
		policy:    policyName,
		deferred:  deferred,
		world:     w,
		coord:     NewCoordinator(w, agents, sectors, cfg.Weights, cfg.StallThreshold, deps.Metrics),
		deps:      deps,
	}

	log.Info().
		Str("episode", e.ID).
		Int("points", len(kept)).
		Int("deferred", deferred).
		Int("vehicles", len(caps)).
		Str("policy", policyName).
		Msg("episode created")

	return e, nil
}

func (e *Episode) World() *world.State { return e.world }

// EpisodeSummary is the listing view of an episode.
type EpisodeSummary struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Policy        string    `json:"policy"`
	Rounds        int       `json:"rounds"`
	CompletionPct float64   `json:"completion_pct"`
	Complete      bool      `json:"complete"`
	TotalReward   float64   `json:"total_reward"`
	Autoplay      bool      `json:"autoplay"`
}

func (e *Episode) Summary() EpisodeSummary {
	autoplay := e.Autoplaying()
	complete := e.world.IsComplete()
	pct := e.world.Completion()

	e.mu.Lock()
	defer e.mu.Unlock()
	return EpisodeSummary{
		ID:            e.ID,
		CreatedAt:     e.CreatedAt,
		Policy:        e.policy,
		Rounds:        e.rounds,
		CompletionPct: pct,
		Complete:      complete,
		TotalReward:   e.totalReward,
		Autoplay:      autoplay,
	}
}

func (e *Episode) Policy() string { return e.policy }

// RunRound executes one round. Once every point is served it reports
// completion without touching the world.
func (e *Episode) RunRound(ctx context.Context) RoundReport {
	e.roundMu.Lock()
	rep := e.runRoundLocked(ctx)
	e.roundMu.Unlock()

	if e.deps.OnRound != nil {
		e.deps.OnRound(e.ID, rep)
	}
	return rep
}

func (e *Episode) runRoundLocked(ctx context.Context) RoundReport {
	e.mu.Lock()
	rounds := e.rounds
	if e.started.IsZero() {
		e.started = time.Now()
	}
	e.mu.Unlock()

	if e.world.IsComplete() {
		return RoundReport{
			Round:    rounds,
			Complete: true,
			Served:   len(e.world.ServedIDs()),
		}
	}

	rep := e.coord.RunRound(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rounds = rep.Round
	e.totalReward += rep.TotalReward
	e.conflicts += rep.Conflicts
	e.stale += rep.Stale
	if rep.Stalled {
		e.stalled++
	}
	return rep
}

// RunToCompletion runs rounds until every point is served, maxRounds more
// rounds have run, or ctx is done. A non-positive maxRounds uses the
// configured budget.
func (e *Episode) RunToCompletion(ctx context.Context, maxRounds int) FinalReport {
	if maxRounds <= 0 {
		maxRounds = e.roundBudget()
	}

	for i := 0; i < maxRounds && ctx.Err() == nil; i++ {
		if rep := e.RunRound(ctx); rep.Complete {
			break
		}
	}

	return e.Finish(ctx)
}

func (e *Episode) roundBudget() int {
	if e.cfg.MaxRounds > 0 {
		return e.cfg.MaxRounds
	}
	return 4*len(e.world.Points()) + 10
}

// Finish sends vehicles back to base once the episode is complete and
// builds the final report. Repeated calls only rebuild the report.
func (e *Episode) Finish(ctx context.Context) FinalReport {
	e.roundMu.Lock()
	defer e.roundMu.Unlock()

	complete := e.world.IsComplete()
	if complete && !e.finalized {
		e.finalized = true
		penalty := 0.0
		if !e.cfg.SkipFinalReturn {
			for _, v := range e.world.Vehicles() {
				ret, err := e.world.CommitBaseReturn(ctx, v.ID)
				if err != nil {
					log.Warn().Err(err).Str("episode", e.ID).Int("vehicle", v.ID).Msg("final return failed")
					continue
				}
				penalty += ret.Route.DistanceKm * e.coord.weights.DistancePenalty
			}
		}

		e.mu.Lock()
		e.totalReward -= penalty
		e.mu.Unlock()
		log.Info().Str("episode", e.ID).Msg("episode complete")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rep := FinalReport{
		EpisodeID:     e.ID,
		Policy:        e.policy,
		Rounds:        e.rounds,
		Complete:      complete,
		Truncated:     !complete,
		CompletionPct: e.world.Completion(),
		Served:        len(e.world.ServedIDs()),
		Total:         len(e.world.Points()),
		Deferred:      e.deferred,
		TotalReward:   e.totalReward,
		Conflicts:     e.conflicts,
		Stale:         e.stale,
		StalledRounds: e.stalled,
		Routing:       e.deps.Oracle.Stats(),
	}
	if !e.started.IsZero() {
		rep.Elapsed = time.Since(e.started)
	}

	for _, v := range e.world.Vehicles() {
		rep.TotalDistanceKm += v.DistanceKm
		rep.TotalCollectedKg += v.CollectedKg
		rep.Vehicles = append(rep.Vehicles, VehicleReport{
			ID:          v.ID,
			Sector:      v.Sector,
			DistanceKm:  v.DistanceKm,
			DurationMin: v.DurationMin,
			CollectedKg: v.CollectedKg,
			Trips:       v.Trips,
			Route:       v.Route,
			LoadHistory: v.LoadHistory,
		})
	}
	return rep
}

// Snapshot returns a copy of the world and the episode counters.
func (e *Episode) Snapshot() EpisodeSnapshot {
	snap := e.world.Snapshot()
	autoplay := e.Autoplaying()

	e.mu.Lock()
	defer e.mu.Unlock()
	return EpisodeSnapshot{
		ID:          e.ID,
		Round:       e.rounds,
		Complete:    len(snap.Pending) == 0,
		Autoplay:    autoplay,
		TotalReward: e.totalReward,
		World:       snap,
	}
}

var ErrAutoplayRunning = errors.New("autoplay already running")

// Autoplay advances the episode every interval in the background until it
// completes, the round budget is spent, or Stop is called.
func (e *Episode) Autoplay(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("autoplay: interval %s: %w", interval, domain.ErrInvalidConfiguration)
	}

	e.autoMu.Lock()
	defer e.autoMu.Unlock()
	if e.stop != nil {
		return ErrAutoplayRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.stop, e.done = cancel, done

	go func() {
		defer close(done)
		defer e.clearAutoplay(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		budget := e.roundBudget()
		for i := 0; i < budget; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if rep := e.RunRound(ctx); rep.Complete {
				e.Finish(ctx)
				return
			}
		}
	}()
	return nil
}

func (e *Episode) clearAutoplay(done chan struct{}) {
	e.autoMu.Lock()
	defer e.autoMu.Unlock()
	if e.done == done {
		e.stop()
		e.stop, e.done = nil, nil
	}
}

// Stop halts autoplay and waits for the loop to exit.
func (e *Episode) Stop() {
	e.autoMu.Lock()
	stop, done := e.stop, e.done
	e.autoMu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
}

func (e *Episode) Autoplaying() bool {
	e.autoMu.Lock()
	defer e.autoMu.Unlock()
	return e.stop != nil
}
