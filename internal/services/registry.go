package services

import (
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"waste-dispatch-service/internal/domain"
)

// Registry holds the live episodes of a process, keyed by id.
// External layers keep ids, never the episodes' internals.
type Registry struct {
	deps Deps

	mu       sync.RWMutex
	episodes map[string]*Episode
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, episodes: make(map[string]*Episode)}
}

// Create initialises a new episode and registers it.
func (r *Registry) Create(cfg EpisodeConfig, points []domain.PickupPoint) (*Episode, error) {
	e, err := NewEpisode(cfg, points, r.deps)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.episodes[e.ID] = e
	n := len(r.episodes)
	r.mu.Unlock()

	r.deps.Metrics.SetActiveEpisodes(n)
	return e, nil
}

func (r *Registry) Get(id string) (*Episode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.episodes[id]
	if !ok {
		return nil, fmt.Errorf("episode %q: %w", id, domain.ErrEpisodeNotFound)
	}
	return e, nil
}

// List returns summaries ordered by creation time.
func (r *Registry) List() []EpisodeSummary {
	r.mu.RLock()
	eps := make([]*Episode, 0, len(r.episodes))
	for _, e := range r.episodes {
		eps = append(eps, e)
	}
	r.mu.RUnlock()

	slices.SortFunc(eps, func(a, b *Episode) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		return 1
	})

	out := make([]EpisodeSummary, 0, len(eps))
	for _, e := range eps {
		out = append(out, e.Summary())
	}
	return out
}

// Delete stops the episode's autoplay and forgets it.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.episodes[id]
	delete(r.episodes, id)
	n := len(r.episodes)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("episode %q: %w", id, domain.ErrEpisodeNotFound)
	}

	e.Stop()
	r.deps.Metrics.SetActiveEpisodes(n)
	log.Info().Str("episode", id).Msg("episode deleted")
	return nil
}

// Close stops every autoplay loop.
func (r *Registry) Close() {
	r.mu.RLock()
	eps := make([]*Episode, 0, len(r.episodes))
	for _, e := range r.episodes {
		eps = append(eps, e)
	}
	r.mu.RUnlock()

	for _, e := range eps {
		e.Stop()
	}
}
