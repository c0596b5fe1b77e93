package handlers

import (
	"sync"

	"waste-dispatch-service/internal/services"
)

// Broker fans round reports out to the stream subscribers of an episode.
// Slow subscribers miss reports rather than block the round loop.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan services.RoundReport]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan services.RoundReport]struct{})}
}

func (b *Broker) Subscribe(episodeID string) chan services.RoundReport {
	ch := make(chan services.RoundReport, 16)
	b.mu.Lock()
	if b.subs[episodeID] == nil {
		b.subs[episodeID] = make(map[chan services.RoundReport]struct{})
	}
	b.subs[episodeID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(episodeID string, ch chan services.RoundReport) {
	b.mu.Lock()
	if m := b.subs[episodeID]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, episodeID)
		}
	}
	b.mu.Unlock()
	close(ch)
}

// Publish has the signature of services.Deps.OnRound.
func (b *Broker) Publish(episodeID string, rep services.RoundReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[episodeID] {
		select {
		case ch <- rep:
		default:
		}
	}
}
