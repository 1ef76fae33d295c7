package realtime

import (
	"context"
	"sync"
	"time"

	"ctf-arena/internal/metrics"
)

// SolveEvent announces an accepted flag.
type SolveEvent struct {
	ChallengeID string    `json:"challenge_id"`
	UserID      string    `json:"user_id"`
	TeamID      *string   `json:"team_id,omitempty"`
	Points      int       `json:"points"`
	SolvedAt    time.Time `json:"solved_at"`
}

// Publisher is what the submit handler needs: somewhere to announce solves.
type Publisher interface {
	Publish(ctx context.Context, ev SolveEvent) error
}

// Hub is an in-process pub/sub for solve events.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan SolveEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan SolveEvent]struct{})}
}

// Subscribe returns a buffered channel that receives every delivered event.
func (h *Hub) Subscribe() chan SolveEvent {
	ch := make(chan SolveEvent, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan SolveEvent) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// Publish delivers locally. It never blocks and never fails.
func (h *Hub) Publish(_ context.Context, ev SolveEvent) error {
	metrics.SolveEvents.WithLabelValues("local").Inc()
	h.deliver(ev)
	return nil
}

func (h *Hub) deliver(ev SolveEvent) {
	h.mu.RLock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// slow subscriber, drop
		}
	}
	h.mu.RUnlock()
}
