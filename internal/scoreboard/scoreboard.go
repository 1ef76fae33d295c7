// Package scoreboard keeps the latest team leaderboard and pushes each
// refresh to subscribers.
package scoreboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ctf-arena/internal/ctf"
	"ctf-arena/internal/metrics"
	"ctf-arena/internal/realtime"
)

const DefaultPollInterval = 30 * time.Second

// Source computes the full leaderboard. store.Store satisfies it.
type Source interface {
	Leaderboard(ctx context.Context) ([]ctf.LeaderboardEntry, error)
}

type Snapshot struct {
	Entries   []ctf.LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time              `json:"updated_at"`
}

type Board struct {
	src      Source
	interval time.Duration
	logger   *slog.Logger

	// refreshMu orders refreshes so an older result never replaces a newer one.
	refreshMu sync.Mutex

	mu   sync.RWMutex
	snap Snapshot
	subs map[chan Snapshot]struct{}
}

func New(src Source, interval time.Duration, logger *slog.Logger) *Board {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Board{
		src:      src,
		interval: interval,
		logger:   logger,
		snap:     Snapshot{Entries: []ctf.LeaderboardEntry{}},
		subs:     make(map[chan Snapshot]struct{}),
	}
}

func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

// Subscribe registers for new snapshots. The returned cancel func must be called.
func (b *Board) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 4)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	metrics.ScoreboardSubscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			metrics.ScoreboardSubscribers.Dec()
		})
	}
}

// Refresh replaces the snapshot with a fresh computation. On failure the
// previous snapshot is kept.
func (b *Board) Refresh(ctx context.Context, trigger string) error {
	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()

	entries, err := b.src.Leaderboard(ctx)
	if err != nil {
		metrics.LeaderboardRefreshes.WithLabelValues(trigger, "error").Inc()
		return err
	}
	metrics.LeaderboardRefreshes.WithLabelValues(trigger, "ok").Inc()

	snap := Snapshot{Entries: entries, UpdatedAt: time.Now()}

	b.mu.Lock()
	b.snap = snap
	for ch := range b.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	b.mu.Unlock()
	return nil
}

// Run refreshes immediately, then on every tick and every solve event,
// until ctx is cancelled.
func (b *Board) Run(ctx context.Context, events <-chan realtime.SolveEvent) error {
	b.refresh(ctx, "start")

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.refresh(ctx, "poll")
		case <-events:
			b.refresh(ctx, "solve")
		}
	}
}

func (b *Board) refresh(ctx context.Context, trigger string) {
	if err := b.Refresh(ctx, trigger); err != nil && ctx.Err() == nil {
		b.logger.Error("leaderboard refresh failed", "trigger", trigger, "error", err)
	}
}
