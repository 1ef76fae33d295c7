package scoreboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"ctf-arena/internal/ctf"
	"ctf-arena/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	err   error
	score int
}

func (f *fakeSource) Leaderboard(context.Context) ([]ctf.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []ctf.LeaderboardEntry{{TeamID: "t1", TeamName: "Alpha", TotalScore: f.score}}, nil
}

func (f *fakeSource) set(score int, err error) {
	f.mu.Lock()
	f.score, f.err = score, err
	f.mu.Unlock()
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRefreshKeepsSnapshotOnError(t *testing.T) {
	src := &fakeSource{score: 100}
	b := New(src, time.Minute, quietLogger())

	assert.Empty(t, b.Snapshot().Entries)
	require.NoError(t, b.Refresh(context.Background(), "test"))
	assert.Equal(t, 100, b.Snapshot().Entries[0].TotalScore)

	src.set(200, errors.New("db down"))
	assert.Error(t, b.Refresh(context.Background(), "test"))
	assert.Equal(t, 100, b.Snapshot().Entries[0].TotalScore)
}

func TestSubscribeReceivesRefreshes(t *testing.T) {
	src := &fakeSource{score: 10}
	b := New(src, time.Minute, quietLogger())

	ch, cancel := b.Subscribe()
	require.NoError(t, b.Refresh(context.Background(), "test"))

	select {
	case snap := <-ch:
		assert.Equal(t, 10, snap.Entries[0].TotalScore)
	case <-time.After(time.Second):
		t.Fatal("no snapshot pushed")
	}

	cancel()
	cancel()
	require.NoError(t, b.Refresh(context.Background(), "test"))
	assert.Len(t, ch, 0)
}

func TestRunRefreshesOnEventsAndTicks(t *testing.T) {
	src := &fakeSource{score: 1}
	b := New(src, 20*time.Millisecond, quietLogger())
	events := make(chan realtime.SolveEvent, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, events) }()

	require.Eventually(t, func() bool { return src.count() >= 1 }, time.Second, 5*time.Millisecond)

	src.set(50, nil)
	events <- realtime.SolveEvent{ChallengeID: "c1"}
	require.Eventually(t, func() bool {
		s := b.Snapshot()
		return len(s.Entries) == 1 && s.Entries[0].TotalScore == 50
	}, time.Second, 5*time.Millisecond)

	before := src.count()
	require.Eventually(t, func() bool { return src.count() > before+1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

// gatedSource blocks its first call until released and reports a lower score
// than every later call.
type gatedSource struct {
	entered chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (g *gatedSource) Leaderboard(context.Context) ([]ctf.LeaderboardEntry, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()

	if n == 1 {
		close(g.entered)
		<-g.release
	}
	return []ctf.LeaderboardEntry{{TeamID: "t1", TeamName: "Alpha", TotalScore: n * 100}}, nil
}

func (g *gatedSource) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestConcurrentRefreshesKeepNewestResult(t *testing.T) {
	src := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	b := New(src, time.Hour, quietLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, b.Refresh(ctx, "poll"))
	}()
	<-src.entered

	go func() {
		defer wg.Done()
		assert.NoError(t, b.Refresh(ctx, "admin"))
	}()

	assert.Never(t, func() bool { return src.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	close(src.release)
	wg.Wait()

	require.Len(t, b.Snapshot().Entries, 1)
	assert.Equal(t, 200, b.Snapshot().Entries[0].TotalScore)
}
