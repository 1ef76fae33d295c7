package store

import (
	"context"
	"testing"
	"time"

	"ctf-arena/internal/ctf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		m := NewMemory()
		base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		var tick time.Duration
		m.SetClock(func() time.Time {
			tick += time.Second
			return base.Add(tick)
		})
		return m
	})
}

func TestMemoryListChallengesOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	mkChallenge(t, m, "big", 500, 3)
	mkChallenge(t, m, "small", 50, 1)
	hidden := &ctf.Challenge{Title: "hidden", Category: "misc", Points: 10, Difficulty: 1, Flag: "CTF{h}"}
	require.NoError(t, m.CreateChallenge(ctx, hidden))

	all, err := m.ListChallenges(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "hidden", all[0].Title)

	enabled, err := m.ListChallenges(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, "small", enabled[0].Title)
	assert.Equal(t, "big", enabled[1].Title)
}

func TestMemoryUpdateChallengeKeepsCounters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	u := mkUser(t, m, "p@example.com")
	c := mkChallenge(t, m, "keep", 100, 2)
	require.NoError(t, m.SetChallengeFile(ctx, c.ID, "keep/file.zip"))
	require.NoError(t, m.CreateSolve(ctx, &ctf.Solve{UserID: u.ID, ChallengeID: c.ID}))

	c.Title = "renamed"
	c.SolveCount = 0
	c.FilePath = nil
	require.NoError(t, m.UpdateChallenge(ctx, c))

	got, err := m.GetChallenge(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, 1, got.SolveCount)
	require.NotNil(t, got.FilePath)
	assert.Equal(t, "keep/file.zip", *got.FilePath)

	require.NoError(t, m.DeleteChallenge(ctx, c.ID))
	ids, err := m.SolvedChallengeIDs(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
