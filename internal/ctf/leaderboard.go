package ctf

import (
	"sort"
	"time"
)

// RankTeams aggregates solves into team standings. A challenge counts once per
// team, at the time of the team's first solve of it. Teams without solves are
// included with a zero score.
func RankTeams(teams []Team, solves []Solve, challenges []Challenge) []LeaderboardEntry {
	byID := make(map[string]Challenge, len(challenges))
	for _, c := range challenges {
		byID[c.ID] = c
	}

	type key struct{ team, challenge string }
	first := map[key]time.Time{}
	for _, s := range solves {
		if s.TeamID == nil {
			continue
		}
		k := key{*s.TeamID, s.ChallengeID}
		if t, ok := first[k]; !ok || s.SubmittedAt.Before(t) {
			first[k] = s.SubmittedAt
		}
	}

	entries := make(map[string]*LeaderboardEntry, len(teams))
	out := make([]LeaderboardEntry, 0, len(teams))
	for _, t := range teams {
		entries[t.ID] = &LeaderboardEntry{TeamID: t.ID, TeamName: t.Name}
	}
	for k, at := range first {
		e, ok := entries[k.team]
		if !ok {
			continue
		}
		c, ok := byID[k.challenge]
		if !ok {
			continue
		}
		e.TotalScore += c.Points
		e.SolveCount++
		if c.Difficulty > e.MaxDifficulty {
			e.MaxDifficulty = c.Difficulty
		}
		if e.LastSolveTime == nil || at.After(*e.LastSolveTime) {
			at := at
			e.LastSolveTime = &at
		}
	}
	for _, t := range teams {
		out = append(out, *entries[t.ID])
	}

	SortLeaderboard(out)
	return out
}

// SortLeaderboard orders by score descending, then earliest last solve, then name.
func SortLeaderboard(entries []LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		switch {
		case a.LastSolveTime != nil && b.LastSolveTime != nil:
			if !a.LastSolveTime.Equal(*b.LastSolveTime) {
				return a.LastSolveTime.Before(*b.LastSolveTime)
			}
		case a.LastSolveTime != nil:
			return true
		case b.LastSolveTime != nil:
			return false
		}
		return a.TeamName < b.TeamName
	})
}

// RankOf returns the 1-based position of teamID, or 0 when absent.
func RankOf(entries []LeaderboardEntry, teamID string) int {
	for i, e := range entries {
		if e.TeamID == teamID {
			return i + 1
		}
	}
	return 0
}
