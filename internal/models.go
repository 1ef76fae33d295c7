package internal

import (
	"time"

	"ctf-arena/internal/ctf"
)

// challengeView is a challenge as a player sees it. The flag never leaves the server.
type challengeView struct {
	ctf.Challenge
	Solved  bool   `json:"solved"`
	HasFile bool   `json:"has_file"`
	Stars   string `json:"stars"`
}

func newChallengeView(c ctf.Challenge, solved map[string]bool) challengeView {
	return challengeView{
		Challenge: c,
		Solved:    solved[c.ID],
		HasFile:   c.FilePath != nil && *c.FilePath != "",
		Stars:     ctf.DifficultyStars(c.Difficulty),
	}
}

type categoryView struct {
	Category   string          `json:"category"`
	Challenges []challengeView `json:"challenges"`
}

// adminChallenge exposes the flag to admins.
type adminChallenge struct {
	ctf.Challenge
	Flag string `json:"flag"`
}

type challengeRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Points      int     `json:"points"`
	Difficulty  int     `json:"difficulty"`
	Link        *string `json:"link"`
	Flag        string  `json:"flag"`
	Enabled     *bool   `json:"enabled"`
}

func (r challengeRequest) challenge() ctf.Challenge {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return ctf.Challenge{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Points:      r.Points,
		Difficulty:  r.Difficulty,
		Link:        r.Link,
		Flag:        r.Flag,
		Enabled:     enabled,
	}
}

type configRequest struct {
	Started   bool       `json:"ctf_started"`
	StartTime *time.Time `json:"ctf_start_time"`
	EndTime   *time.Time `json:"ctf_end_time"`
}

type submitResponse struct {
	Outcome ctf.Outcome `json:"outcome"`
	Correct bool        `json:"correct"`
	Message string      `json:"message"`
	Points  int         `json:"points,omitempty"`
}

type profileResponse struct {
	User   ctf.User             `json:"user"`
	Team   *ctf.TeamWithMembers `json:"team"`
	Solves []ctf.SolveDetail    `json:"solves"`
	Score  int                  `json:"score"`
	// Rank is the team's 1-based leaderboard position, 0 without a team.
	Rank      int `json:"rank"`
	TeamScore int `json:"team_score"`
}
