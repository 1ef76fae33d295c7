package store

import (
	"context"
	"strings"
	"time"

	"ctf-arena/internal/ctf"

	"github.com/google/uuid"
)

// Store is the persistence boundary. Implementations return ctf sentinel
// errors (ctf.ErrNotFound, ctf.ErrDuplicateSolve, ...) wrapped with context.
type Store interface {
	// users
	CreateUser(ctx context.Context, u *ctf.User, passHash string) error
	Credentials(ctx context.Context, email string) (ctf.User, string, error)
	GetUser(ctx context.Context, id string) (ctf.User, error)
	ListUsers(ctx context.Context) ([]ctf.UserRow, error)
	UpdateDisplayName(ctx context.Context, id, name string) error
	SetRole(ctx context.Context, id string, role ctf.Role) error
	SetPassword(ctx context.Context, id, passHash string) error
	DeleteUser(ctx context.Context, id string) error
	HasAdmin(ctx context.Context) (bool, error)

	// password resets
	CreatePasswordReset(ctx context.Context, userID, token string, expires time.Time) error
	ConsumePasswordReset(ctx context.Context, token string, now time.Time) (string, error)

	// teams
	ListTeams(ctx context.Context) ([]ctf.TeamWithMembers, error)
	GetTeam(ctx context.Context, id string) (ctf.TeamWithMembers, error)
	CreateTeam(ctx context.Context, name, creatorID string) (ctf.Team, error)
	JoinTeam(ctx context.Context, teamID, userID string) error
	LeaveTeam(ctx context.Context, teamID, userID string) error
	DeleteTeam(ctx context.Context, teamID, requesterID string) error

	// challenges
	ListChallenges(ctx context.Context, enabledOnly bool) ([]ctf.Challenge, error)
	GetChallenge(ctx context.Context, id string) (ctf.Challenge, error)
	CreateChallenge(ctx context.Context, c *ctf.Challenge) error
	UpdateChallenge(ctx context.Context, c ctf.Challenge) error
	SetChallengeFile(ctx context.Context, id, path string) error
	DeleteChallenge(ctx context.Context, id string) error

	// solves
	CreateSolve(ctx context.Context, s *ctf.Solve) error
	SolvedChallengeIDs(ctx context.Context, userID string) ([]string, error)
	UserSolves(ctx context.Context, userID string) ([]ctf.SolveDetail, error)

	// competition
	GetConfig(ctx context.Context) (ctf.Config, error)
	UpdateConfig(ctx context.Context, cfg ctf.Config) (ctf.Config, error)
	Leaderboard(ctx context.Context) ([]ctf.LeaderboardEntry, error)
	Stats(ctx context.Context) (ctf.Stats, error)

	// audit
	LogAction(ctx context.Context, actorID *string, action, details string) error
	ListLogs(ctx context.Context, limit int) ([]ctf.LogEntry, error)

	Ping(ctx context.Context) error
	Close()
}

func NewID() string {
	return uuid.NewString()
}

// NewPlayerID returns a short human-readable player identifier.
func NewPlayerID() string {
	return "P-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
