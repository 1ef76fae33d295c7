package ctf

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RolePlayer Role = "player"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RolePlayer
}

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"display_name"`
	Role        Role      `json:"role"`
	PlayerID    *string   `json:"player_id"`
	TeamID      *string   `json:"team_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Name is the display name, falling back to the email address.
func (u User) Name() string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.Email
}

// UserRow is a user as listed in the admin panel.
type UserRow struct {
	User
	TeamName *string `json:"team_name"`
	Solves   int     `json:"solves"`
}

type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type TeamWithMembers struct {
	Team
	Members     []User `json:"members"`
	MemberCount int    `json:"member_count"`
}

func (t TeamWithMembers) HasMember(userID string) bool {
	for _, m := range t.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

type Challenge struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Points      int       `json:"points"`
	Difficulty  int       `json:"difficulty"`
	Link        *string   `json:"link"`
	FilePath    *string   `json:"file_path"`
	Flag        string    `json:"-"`
	Enabled     bool      `json:"enabled"`
	SolveCount  int       `json:"solve_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type Solve struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	TeamID      *string   `json:"team_id"`
	ChallengeID string    `json:"challenge_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SolveDetail is a solve joined with the challenge it solved.
type SolveDetail struct {
	Solve
	Title    string `json:"title"`
	Category string `json:"category"`
	Points   int    `json:"points"`
}

// Config is the singleton competition configuration.
type Config struct {
	Started   bool       `json:"ctf_started"`
	StartTime *time.Time `json:"ctf_start_time"`
	EndTime   *time.Time `json:"ctf_end_time"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type LeaderboardEntry struct {
	TeamID        string     `json:"team_id"`
	TeamName      string     `json:"team_name"`
	TotalScore    int        `json:"total_score"`
	SolveCount    int        `json:"solve_count"`
	LastSolveTime *time.Time `json:"last_solve_time"`
	MaxDifficulty int        `json:"max_difficulty"`
}

type LogEntry struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

type Stats struct {
	Users             int `json:"users"`
	Teams             int `json:"teams"`
	Challenges        int `json:"challenges"`
	EnabledChallenges int `json:"enabled_challenges"`
	Solves            int `json:"solves"`
}
