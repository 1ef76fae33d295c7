package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ctf-arena/internal/ctf"
)

type memUser struct {
	ctf.User
	passHash string
}

type memReset struct {
	userID  string
	expires time.Time
}

// memLog keeps the actor id so the name is resolved when listed.
type memLog struct {
	entry   ctf.LogEntry
	actorID *string
}

// Memory keeps everything in process. It serializes writes behind one mutex,
// which gives the same atomicity the Postgres store gets from transactions.
type Memory struct {
	mu         sync.RWMutex
	now        func() time.Time
	users      map[string]*memUser
	teams      map[string]*ctf.Team
	challenges map[string]*ctf.Challenge
	solves     []ctf.Solve
	resets     map[string]memReset
	cfg        ctf.Config
	logs       []memLog
}

func NewMemory() *Memory {
	return &Memory{
		now:        time.Now,
		users:      map[string]*memUser{},
		teams:      map[string]*ctf.Team{},
		challenges: map[string]*ctf.Challenge{},
		resets:     map[string]memReset{},
		cfg:        ctf.Config{UpdatedAt: time.Now()},
	}
}

// SetClock replaces the time source used for created and submitted timestamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

/* ===================== USERS ===================== */

func (m *Memory) CreateUser(_ context.Context, u *ctf.User, passHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(u.Email)
	for _, ex := range m.users {
		if strings.ToLower(ex.Email) == email {
			return fmt.Errorf("create user: %w", ctf.ErrEmailTaken)
		}
	}
	if u.ID == "" {
		u.ID = NewID()
	}
	if u.Role == "" {
		u.Role = ctf.RolePlayer
	}
	u.CreatedAt = m.now()
	m.users[u.ID] = &memUser{User: *u, passHash: passHash}
	return nil
}

func (m *Memory) Credentials(_ context.Context, email string) (ctf.User, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	email = strings.ToLower(email)
	for _, u := range m.users {
		if strings.ToLower(u.Email) == email {
			return u.User, u.passHash, nil
		}
	}
	return ctf.User{}, "", fmt.Errorf("user %q: %w", email, ctf.ErrNotFound)
}

func (m *Memory) GetUser(_ context.Context, id string) (ctf.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return ctf.User{}, fmt.Errorf("user %s: %w", id, ctf.ErrNotFound)
	}
	return u.User, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]ctf.UserRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ctf.UserRow, 0, len(m.users))
	for _, u := range m.users {
		row := ctf.UserRow{User: u.User}
		if u.TeamID != nil {
			if t, ok := m.teams[*u.TeamID]; ok {
				name := t.Name
				row.TeamName = &name
			}
		}
		for _, s := range m.solves {
			if s.UserID == u.ID {
				row.Solves++
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateDisplayName(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, ctf.ErrNotFound)
	}
	u.DisplayName = &name
	return nil
}

func (m *Memory) SetRole(_ context.Context, id string, role ctf.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, ctf.ErrNotFound)
	}
	u.Role = role
	return nil
}

func (m *Memory) SetPassword(_ context.Context, id, passHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, ctf.ErrNotFound)
	}
	u.passHash = passHash
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, ctf.ErrNotFound)
	}
	delete(m.users, id)

	solves := m.solves[:0]
	for _, s := range m.solves {
		if s.UserID == id {
			if c, ok := m.challenges[s.ChallengeID]; ok && c.SolveCount > 0 {
				c.SolveCount--
			}
			continue
		}
		solves = append(solves, s)
	}
	m.solves = solves
	for _, t := range m.teams {
		if t.CreatedBy == id {
			m.deleteTeamLocked(t.ID)
		}
	}
	return nil
}

func (m *Memory) HasAdmin(_ context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Role == ctf.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

/* ===================== PASSWORD RESETS ===================== */

func (m *Memory) CreatePasswordReset(_ context.Context, userID, token string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, r := range m.resets {
		if r.userID == userID {
			delete(m.resets, k)
		}
	}
	m.resets[token] = memReset{userID: userID, expires: expires}
	return nil
}

func (m *Memory) ConsumePasswordReset(_ context.Context, token string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.resets[token]
	if !ok || now.After(r.expires) {
		return "", fmt.Errorf("password reset: %w", ctf.ErrNotFound)
	}
	delete(m.resets, token)
	return r.userID, nil
}

/* ===================== TEAMS ===================== */

func (m *Memory) membersLocked(teamID string) []ctf.User {
	members := []ctf.User{}
	for _, u := range m.users {
		if u.TeamID != nil && *u.TeamID == teamID {
			members = append(members, u.User)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].CreatedAt.Before(members[j].CreatedAt) })
	return members
}

func (m *Memory) teamLocked(t *ctf.Team) ctf.TeamWithMembers {
	members := m.membersLocked(t.ID)
	return ctf.TeamWithMembers{Team: *t, Members: members, MemberCount: len(members)}
}

func (m *Memory) ListTeams(_ context.Context) ([]ctf.TeamWithMembers, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ctf.TeamWithMembers, 0, len(m.teams))
	for _, t := range m.teams {
		out = append(out, m.teamLocked(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetTeam(_ context.Context, id string) (ctf.TeamWithMembers, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.teams[id]
	if !ok {
		return ctf.TeamWithMembers{}, fmt.Errorf("team %s: %w", id, ctf.ErrNotFound)
	}
	return m.teamLocked(t), nil
}

func (m *Memory) CreateTeam(_ context.Context, name, creatorID string) (ctf.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[creatorID]
	if !ok {
		return ctf.Team{}, fmt.Errorf("user %s: %w", creatorID, ctf.ErrNotFound)
	}
	if u.TeamID != nil {
		return ctf.Team{}, fmt.Errorf("create team: %w", ctf.ErrAlreadyInTeam)
	}
	for _, t := range m.teams {
		if strings.EqualFold(t.Name, name) {
			return ctf.Team{}, fmt.Errorf("team %q: %w", name, ctf.ErrNameTaken)
		}
	}

	t := &ctf.Team{ID: NewID(), Name: name, CreatedBy: creatorID, CreatedAt: m.now()}
	m.teams[t.ID] = t
	id := t.ID
	u.TeamID = &id
	return *t, nil
}

func (m *Memory) JoinTeam(_ context.Context, teamID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.teams[teamID]; !ok {
		return fmt.Errorf("team %s: %w", teamID, ctf.ErrNotFound)
	}
	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ctf.ErrNotFound)
	}
	if u.TeamID != nil {
		return fmt.Errorf("join team: %w", ctf.ErrAlreadyInTeam)
	}
	if err := ctf.CanJoin(len(m.membersLocked(teamID))); err != nil {
		return err
	}
	id := teamID
	u.TeamID = &id
	return nil
}

func (m *Memory) LeaveTeam(_ context.Context, teamID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ctf.ErrNotFound)
	}
	if u.TeamID == nil || *u.TeamID != teamID {
		return fmt.Errorf("leave team: %w", ctf.ErrNotInTeam)
	}
	u.TeamID = nil
	return nil
}

func (m *Memory) DeleteTeam(_ context.Context, teamID, requesterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.teams[teamID]
	if !ok {
		return fmt.Errorf("team %s: %w", teamID, ctf.ErrNotFound)
	}
	if t.CreatedBy != requesterID {
		return fmt.Errorf("delete team: %w", ctf.ErrNotTeamCreator)
	}
	m.deleteTeamLocked(teamID)
	return nil
}

func (m *Memory) deleteTeamLocked(teamID string) {
	for _, u := range m.users {
		if u.TeamID != nil && *u.TeamID == teamID {
			u.TeamID = nil
		}
	}
	for i := range m.solves {
		if m.solves[i].TeamID != nil && *m.solves[i].TeamID == teamID {
			m.solves[i].TeamID = nil
		}
	}
	delete(m.teams, teamID)
}

/* ===================== CHALLENGES ===================== */

func (m *Memory) ListChallenges(_ context.Context, enabledOnly bool) ([]ctf.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ctf.Challenge, 0, len(m.challenges))
	for _, c := range m.challenges {
		if enabledOnly && !c.Enabled {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points < out[j].Points
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) GetChallenge(_ context.Context, id string) (ctf.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.challenges[id]
	if !ok {
		return ctf.Challenge{}, fmt.Errorf("challenge %s: %w", id, ctf.ErrNotFound)
	}
	return *c, nil
}

func (m *Memory) CreateChallenge(_ context.Context, c *ctf.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == "" {
		c.ID = NewID()
	}
	c.CreatedAt = m.now()
	c.SolveCount = 0
	cp := *c
	m.challenges[c.ID] = &cp
	return nil
}

func (m *Memory) UpdateChallenge(_ context.Context, c ctf.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ex, ok := m.challenges[c.ID]
	if !ok {
		return fmt.Errorf("challenge %s: %w", c.ID, ctf.ErrNotFound)
	}
	c.CreatedAt = ex.CreatedAt
	c.SolveCount = ex.SolveCount
	c.FilePath = ex.FilePath
	*ex = c
	return nil
}

func (m *Memory) SetChallengeFile(_ context.Context, id, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[id]
	if !ok {
		return fmt.Errorf("challenge %s: %w", id, ctf.ErrNotFound)
	}
	c.FilePath = &path
	return nil
}

func (m *Memory) DeleteChallenge(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.challenges[id]; !ok {
		return fmt.Errorf("challenge %s: %w", id, ctf.ErrNotFound)
	}
	delete(m.challenges, id)
	solves := m.solves[:0]
	for _, s := range m.solves {
		if s.ChallengeID != id {
			solves = append(solves, s)
		}
	}
	m.solves = solves
	return nil
}

/* ===================== SOLVES ===================== */

func (m *Memory) CreateSolve(_ context.Context, s *ctf.Solve) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[s.ChallengeID]
	if !ok {
		return fmt.Errorf("challenge %s: %w", s.ChallengeID, ctf.ErrNotFound)
	}
	for _, ex := range m.solves {
		if ex.UserID == s.UserID && ex.ChallengeID == s.ChallengeID {
			return fmt.Errorf("solve %s/%s: %w", s.UserID, s.ChallengeID, ctf.ErrDuplicateSolve)
		}
	}
	if s.ID == "" {
		s.ID = NewID()
	}
	s.SubmittedAt = m.now()
	m.solves = append(m.solves, *s)
	c.SolveCount++
	return nil
}

func (m *Memory) SolvedChallengeIDs(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []string{}
	for _, s := range m.solves {
		if s.UserID == userID {
			out = append(out, s.ChallengeID)
		}
	}
	return out, nil
}

func (m *Memory) UserSolves(_ context.Context, userID string) ([]ctf.SolveDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []ctf.SolveDetail{}
	for _, s := range m.solves {
		if s.UserID != userID {
			continue
		}
		d := ctf.SolveDetail{Solve: s}
		if c, ok := m.challenges[s.ChallengeID]; ok {
			d.Title, d.Category, d.Points = c.Title, c.Category, c.Points
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

/* ===================== COMPETITION ===================== */

func (m *Memory) GetConfig(_ context.Context) (ctf.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg, nil
}

func (m *Memory) UpdateConfig(_ context.Context, cfg ctf.Config) (ctf.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg.UpdatedAt = m.now()
	m.cfg = cfg
	return cfg, nil
}

func (m *Memory) Leaderboard(_ context.Context) ([]ctf.LeaderboardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	teams := make([]ctf.Team, 0, len(m.teams))
	for _, t := range m.teams {
		teams = append(teams, *t)
	}
	challenges := make([]ctf.Challenge, 0, len(m.challenges))
	for _, c := range m.challenges {
		challenges = append(challenges, *c)
	}
	return ctf.RankTeams(teams, m.solves, challenges), nil
}

func (m *Memory) Stats(_ context.Context) (ctf.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := ctf.Stats{
		Users:      len(m.users),
		Teams:      len(m.teams),
		Challenges: len(m.challenges),
		Solves:     len(m.solves),
	}
	for _, c := range m.challenges {
		if c.Enabled {
			st.EnabledChallenges++
		}
	}
	return st, nil
}

/* ===================== AUDIT ===================== */

func (m *Memory) LogAction(_ context.Context, actorID *string, action, details string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var id *string
	if actorID != nil {
		v := *actorID
		id = &v
	}
	m.logs = append(m.logs, memLog{
		entry: ctf.LogEntry{
			ID:        int64(len(m.logs) + 1),
			CreatedAt: m.now(),
			Action:    action,
			Details:   details,
		},
		actorID: id,
	})
	return nil
}

func (m *Memory) ListLogs(_ context.Context, limit int) ([]ctf.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []ctf.LogEntry{}
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		l := m.logs[i]
		e := l.entry
		switch u, ok := m.users[deref(l.actorID)]; {
		case l.actorID == nil:
			e.Actor = "(system)"
		case ok:
			e.Actor = u.Name()
		default:
			e.Actor = "(deleted)"
		}
		out = append(out, e)
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}
