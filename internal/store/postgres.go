package store

import (
	"context"
	"fmt"
	"time"

	"ctf-arena/internal/ctf"
	"ctf-arena/internal/metrics"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.Ping(ctx) }

func (p *Postgres) Close() { p.db.Close() }

/* ===================== USERS ===================== */

const userCols = "u.id, u.email, u.display_name, u.role, u.player_id, u.team_id, u.created_at"

func scanUser(row pgx.Row, extra ...any) (ctf.User, error) {
	var u ctf.User
	var role string
	dest := append([]any{&u.ID, &u.Email, &u.DisplayName, &role, &u.PlayerID, &u.TeamID, &u.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return ctf.User{}, err
	}
	u.Role = ctf.Role(role)
	return u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *ctf.User, passHash string) error {
	defer metrics.RecordDBOperation("insert", "users", time.Now())

	if u.ID == "" {
		u.ID = NewID()
	}
	if u.Role == "" {
		u.Role = ctf.RolePlayer
	}
	err := qRow(ctx, p.db, psql.Insert("users").
		Columns("id", "email", "pass_hash", "display_name", "role", "player_id").
		Values(u.ID, u.Email, passHash, u.DisplayName, string(u.Role), u.PlayerID).
		Suffix("RETURNING created_at"),
	).Scan(&u.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("create user: %w", ctf.ErrEmailTaken)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (p *Postgres) Credentials(ctx context.Context, email string) (ctf.User, string, error) {
	defer metrics.RecordDBOperation("select", "users", time.Now())

	var hash string
	u, err := scanUser(qRow(ctx, p.db, psql.Select(userCols, "u.pass_hash").
		From("users u").
		Where("lower(u.email) = lower(?)", email)), &hash)
	if isNoRows(err) {
		return ctf.User{}, "", fmt.Errorf("user %q: %w", email, ctf.ErrNotFound)
	}
	if err != nil {
		return ctf.User{}, "", fmt.Errorf("credentials: %w", err)
	}
	return u, hash, nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (ctf.User, error) {
	defer metrics.RecordDBOperation("select", "users", time.Now())

	u, err := scanUser(qRow(ctx, p.db, psql.Select(userCols).From("users u").Where(sq.Eq{"u.id": id})))
	if isNoRows(err) {
		return ctf.User{}, fmt.Errorf("user %s: %w", id, ctf.ErrNotFound)
	}
	if err != nil {
		return ctf.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (p *Postgres) ListUsers(ctx context.Context) ([]ctf.UserRow, error) {
	defer metrics.RecordDBOperation("select", "users", time.Now())

	rows, err := qQuery(ctx, p.db, psql.Select(userCols, "t.name",
		"(SELECT count(*) FROM solves s WHERE s.user_id = u.id)").
		From("users u").
		LeftJoin("teams t ON t.id = u.team_id").
		OrderBy("u.created_at ASC"))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []ctf.UserRow{}
	for rows.Next() {
		var r ctf.UserRow
		r.User, err = scanUser(rows, &r.TeamName, &r.Solves)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) updateUser(ctx context.Context, id string, set map[string]any) error {
	defer metrics.RecordDBOperation("update", "users", time.Now())

	tag, err := qExec(ctx, p.db, psql.Update("users").SetMap(set).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, ctf.ErrNotFound)
	}
	return nil
}

func (p *Postgres) UpdateDisplayName(ctx context.Context, id, name string) error {
	return p.updateUser(ctx, id, map[string]any{"display_name": name})
}

func (p *Postgres) SetRole(ctx context.Context, id string, role ctf.Role) error {
	return p.updateUser(ctx, id, map[string]any{"role": string(role)})
}

func (p *Postgres) SetPassword(ctx context.Context, id, passHash string) error {
	return p.updateUser(ctx, id, map[string]any{"pass_hash": passHash})
}

// DeleteUser removes the user, any team they created and their solves.
// Team membership is cleared first so the cascades do not cross.
func (p *Postgres) DeleteUser(ctx context.Context, id string) error {
	defer metrics.RecordDBOperation("delete", "users", time.Now())

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE challenges c SET solve_count = c.solve_count - 1
		 FROM solves s WHERE s.challenge_id = c.id AND s.user_id = $1`, id); err != nil {
		return fmt.Errorf("delete user solves: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE users SET team_id = NULL
		 WHERE id = $1 OR team_id IN (SELECT id FROM teams WHERE created_by = $1)`, id); err != nil {
		return fmt.Errorf("clear memberships: %w", err)
	}
	if _, err := qExec(ctx, tx, psql.Delete("teams").Where(sq.Eq{"created_by": id})); err != nil {
		return fmt.Errorf("delete owned teams: %w", err)
	}
	tag, err := qExec(ctx, tx, psql.Delete("users").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, ctf.ErrNotFound)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) HasAdmin(ctx context.Context) (bool, error) {
	var ok bool
	err := p.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE role = 'admin')").Scan(&ok)
	return ok, err
}

/* ===================== PASSWORD RESETS ===================== */

func (p *Postgres) CreatePasswordReset(ctx context.Context, userID, token string, expires time.Time) error {
	defer metrics.RecordDBOperation("insert", "password_resets", time.Now())

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := qExec(ctx, tx, psql.Delete("password_resets").Where(sq.Eq{"user_id": userID})); err != nil {
		return fmt.Errorf("clear resets: %w", err)
	}
	if _, err := qExec(ctx, tx, psql.Insert("password_resets").
		Columns("token", "user_id", "expires_at").
		Values(token, userID, expires)); err != nil {
		return fmt.Errorf("insert reset: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) ConsumePasswordReset(ctx context.Context, token string, now time.Time) (string, error) {
	defer metrics.RecordDBOperation("delete", "password_resets", time.Now())

	var userID string
	err := qRow(ctx, p.db, psql.Delete("password_resets").
		Where(sq.Eq{"token": token}).
		Where(sq.GtOrEq{"expires_at": now}).
		Suffix("RETURNING user_id"),
	).Scan(&userID)
	if isNoRows(err) {
		return "", fmt.Errorf("password reset: %w", ctf.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("password reset: %w", err)
	}
	return userID, nil
}

/* ===================== TEAMS ===================== */

func (p *Postgres) ListTeams(ctx context.Context) ([]ctf.TeamWithMembers, error) {
	defer metrics.RecordDBOperation("select", "teams", time.Now())

	rows, err := qQuery(ctx, p.db, psql.Select("id", "name", "created_by", "created_at").
		From("teams").
		OrderBy("created_at DESC"))
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	out := []ctf.TeamWithMembers{}
	idx := map[string]int{}
	for rows.Next() {
		var t ctf.TeamWithMembers
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		t.Members = []ctf.User{}
		idx[t.ID] = len(out)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := p.members(ctx, sq.NotEq{"u.team_id": nil})
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if i, ok := idx[*m.TeamID]; ok {
			out[i].Members = append(out[i].Members, m)
			out[i].MemberCount++
		}
	}
	return out, nil
}

func (p *Postgres) members(ctx context.Context, where sq.Sqlizer) ([]ctf.User, error) {
	rows, err := qQuery(ctx, p.db, psql.Select(userCols).From("users u").Where(where).OrderBy("u.created_at ASC"))
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	out := []ctf.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *Postgres) GetTeam(ctx context.Context, id string) (ctf.TeamWithMembers, error) {
	defer metrics.RecordDBOperation("select", "teams", time.Now())

	var t ctf.TeamWithMembers
	err := qRow(ctx, p.db, psql.Select("id", "name", "created_by", "created_at").
		From("teams").Where(sq.Eq{"id": id}),
	).Scan(&t.ID, &t.Name, &t.CreatedBy, &t.CreatedAt)
	if isNoRows(err) {
		return ctf.TeamWithMembers{}, fmt.Errorf("team %s: %w", id, ctf.ErrNotFound)
	}
	if err != nil {
		return ctf.TeamWithMembers{}, fmt.Errorf("get team: %w", err)
	}

	t.Members, err = p.members(ctx, sq.Eq{"u.team_id": id})
	if err != nil {
		return ctf.TeamWithMembers{}, err
	}
	t.MemberCount = len(t.Members)
	return t, nil
}

// lockUserTeam locks the user row and returns its current team.
func lockUserTeam(ctx context.Context, tx pgx.Tx, userID string) (*string, error) {
	var teamID *string
	err := tx.QueryRow(ctx, "SELECT team_id FROM users WHERE id = $1 FOR UPDATE", userID).Scan(&teamID)
	if isNoRows(err) {
		return nil, fmt.Errorf("user %s: %w", userID, ctf.ErrNotFound)
	}
	return teamID, err
}

// CreateTeam inserts the team and assigns the creator in one transaction.
func (p *Postgres) CreateTeam(ctx context.Context, name, creatorID string) (ctf.Team, error) {
	defer metrics.RecordDBOperation("insert", "teams", time.Now())

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return ctf.Team{}, err
	}
	defer tx.Rollback(ctx)

	current, err := lockUserTeam(ctx, tx, creatorID)
	if err != nil {
		return ctf.Team{}, err
	}
	if current != nil {
		return ctf.Team{}, fmt.Errorf("create team: %w", ctf.ErrAlreadyInTeam)
	}

	t := ctf.Team{ID: NewID(), Name: name, CreatedBy: creatorID}
	err = qRow(ctx, tx, psql.Insert("teams").
		Columns("id", "name", "created_by").
		Values(t.ID, t.Name, t.CreatedBy).
		Suffix("RETURNING created_at"),
	).Scan(&t.CreatedAt)
	if isUniqueViolation(err) {
		return ctf.Team{}, fmt.Errorf("team %q: %w", name, ctf.ErrNameTaken)
	}
	if err != nil {
		return ctf.Team{}, fmt.Errorf("insert team: %w", err)
	}

	if _, err := qExec(ctx, tx, psql.Update("users").Set("team_id", t.ID).Where(sq.Eq{"id": creatorID})); err != nil {
		return ctf.Team{}, fmt.Errorf("assign creator: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return ctf.Team{}, err
	}
	return t, nil
}

// JoinTeam locks the team row before counting members, so concurrent joins
// to the same team serialize and cannot overshoot the cap.
func (p *Postgres) JoinTeam(ctx context.Context, teamID, userID string) error {
	defer metrics.RecordDBOperation("update", "users", time.Now())

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, "SELECT id FROM teams WHERE id = $1 FOR UPDATE", teamID).Scan(&locked)
	if isNoRows(err) {
		return fmt.Errorf("team %s: %w", teamID, ctf.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock team: %w", err)
	}

	current, err := lockUserTeam(ctx, tx, userID)
	if err != nil {
		return err
	}
	if current != nil {
		return fmt.Errorf("join team: %w", ctf.ErrAlreadyInTeam)
	}

	var count int
	if err := qRow(ctx, tx, psql.Select("count(*)").From("users").Where(sq.Eq{"team_id": teamID})).Scan(&count); err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	if err := ctf.CanJoin(count); err != nil {
		return err
	}

	if _, err := qExec(ctx, tx, psql.Update("users").Set("team_id", teamID).Where(sq.Eq{"id": userID})); err != nil {
		return fmt.Errorf("join team: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) LeaveTeam(ctx context.Context, teamID, userID string) error {
	defer metrics.RecordDBOperation("update", "users", time.Now())

	tag, err := qExec(ctx, p.db, psql.Update("users").
		Set("team_id", nil).
		Where(sq.Eq{"id": userID, "team_id": teamID}))
	if err != nil {
		return fmt.Errorf("leave team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("leave team: %w", ctf.ErrNotInTeam)
	}
	return nil
}

// DeleteTeam clears every member and removes the team in one transaction.
func (p *Postgres) DeleteTeam(ctx context.Context, teamID, requesterID string) error {
	defer metrics.RecordDBOperation("delete", "teams", time.Now())

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var createdBy string
	err = tx.QueryRow(ctx, "SELECT created_by FROM teams WHERE id = $1 FOR UPDATE", teamID).Scan(&createdBy)
	if isNoRows(err) {
		return fmt.Errorf("team %s: %w", teamID, ctf.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock team: %w", err)
	}
	if createdBy != requesterID {
		return fmt.Errorf("delete team: %w", ctf.ErrNotTeamCreator)
	}

	if _, err := qExec(ctx, tx, psql.Update("users").Set("team_id", nil).Where(sq.Eq{"team_id": teamID})); err != nil {
		return fmt.Errorf("clear members: %w", err)
	}
	if _, err := qExec(ctx, tx, psql.Delete("teams").Where(sq.Eq{"id": teamID})); err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	return tx.Commit(ctx)
}

/* ===================== CHALLENGES ===================== */

var challengeCols = []string{
	"id", "title", "description", "category", "points", "difficulty",
	"link", "file_path", "flag", "enabled", "solve_count", "created_at",
}

func scanChallenge(row pgx.Row) (ctf.Challenge, error) {
	var c ctf.Challenge
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.Points, &c.Difficulty,
		&c.Link, &c.FilePath, &c.Flag, &c.Enabled, &c.SolveCount, &c.CreatedAt)
	return c, err
}

func (p *Postgres) ListChallenges(ctx context.Context, enabledOnly bool) ([]ctf.Challenge, error) {
	defer metrics.RecordDBOperation("select", "challenges", time.Now())

	q := psql.Select(challengeCols...).From("challenges").OrderBy("points ASC", "created_at ASC")
	if enabledOnly {
		q = q.Where(sq.Eq{"enabled": true})
	}
	rows, err := qQuery(ctx, p.db, q)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	out := []ctf.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) GetChallenge(ctx context.Context, id string) (ctf.Challenge, error) {
	defer metrics.RecordDBOperation("select", "challenges", time.Now())

	c, err := scanChallenge(qRow(ctx, p.db, psql.Select(challengeCols...).From("challenges").Where(sq.Eq{"id": id})))
	if isNoRows(err) {
		return ctf.Challenge{}, fmt.Errorf("challenge %s: %w", id, ctf.ErrNotFound)
	}
	if err != nil {
		return ctf.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

func (p *Postgres) CreateChallenge(ctx context.Context, c *ctf.Challenge) error {
	defer metrics.RecordDBOperation("insert", "challenges", time.Now())

	if c.ID == "" {
		c.ID = NewID()
	}
	c.SolveCount = 0
	err := qRow(ctx, p.db, psql.Insert("challenges").
		Columns("id", "title", "description", "category", "points", "difficulty", "link", "file_path", "flag", "enabled").
		Values(c.ID, c.Title, c.Description, c.Category, c.Points, c.Difficulty, c.Link, c.FilePath, c.Flag, c.Enabled).
		Suffix("RETURNING created_at"),
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateChallenge(ctx context.Context, c ctf.Challenge) error {
	defer metrics.RecordDBOperation("update", "challenges", time.Now())

	tag, err := qExec(ctx, p.db, psql.Update("challenges").SetMap(map[string]any{
		"title":       c.Title,
		"description": c.Description,
		"category":    c.Category,
		"points":      c.Points,
		"difficulty":  c.Difficulty,
		"link":        c.Link,
		"flag":        c.Flag,
		"enabled":     c.Enabled,
	}).Where(sq.Eq{"id": c.ID}))
	if err != nil {
		return fmt.Errorf("update challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("challenge %s: %w", c.ID, ctf.ErrNotFound)
	}
	return nil
}

func (p *Postgres) SetChallengeFile(ctx context.Context, id, path string) error {
	defer metrics.RecordDBOperation("update", "challenges", time.Now())

	tag, err := qExec(ctx, p.db, psql.Update("challenges").Set("file_path", path).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("set challenge file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("challenge %s: %w", id, ctf.ErrNotFound)
	}
	return nil
}

func (p *Postgres) DeleteChallenge(ctx context.Context, id string) error {
	defer metrics.RecordDBOperation("delete", "challenges", time.Now())

	tag, err := qExec(ctx, p.db, psql.Delete("challenges").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("challenge %s: %w", id, ctf.ErrNotFound)
	}
	return nil
}

/* ===================== SOLVES ===================== */

// CreateSolve records the solve and bumps the challenge counter together.
// The (user_id, challenge_id) unique constraint maps to ctf.ErrDuplicateSolve.
func (p *Postgres) CreateSolve(ctx context.Context, s *ctf.Solve) error {
	defer metrics.RecordDBOperation("insert", "solves", time.Now())

	if s.ID == "" {
		s.ID = NewID()
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = qRow(ctx, tx, psql.Insert("solves").
		Columns("id", "user_id", "team_id", "challenge_id").
		Values(s.ID, s.UserID, s.TeamID, s.ChallengeID).
		Suffix("RETURNING submitted_at"),
	).Scan(&s.SubmittedAt)
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("solve %s/%s: %w", s.UserID, s.ChallengeID, ctf.ErrDuplicateSolve)
	case isForeignKeyViolation(err):
		return fmt.Errorf("solve %s: %w", s.ChallengeID, ctf.ErrNotFound)
	case err != nil:
		return fmt.Errorf("insert solve: %w", err)
	}

	if _, err := qExec(ctx, tx, psql.Update("challenges").
		Set("solve_count", sq.Expr("solve_count + 1")).
		Where(sq.Eq{"id": s.ChallengeID})); err != nil {
		return fmt.Errorf("bump solve count: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) SolvedChallengeIDs(ctx context.Context, userID string) ([]string, error) {
	defer metrics.RecordDBOperation("select", "solves", time.Now())

	rows, err := qQuery(ctx, p.db, psql.Select("challenge_id").From("solves").Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return nil, fmt.Errorf("solved ids: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (p *Postgres) UserSolves(ctx context.Context, userID string) ([]ctf.SolveDetail, error) {
	defer metrics.RecordDBOperation("select", "solves", time.Now())

	rows, err := qQuery(ctx, p.db, psql.Select(
		"s.id", "s.user_id", "s.team_id", "s.challenge_id", "s.submitted_at",
		"c.title", "c.category", "c.points").
		From("solves s").
		Join("challenges c ON c.id = s.challenge_id").
		Where(sq.Eq{"s.user_id": userID}).
		OrderBy("s.submitted_at DESC"))
	if err != nil {
		return nil, fmt.Errorf("user solves: %w", err)
	}
	defer rows.Close()

	out := []ctf.SolveDetail{}
	for rows.Next() {
		var d ctf.SolveDetail
		if err := rows.Scan(&d.ID, &d.UserID, &d.TeamID, &d.ChallengeID, &d.SubmittedAt,
			&d.Title, &d.Category, &d.Points); err != nil {
			return nil, fmt.Errorf("scan solve: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

/* ===================== COMPETITION ===================== */

func (p *Postgres) GetConfig(ctx context.Context) (ctf.Config, error) {
	defer metrics.RecordDBOperation("select", "ctf_config", time.Now())

	var cfg ctf.Config
	err := p.db.QueryRow(ctx,
		"SELECT ctf_started, ctf_start_time, ctf_end_time, updated_at FROM ctf_config WHERE id = 1",
	).Scan(&cfg.Started, &cfg.StartTime, &cfg.EndTime, &cfg.UpdatedAt)
	if err != nil {
		return ctf.Config{}, fmt.Errorf("get config: %w", err)
	}
	return cfg, nil
}

func (p *Postgres) UpdateConfig(ctx context.Context, cfg ctf.Config) (ctf.Config, error) {
	defer metrics.RecordDBOperation("update", "ctf_config", time.Now())

	err := qRow(ctx, p.db, psql.Update("ctf_config").
		Set("ctf_started", cfg.Started).
		Set("ctf_start_time", cfg.StartTime).
		Set("ctf_end_time", cfg.EndTime).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": 1}).
		Suffix("RETURNING updated_at"),
	).Scan(&cfg.UpdatedAt)
	if err != nil {
		return ctf.Config{}, fmt.Errorf("update config: %w", err)
	}
	return cfg, nil
}

func (p *Postgres) Leaderboard(ctx context.Context) ([]ctf.LeaderboardEntry, error) {
	defer metrics.RecordDBOperation("rpc", "get_team_leaderboard", time.Now())

	rows, err := p.db.Query(ctx,
		`SELECT team_id, team_name, total_score, solve_count, last_solve_time, max_difficulty
		 FROM get_team_leaderboard()`)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	out := []ctf.LeaderboardEntry{}
	for rows.Next() {
		var e ctf.LeaderboardEntry
		if err := rows.Scan(&e.TeamID, &e.TeamName, &e.TotalScore, &e.SolveCount, &e.LastSolveTime, &e.MaxDifficulty); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) Stats(ctx context.Context) (ctf.Stats, error) {
	var st ctf.Stats
	err := p.db.QueryRow(ctx, `SELECT
		(SELECT count(*) FROM users),
		(SELECT count(*) FROM teams),
		(SELECT count(*) FROM challenges),
		(SELECT count(*) FROM challenges WHERE enabled),
		(SELECT count(*) FROM solves)`,
	).Scan(&st.Users, &st.Teams, &st.Challenges, &st.EnabledChallenges, &st.Solves)
	if err != nil {
		return ctf.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

/* ===================== AUDIT ===================== */

func (p *Postgres) LogAction(ctx context.Context, actorID *string, action, details string) error {
	_, err := qExec(ctx, p.db, psql.Insert("logs").
		Columns("actor_id", "action", "details").
		Values(actorID, action, details))
	return err
}

func (p *Postgres) ListLogs(ctx context.Context, limit int) ([]ctf.LogEntry, error) {
	rows, err := p.db.Query(ctx,
		`SELECT l.id,
		        l.created_at,
		        CASE WHEN l.actor_id IS NULL THEN '(system)'
		             ELSE COALESCE(NULLIF(u.display_name, ''), u.email, '(deleted)') END AS actor,
		        l.action,
		        l.details
		 FROM logs l
		 LEFT JOIN users u ON u.id = l.actor_id
		 ORDER BY l.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	out := []ctf.LogEntry{}
	for rows.Next() {
		var e ctf.LogEntry
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Actor, &e.Action, &e.Details); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
