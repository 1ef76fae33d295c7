package store

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id           TEXT PRIMARY KEY,
		email        TEXT NOT NULL,
		pass_hash    TEXT NOT NULL,
		display_name TEXT,
		role         TEXT NOT NULL DEFAULT 'player' CHECK (role IN ('admin', 'player')),
		player_id    TEXT UNIQUE,
		team_id      TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email))`,

	`CREATE TABLE IF NOT EXISTS teams (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_by TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS teams_name_key ON teams (lower(name))`,
	`DO $$ BEGIN
		ALTER TABLE users ADD CONSTRAINT users_team_fk
			FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE SET NULL;
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`,
	`CREATE INDEX IF NOT EXISTS users_team_idx ON users (team_id)`,

	`CREATE TABLE IF NOT EXISTS challenges (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category    TEXT NOT NULL,
		points      INTEGER NOT NULL CHECK (points >= 0),
		difficulty  INTEGER NOT NULL CHECK (difficulty BETWEEN 1 AND 5),
		link        TEXT,
		file_path   TEXT,
		flag        TEXT NOT NULL,
		enabled     BOOLEAN NOT NULL DEFAULT true,
		solve_count INTEGER NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS solves (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		team_id      TEXT REFERENCES teams(id) ON DELETE SET NULL,
		challenge_id TEXT NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
		submitted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, challenge_id)
	)`,
	`CREATE INDEX IF NOT EXISTS solves_team_idx ON solves (team_id)`,

	`CREATE TABLE IF NOT EXISTS ctf_config (
		id             INTEGER PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		ctf_started    BOOLEAN NOT NULL DEFAULT false,
		ctf_start_time TIMESTAMPTZ,
		ctf_end_time   TIMESTAMPTZ,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`INSERT INTO ctf_config (id) VALUES (1) ON CONFLICT DO NOTHING`,

	`CREATE TABLE IF NOT EXISTS password_resets (
		token      TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS logs (
		id         BIGSERIAL PRIMARY KEY,
		actor_id   TEXT,
		action     TEXT NOT NULL,
		details    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// actor_id is kept after the user is deleted.
	`ALTER TABLE logs DROP CONSTRAINT IF EXISTS logs_actor_id_fkey`,

	// A challenge counts once per team, at the team's first solve of it.
	`CREATE OR REPLACE FUNCTION get_team_leaderboard()
	RETURNS TABLE (
		team_id         TEXT,
		team_name       TEXT,
		total_score     BIGINT,
		solve_count     BIGINT,
		last_solve_time TIMESTAMPTZ,
		max_difficulty  INTEGER
	)
	LANGUAGE sql STABLE AS $$
		WITH firsts AS (
			SELECT s.team_id AS tid, s.challenge_id AS cid, min(s.submitted_at) AS solved_at
			FROM solves s
			WHERE s.team_id IS NOT NULL
			GROUP BY s.team_id, s.challenge_id
		)
		SELECT t.id,
		       t.name,
		       COALESCE(sum(c.points), 0)::bigint,
		       count(c.id)::bigint,
		       max(f.solved_at),
		       COALESCE(max(c.difficulty), 0)::integer
		FROM teams t
		LEFT JOIN firsts f ON f.tid = t.id
		LEFT JOIN challenges c ON c.id = f.cid
		GROUP BY t.id, t.name
		ORDER BY 3 DESC, 5 ASC NULLS LAST, t.name ASC
	$$`,
}

// Migrate applies the schema in one transaction. Every statement is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i, stmt := range schema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i, err)
		}
	}
	return tx.Commit(ctx)
}
