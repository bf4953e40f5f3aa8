package db

import "fmt"

// migrate runs database migrations.
func (s *SQLite) migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			telegram_id INTEGER NOT NULL UNIQUE,
			username    TEXT NOT NULL DEFAULT '',
			first_name  TEXT NOT NULL DEFAULT '',
			last_name   TEXT NOT NULL DEFAULT '',
			photo_url   TEXT NOT NULL DEFAULT '',
			chat_id     INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS items (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			type        TEXT NOT NULL CHECK(type IN ('event', 'task')),
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			date        TEXT NOT NULL DEFAULT '',
			start_time  TEXT NOT NULL DEFAULT '',
			end_time    TEXT NOT NULL DEFAULT '',
			duration    INTEGER NOT NULL DEFAULT 0,
			color       TEXT NOT NULL DEFAULT '',
			icon        TEXT NOT NULL DEFAULT '',
			completed   INTEGER NOT NULL DEFAULT 0,
			recurrence  TEXT NOT NULL DEFAULT '',
			source      TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_items_user_date ON items(user_id, date);
		CREATE INDEX IF NOT EXISTS idx_items_date ON items(date);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}

	return nil
}

// postgresSchema is applied on every Postgres open.
const postgresSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		telegram_id BIGINT NOT NULL UNIQUE,
		username    TEXT NOT NULL DEFAULT '',
		first_name  TEXT NOT NULL DEFAULT '',
		last_name   TEXT NOT NULL DEFAULT '',
		photo_url   TEXT NOT NULL DEFAULT '',
		chat_id     BIGINT NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS items (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		type        TEXT NOT NULL CHECK(type IN ('event', 'task')),
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		date        TEXT NOT NULL DEFAULT '',
		start_time  TEXT NOT NULL DEFAULT '',
		end_time    TEXT NOT NULL DEFAULT '',
		duration    INTEGER NOT NULL DEFAULT 0,
		color       TEXT NOT NULL DEFAULT '',
		icon        TEXT NOT NULL DEFAULT '',
		completed   BOOLEAN NOT NULL DEFAULT FALSE,
		recurrence  TEXT NOT NULL DEFAULT '',
		source      TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_user_date ON items(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_items_date ON items(date);
`
