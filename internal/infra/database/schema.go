package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements creates the tables the bot needs. Executed at startup;
// every statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		telegram_id BIGINT UNIQUE NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		username TEXT,
		frequency INT NOT NULL DEFAULT 1,
		window_start_minute INT NOT NULL DEFAULT 480,
		window_end_minute INT NOT NULL DEFAULT 1260,
		notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		streak_count INT NOT NULL DEFAULT 0,
		last_active_day TIMESTAMPTZ,
		last_notified_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS topics (
		id BIGSERIAL PRIMARY KEY,
		slug TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		tier TEXT NOT NULL,
		position INT NOT NULL,
		prerequisites BIGINT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS progress_records (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		topic_id BIGINT NOT NULL REFERENCES topics(id),
		mastery DOUBLE PRECISION NOT NULL DEFAULT 0,
		interval_seconds BIGINT NOT NULL DEFAULT 0,
		streak INT NOT NULL DEFAULT 0,
		attempts INT NOT NULL DEFAULT 0,
		last_reviewed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		next_due_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, topic_id)
	)`,
	`CREATE TABLE IF NOT EXISTS learning_sessions (
		id UUID PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		topic_id BIGINT NOT NULL,
		state TEXT NOT NULL,
		outcome TEXT,
		content_ref TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		ended_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS achievements (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		kind TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		awarded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, kind)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_progress_user_due ON progress_records (user_id, next_due_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user ON learning_sessions (user_id, started_at)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
