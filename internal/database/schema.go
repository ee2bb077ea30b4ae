package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the schema when it does not exist yet. Idempotent; run at
// startup. Content tables are owned by the import tooling, progress and
// attempt tables by the practice core.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			full_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS languages (
			id SERIAL PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS courses (
			id SERIAL PRIMARY KEY,
			language_id INTEGER NOT NULL REFERENCES languages(id) ON DELETE CASCADE,
			slug TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS levels (
			id SERIAL PRIMARY KEY,
			course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
			number SMALLINT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			UNIQUE (course_id, number)
		)`,
		`CREATE TABLE IF NOT EXISTS topics (
			id SERIAL PRIMARY KEY,
			course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
			slug TEXT NOT NULL,
			name TEXT NOT NULL,
			UNIQUE (course_id, slug)
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id SERIAL PRIMARY KEY,
			level_id INTEGER NOT NULL REFERENCES levels(id) ON DELETE CASCADE,
			topic_id INTEGER REFERENCES topics(id) ON DELETE SET NULL,
			kind TEXT NOT NULL DEFAULT 'phrase',
			fr TEXT NOT NULL,
			target TEXT NOT NULL,
			translit TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			audio_url TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			version INTEGER NOT NULL DEFAULT 1,
			UNIQUE (level_id, fr, target)
		)`,
		`CREATE INDEX IF NOT EXISTS items_level_topic ON items (level_id, topic_id)`,
		`CREATE TABLE IF NOT EXISTS exercises (
			id SERIAL PRIMARY KEY,
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			ex_type TEXT NOT NULL,
			prompt JSONB,
			choices JSONB,
			answer JSONB,
			difficulty SMALLINT NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS enrollments (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, course_id)
		)`,
		`CREATE TABLE IF NOT EXISTS item_progress (
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			status TEXT NOT NULL DEFAULT 'new',
			last_result BOOLEAN,
			streak INTEGER NOT NULL DEFAULT 0,
			ease NUMERIC(4,2) NOT NULL DEFAULT 2.50,
			interval_days INTEGER NOT NULL DEFAULT 0,
			due_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, item_id)
		)`,
		`CREATE INDEX IF NOT EXISTS item_progress_user_due ON item_progress (user_id, due_at)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			exercise_id INTEGER NOT NULL REFERENCES exercises(id) ON DELETE CASCADE,
			is_correct BOOLEAN NOT NULL,
			time_ms INTEGER,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS media_assets (
			id SERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			lang_code TEXT NOT NULL DEFAULT 'ln',
			text_hash TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL,
			duration_ms INTEGER,
			item_id INTEGER REFERENCES items(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		// Content addressing: at most one tts asset per (lang, hash).
		`CREATE UNIQUE INDEX IF NOT EXISTS media_assets_tts_key
			ON media_assets (lang_code, text_hash) WHERE kind = 'tts'`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
