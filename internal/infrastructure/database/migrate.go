package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eslsoft/studydeck/internal/infrastructure/config"
)

// Schema DDL for the two tables. review_history rows are owned by their
// flashcard and cascade on delete; subject and next_review carry indexes
// for the list and due-card queries.
var postgresStatements = []string{
	`CREATE TABLE IF NOT EXISTS flashcards (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		difficulty INTEGER NOT NULL DEFAULT 1,
		tags TEXT NOT NULL DEFAULT '',
		document_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_reviewed TIMESTAMPTZ,
		next_review TIMESTAMPTZ,
		correct_count BIGINT NOT NULL DEFAULT 0,
		incorrect_count BIGINT NOT NULL DEFAULT 0,
		easiness_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
		interval_days INTEGER NOT NULL DEFAULT 1,
		repetition_number INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS review_history (
		id TEXT PRIMARY KEY,
		flashcard_id TEXT NOT NULL REFERENCES flashcards (id) ON DELETE CASCADE,
		reviewed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		correct BOOLEAN NOT NULL,
		time_spent_seconds INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_flashcards_subject ON flashcards (subject)`,
	`CREATE INDEX IF NOT EXISTS idx_flashcards_next_review ON flashcards (next_review)`,
	`CREATE INDEX IF NOT EXISTS idx_review_history_flashcard ON review_history (flashcard_id)`,
}

var sqliteStatements = []string{
	`PRAGMA foreign_keys = ON`,
	`CREATE TABLE IF NOT EXISTS flashcards (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		difficulty INTEGER NOT NULL DEFAULT 1,
		tags TEXT NOT NULL DEFAULT '',
		document_id TEXT,
		created_at TEXT NOT NULL,
		last_reviewed TEXT,
		next_review TEXT,
		correct_count INTEGER NOT NULL DEFAULT 0,
		incorrect_count INTEGER NOT NULL DEFAULT 0,
		easiness_factor REAL NOT NULL DEFAULT 2.5,
		interval_days INTEGER NOT NULL DEFAULT 1,
		repetition_number INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS review_history (
		id TEXT PRIMARY KEY,
		flashcard_id TEXT NOT NULL REFERENCES flashcards (id) ON DELETE CASCADE,
		reviewed_at TEXT NOT NULL,
		correct BOOLEAN NOT NULL,
		time_spent_seconds INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_flashcards_subject ON flashcards (subject)`,
	`CREATE INDEX IF NOT EXISTS idx_flashcards_next_review ON flashcards (next_review)`,
	`CREATE INDEX IF NOT EXISTS idx_review_history_flashcard ON review_history (flashcard_id)`,
}

// Statements returns the schema DDL for the given driver.
func Statements(driver string) ([]string, error) {
	switch driver {
	case config.DriverPostgres:
		return postgresStatements, nil
	case config.DriverSQLite:
		return sqliteStatements, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// MigratePostgres applies the schema through the pool.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range postgresStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// MigrateSQLite applies the schema to the open sqlite database.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	for _, stmt := range sqliteStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
