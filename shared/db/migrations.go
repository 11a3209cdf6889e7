package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	// Statements run in order inside one transaction. Each should be idempotent.
	Statements []string
}

// RunMigrations executes all pending migrations against db.
// Placeholders are rebound for the driver, so the bookkeeping queries work on SQLite and Postgres.
func RunMigrations(db *sqlx.DB, migrations []Migration) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	currentVersion := 0
	err = db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Beginx()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.Version, err)
		}

		for _, stmt := range m.Statements {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to execute migration %d (%s): %w", m.Version, m.Name, err)
			}
		}

		_, err = tx.Exec(
			tx.Rebind("INSERT INTO schema_migrations (version, name) VALUES (?, ?)"),
			m.Version,
			m.Name,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// PostMigrations creates the posts table. The DDL is portable between SQLite and Postgres.
var PostMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_posts_table",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS posts (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				content TEXT NOT NULL,
				author TEXT NOT NULL,
				category TEXT NOT NULL,
				tags TEXT NOT NULL DEFAULT '[]',
				image_url TEXT,
				image_ref TEXT NOT NULL DEFAULT '',
				publish_date TIMESTAMP,
				version INTEGER NOT NULL DEFAULT 1,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at)`,
		},
	},
}
