package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration is one versioned schema step. Statements run inside a single
// transaction together with the schema_migrations bookkeeping row.
type migration struct {
	Version     int
	Description string
	Statements  []string
}

// migrations is the ordered schema history. Append only; never edit an
// applied version.
var migrations = []migration{
	{
		Version:     1,
		Description: "engine collections",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS health_records (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id TEXT NOT NULL,
				type TEXT NOT NULL,
				payload TEXT NOT NULL,
				created_at INTEGER NOT NULL,
				synced INTEGER NOT NULL DEFAULT 0,
				sync_attempts INTEGER NOT NULL DEFAULT 0
			);`,
			`CREATE INDEX IF NOT EXISTS idx_health_records_user_created
				ON health_records(user_id, created_at DESC);`,
			`CREATE TABLE IF NOT EXISTS sync_queue (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				kind TEXT NOT NULL,
				payload TEXT NOT NULL,
				enqueued_at INTEGER NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0
			);`,
			`CREATE TABLE IF NOT EXISTS emergency_contacts (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				relationship TEXT NOT NULL DEFAULT '',
				phone TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				priority INTEGER NOT NULL DEFAULT 100
			);`,
			`CREATE INDEX IF NOT EXISTS idx_contacts_user_priority
				ON emergency_contacts(user_id, priority);`,
			`CREATE TABLE IF NOT EXISTS medications (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				dosage TEXT NOT NULL DEFAULT '',
				schedule TEXT NOT NULL DEFAULT '',
				updated_at INTEGER NOT NULL
			);`,
			`CREATE TABLE IF NOT EXISTS appointments (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				provider TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				starts_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			);`,
		},
	},
}

// migrate applies all pending migrations in version order.
func migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY CHECK(version > 0),
			applied_at INTEGER NOT NULL,
			description TEXT NOT NULL
		);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := conn.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(ctx, conn, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, conn *sql.DB, m migration) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
		m.Version, time.Now().Unix(), m.Description); err != nil {
		return err
	}
	return tx.Commit()
}
