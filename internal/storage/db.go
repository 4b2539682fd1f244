// Package storage persists the query audit trail: every answered query,
// the ground-truth computations behind it, and any arithmetic
// discrepancies found in the narration.
package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/atlasworkforce/labor-intel/internal/config"
)

// Open connects to the configured audit database and applies migrations.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	var driver, dsn string
	switch cfg.Driver {
	case "sqlite":
		driver = "sqlite3"
		dsn = cfg.SQLite.Path
		if cfg.SQLite.JournalMode != "" {
			dsn += "?_journal_mode=" + cfg.SQLite.JournalMode
		}
	case "postgres":
		driver = "postgres"
		dsn = cfg.Postgres.DSN
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	switch cfg.Driver {
	case "sqlite":
		if cfg.SQLite.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.SQLite.MaxOpenConns)
		}
	case "postgres":
		if cfg.Postgres.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		}
		if cfg.Postgres.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		}
		if cfg.Postgres.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
		}
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Migrate creates the audit tables if they do not exist. The DDL sticks to
// types both SQLite and Postgres accept.
func Migrate(db *sql.DB) error {
	migrations := `
	CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		query TEXT NOT NULL,
		intent TEXT NOT NULL,
		category TEXT,
		answer TEXT,
		latency_ms INTEGER NOT NULL,
		cache_hit BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS computations (
		id TEXT PRIMARY KEY,
		query_id TEXT NOT NULL,
		op TEXT NOT NULL,
		description TEXT NOT NULL,
		value REAL NOT NULL,
		unit TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS discrepancies (
		id TEXT PRIMARY KEY,
		query_id TEXT NOT NULL,
		op TEXT NOT NULL,
		computed_value REAL NOT NULL,
		narrated_value REAL NOT NULL,
		difference_pct REAL NOT NULL,
		severity TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_queries_session ON queries(session_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_computations_query ON computations(query_id);
	CREATE INDEX IF NOT EXISTS idx_discrepancies_query ON discrepancies(query_id);
	`
	_, err := db.Exec(migrations)
	return err
}
