// Package db records flagging runs and their commands in SQLite or
// PostgreSQL.
package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// DB wraps the run history database connection.
type DB struct {
	conn   *sqlx.DB
	driver string
}

// Open opens or creates the database. driver is "sqlite" or "pgx".
func Open(driver, dsn string) (*DB, error) {
	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite" {
		// one connection keeps ":memory:" databases alive across calls
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if driver == "sqlite" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set journal mode: %w", err)
		}
		if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	return &DB{conn: conn, driver: driver}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sqlx.DB for advanced queries.
func (d *DB) Conn() *sqlx.DB {
	return d.conn
}

// schemaV1 is portable between SQLite and PostgreSQL; timestamps are
// written by the application as RFC 3339 text.
var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS flag_runs (
    id             TEXT PRIMARY KEY,
    stage          TEXT NOT NULL,
    artifact       TEXT NOT NULL,
    shape          TEXT NOT NULL,
    iterations     INTEGER NOT NULL,
    stop_reason    TEXT NOT NULL,
    flag_count     INTEGER NOT NULL,
    before_flagged INTEGER NOT NULL DEFAULT 0,
    before_total   INTEGER NOT NULL DEFAULT 0,
    after_flagged  INTEGER NOT NULL DEFAULT 0,
    after_total    INTEGER NOT NULL DEFAULT 0,
    created_at     TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_stage ON flag_runs(stage, created_at)`,
	`CREATE TABLE IF NOT EXISTS flag_commands (
    run_id    TEXT NOT NULL REFERENCES flag_runs(id) ON DELETE CASCADE,
    seq       INTEGER NOT NULL,
    rule_name TEXT NOT NULL,
    reason    TEXT NOT NULL,
    spw       TEXT NOT NULL,
    antenna   TEXT NOT NULL,
    pol       TEXT NOT NULL,
    flagcmd   TEXT NOT NULL,
    PRIMARY KEY (run_id, seq)
)`,
}

// Migrate applies the database schema.
func (d *DB) Migrate(ctx context.Context) error {
	var count int
	err := d.conn.GetContext(ctx, &count, "SELECT COUNT(*) FROM schema_version WHERE version = 1")
	if err == nil && count > 0 {
		return nil
	}

	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaV1 {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema v1: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)"),
		1, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Reset drops all tables and re-applies the schema.
func (d *DB) Reset(ctx context.Context) error {
	tables := []string{"flag_commands", "flag_runs", "schema_version"}
	for _, t := range tables {
		if _, err := d.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return fmt.Errorf("drop table %s: %w", t, err)
		}
	}
	return d.Migrate(ctx)
}
