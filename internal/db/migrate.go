// Package db is the SQLite-backed implementation of ticket.Store.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the raw connection pool and owns migration bookkeeping,
// mirroring the teacher's internal/db.DB.
type DB struct {
	conn *sql.DB
}

type migration struct {
	version int
	sql     string
}

// Open creates the parent directory if needed, opens the SQLite file
// in WAL mode with foreign keys enabled, and applies any pending
// migrations.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	d := &DB{conn: conn}
	if err := d.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func (d *DB) Close() error { return d.conn.Close() }

func (d *DB) migrate() error {
	if _, err := d.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	row := d.conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := d.conn.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := d.conn.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

var migrations = []migration{
	{1, `CREATE TABLE projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		prefix TEXT NOT NULL,
		path TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`},
	{2, `CREATE TABLE worker_types (
		project_id TEXT NOT NULL REFERENCES projects(id),
		worker_type TEXT NOT NULL,
		template TEXT NOT NULL,
		short_description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		PRIMARY KEY (project_id, worker_type)
	)`},
	{3, `CREATE TABLE tickets (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		execution_plan TEXT NOT NULL,
		current_stage INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL DEFAULT 'open',
		dependency_status TEXT NOT NULL DEFAULT 'ready',
		priority TEXT NOT NULL DEFAULT 'medium',
		claimed_by TEXT NOT NULL DEFAULT '',
		claimed_at TEXT,
		parent_ticket_id TEXT REFERENCES tickets(id),
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		updated_at TEXT NOT NULL DEFAULT (datetime('now')),
		closed_at TEXT
	)`},
	{4, `CREATE INDEX idx_tickets_project ON tickets(project_id)`},
	{5, `CREATE TABLE ticket_dependencies (
		project_id TEXT NOT NULL,
		ticket_id TEXT NOT NULL REFERENCES tickets(id),
		depends_on TEXT NOT NULL REFERENCES tickets(id),
		dependency_type TEXT NOT NULL DEFAULT 'blocks',
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		PRIMARY KEY (ticket_id, depends_on)
	)`},
	{6, `CREATE TABLE comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id TEXT NOT NULL REFERENCES tickets(id),
		worker_type TEXT NOT NULL DEFAULT '',
		worker_id TEXT NOT NULL DEFAULT '',
		stage TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`},
	{7, `CREATE TABLE events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL,
		ticket_id TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`},
	{8, `CREATE TABLE config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`},
	{9, `CREATE TABLE worker_claims (
		worker_id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		ticket_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		nonce INTEGER NOT NULL,
		spawned_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`},
}
