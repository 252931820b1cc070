// Package database is the local relational store for events, media
// attachments, defect records, risk assessments, and sync jobs.
//
// SQLite (file under the agent home) is the default. Crews sharing one
// store on a site server can point the agent at MySQL instead via the
// database.driver / database.dsn config keys.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/structiq/fieldscan-agent/internal/config"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps the SQL connection with the agent's store operations.
type DB struct {
	conn   *sql.DB
	driver string
}

// New opens the store described by cfg. The schema is not touched;
// call Migrate before first use.
func New(cfg config.DatabaseConfig) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite3"
	}

	var dsn string
	switch driver {
	case "sqlite3":
		if cfg.Path == "" {
			return nil, fmt.Errorf("database path is empty (run 'fieldscan onboard')")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = cfg.Path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	case "mysql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("mysql driver selected but database dsn is empty")
		}
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported database driver %q (valid: sqlite3, mysql)", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY.
		conn.SetMaxOpenConns(1)
	}
	return &DB{conn: conn, driver: driver}, nil
}

// Driver returns the active driver name.
func (db *DB) Driver() string { return db.driver }

// Ping verifies the store is reachable.
func (db *DB) Ping(ctx context.Context) error { return db.conn.PingContext(ctx) }

// Close releases the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// Migrate creates any missing tables.
func (db *DB) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if db.driver == "mysql" {
		stmts = mysqlSchema
	}
	for _, stmt := range stmts {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id            TEXT PRIMARY KEY,
		project_code  TEXT NOT NULL DEFAULT '',
		inspector     TEXT NOT NULL DEFAULT '',
		title         TEXT NOT NULL DEFAULT '',
		description   TEXT NOT NULL DEFAULT '',
		latitude      REAL NOT NULL DEFAULT 0,
		longitude     REAL NOT NULL DEFAULT 0,
		location_ref  TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT 'draft',
		priority      TEXT NOT NULL DEFAULT '',
		risk_score    REAL NOT NULL DEFAULT 0,
		defect_count  INTEGER NOT NULL DEFAULT 0,
		remote_id     TEXT NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL,
		synced_at     DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id   TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		kind       TEXT NOT NULL,
		file_name  TEXT NOT NULL,
		local_path TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		sha256     TEXT NOT NULL DEFAULT '',
		remote_id  TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS defects (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id   TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		component  TEXT NOT NULL DEFAULT '',
		fields     TEXT NOT NULL DEFAULT '{}',
		summary    TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS risk_assessments (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id    TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		matrix_rev  TEXT NOT NULL DEFAULT '',
		answers     TEXT NOT NULL DEFAULT '[]',
		score       REAL NOT NULL DEFAULT 0,
		priority    TEXT NOT NULL DEFAULT '',
		assessed_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_jobs (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id     TEXT NOT NULL,
		ticket_id    TEXT NOT NULL DEFAULT '',
		archive_sha  TEXT NOT NULL DEFAULT '',
		archive_size INTEGER NOT NULL DEFAULT 0,
		status       TEXT NOT NULL DEFAULT 'pending',
		attempts     INTEGER NOT NULL DEFAULT 0,
		error_msg    TEXT NOT NULL DEFAULT '',
		started_at   DATETIME NOT NULL,
		completed_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_status ON events(status)`,
	`CREATE INDEX IF NOT EXISTS idx_attachments_event ON attachments(event_id)`,
	`CREATE INDEX IF NOT EXISTS idx_defects_event ON defects(event_id)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id            VARCHAR(64) PRIMARY KEY,
		project_code  VARCHAR(64) NOT NULL DEFAULT '',
		inspector     VARCHAR(128) NOT NULL DEFAULT '',
		title         VARCHAR(255) NOT NULL DEFAULT '',
		description   TEXT,
		latitude      DOUBLE NOT NULL DEFAULT 0,
		longitude     DOUBLE NOT NULL DEFAULT 0,
		location_ref  VARCHAR(255) NOT NULL DEFAULT '',
		status        VARCHAR(16) NOT NULL DEFAULT 'draft',
		priority      VARCHAR(8) NOT NULL DEFAULT '',
		risk_score    DOUBLE NOT NULL DEFAULT 0,
		defect_count  INT NOT NULL DEFAULT 0,
		remote_id     VARCHAR(128) NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL,
		synced_at     DATETIME NULL,
		INDEX idx_events_status (status)
	)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id         BIGINT PRIMARY KEY AUTO_INCREMENT,
		event_id   VARCHAR(64) NOT NULL,
		kind       VARCHAR(16) NOT NULL,
		file_name  VARCHAR(255) NOT NULL,
		local_path VARCHAR(512) NOT NULL,
		size_bytes BIGINT NOT NULL DEFAULT 0,
		sha256     CHAR(64) NOT NULL DEFAULT '',
		remote_id  VARCHAR(128) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		INDEX idx_attachments_event (event_id)
	)`,
	`CREATE TABLE IF NOT EXISTS defects (
		id         BIGINT PRIMARY KEY AUTO_INCREMENT,
		event_id   VARCHAR(64) NOT NULL,
		component  VARCHAR(64) NOT NULL DEFAULT '',
		fields     TEXT,
		summary    TEXT,
		created_at DATETIME NOT NULL,
		INDEX idx_defects_event (event_id)
	)`,
	`CREATE TABLE IF NOT EXISTS risk_assessments (
		id          BIGINT PRIMARY KEY AUTO_INCREMENT,
		event_id    VARCHAR(64) NOT NULL,
		matrix_rev  VARCHAR(64) NOT NULL DEFAULT '',
		answers     TEXT,
		score       DOUBLE NOT NULL DEFAULT 0,
		priority    VARCHAR(8) NOT NULL DEFAULT '',
		assessed_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_jobs (
		id           BIGINT PRIMARY KEY AUTO_INCREMENT,
		event_id     VARCHAR(64) NOT NULL,
		ticket_id    VARCHAR(128) NOT NULL DEFAULT '',
		archive_sha  CHAR(64) NOT NULL DEFAULT '',
		archive_size BIGINT NOT NULL DEFAULT 0,
		status       VARCHAR(16) NOT NULL DEFAULT 'pending',
		attempts     INT NOT NULL DEFAULT 0,
		error_msg    TEXT,
		started_at   DATETIME NOT NULL,
		completed_at DATETIME NULL
	)`,
}
