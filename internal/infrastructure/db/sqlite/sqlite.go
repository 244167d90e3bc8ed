// Package sqlite stores pixel profiles and events in SQLite, or in Turso
// through the libsql driver when credentials are configured.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"                      // SQLite driver
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
)

// Config selects the database. Turso wins when both URL and token are set.
type Config struct {
	Path       string
	TursoURL   string
	TursoToken string
}

// Open connects to Turso or falls back to the local SQLite file.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.TursoURL != "" && cfg.TursoToken != "" {
		db, err := sql.Open("libsql", cfg.TursoURL+"?authToken="+cfg.TursoToken)
		if err == nil {
			if pingErr := db.PingContext(ctx); pingErr == nil {
				return db, nil
			}
			db.Close()
		}
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pixel_users (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		email        TEXT NOT NULL UNIQUE,
		name         TEXT,
		image        TEXT,
		user_id      TEXT,
		anonymous_id TEXT,
		data         TEXT,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pixel_events (
		id           TEXT PRIMARY KEY,
		event        TEXT NOT NULL,
		data         TEXT,
		user_ref     INTEGER REFERENCES pixel_users(id),
		anonymous_id TEXT,
		user_id      TEXT,
		created_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS pixel_events_event_idx ON pixel_events (event, created_at)`,
}
