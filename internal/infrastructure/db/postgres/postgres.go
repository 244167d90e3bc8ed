// Package postgres stores pixel profiles and events in PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config carries the pool settings.
type Config struct {
	URL      string
	MaxConns int32
	MinConns int32
}

// Connect creates a pgx pool and checks it with a ping.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}

	poolCfg.MaxConns = 10
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS pixel_users (
	id           BIGSERIAL PRIMARY KEY,
	email        TEXT NOT NULL UNIQUE,
	name         TEXT,
	image        TEXT,
	user_id      TEXT,
	anonymous_id TEXT,
	data         JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS pixel_events (
	id           TEXT PRIMARY KEY,
	event        TEXT NOT NULL,
	data         JSONB,
	user_ref     BIGINT REFERENCES pixel_users(id),
	anonymous_id TEXT,
	user_id      TEXT,
	created_at   TIMESTAMPTZ NOT NULL
);

ALTER TABLE pixel_events ADD COLUMN IF NOT EXISTS user_id TEXT;

CREATE INDEX IF NOT EXISTS pixel_events_event_created_idx ON pixel_events (event, created_at DESC);
CREATE INDEX IF NOT EXISTS pixel_events_user_ref_idx ON pixel_events (user_ref);
`
