// Package adapters builds the storage adapter named by PIXEL_ADAPTER.
package adapters

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pixel-analytics/pixel/internal/core/ports"
	"github.com/pixel-analytics/pixel/internal/infrastructure/azure"
	"github.com/pixel-analytics/pixel/internal/infrastructure/config"
	"github.com/pixel-analytics/pixel/internal/infrastructure/console"
	"github.com/pixel-analytics/pixel/internal/infrastructure/db/mongo"
	"github.com/pixel-analytics/pixel/internal/infrastructure/db/postgres"
	"github.com/pixel-analytics/pixel/internal/infrastructure/db/redis"
	"github.com/pixel-analytics/pixel/internal/infrastructure/db/sqlite"
	"github.com/pixel-analytics/pixel/internal/infrastructure/june"
	"github.com/pixel-analytics/pixel/internal/infrastructure/memory"
	"github.com/pixel-analytics/pixel/internal/infrastructure/queue"
)

// Storage is the adapter chosen at startup plus what the server needs to
// probe and release it.
type Storage struct {
	Adapter ports.StorageAdapter
	Checks  map[string]ports.HealthChecker

	closers []func(context.Context) error
}

// Close releases resources in reverse order of acquisition.
func (s *Storage) Close(ctx context.Context) error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *Storage) onClose(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

// Build connects the configured backend, prepares its schema and, when
// PIXEL_ASYNC_WORKERS > 0, wraps it in the async dispatcher.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Storage, error) {
	s := &Storage{Checks: map[string]ports.HealthChecker{}}
	adapterLog := log.With().Str("adapter", cfg.Pixel.Adapter).Logger()

	adapter, err := open(ctx, s, cfg, adapterLog)
	if err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("adapter %s: %w", cfg.Pixel.Adapter, err)
	}
	if hc, ok := adapter.(ports.HealthChecker); ok {
		s.Checks[adapter.Name()] = hc
	}

	if cfg.Pixel.AsyncWorkers > 0 {
		async := queue.NewAsyncAdapter(adapter, cfg.Pixel.AsyncWorkers, adapterLog)
		async.Start()
		s.onClose(async.Stop)
		adapter = async
	}

	s.Adapter = adapter
	log.Info().
		Str("adapter", adapter.Name()).
		Int("async_workers", cfg.Pixel.AsyncWorkers).
		Msg("storage adapter ready")
	return s, nil
}

func open(ctx context.Context, s *Storage, cfg *config.Config, log zerolog.Logger) (ports.StorageAdapter, error) {
	switch cfg.Pixel.Adapter {
	case "console":
		return console.NewAdapter(log), nil

	case "memory":
		return memory.NewAdapter(), nil

	case "postgres":
		pool, err := postgres.Connect(ctx, postgres.Config{URL: cfg.Postgres.URL, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, err
		}
		s.onClose(func(context.Context) error { pool.Close(); return nil })
		a := postgres.NewAdapter(pool)
		if err := a.Migrate(ctx); err != nil {
			return nil, err
		}
		return a, nil

	case "sqlite":
		db, err := sqlite.Open(ctx, sqlite.Config{
			Path:       cfg.SQLite.Path,
			TursoURL:   cfg.SQLite.TursoURL,
			TursoToken: cfg.SQLite.TursoToken,
		})
		if err != nil {
			return nil, err
		}
		s.onClose(func(context.Context) error { return db.Close() })
		a := sqlite.NewAdapter(db)
		if err := a.Migrate(ctx); err != nil {
			return nil, err
		}
		return a, nil

	case "mongo":
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		s.onClose(client.Disconnect)
		a := mongo.NewAdapter(db, log)
		if err := a.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return a, nil

	case "redis":
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		s.onClose(func(context.Context) error { return rdb.Close() })
		return redis.NewStreamAdapter(rdb, redis.WithStream(cfg.Redis.Stream)), nil

	case "azqueue":
		qc, err := azure.NewQueueClient(cfg.Azure.ConnectionString, cfg.Azure.QueueName)
		if err != nil {
			return nil, err
		}
		return azure.NewQueueAdapter(qc), nil

	case "aztables":
		users, events, err := azure.NewTableClients(cfg.Azure.ConnectionString, cfg.Azure.UsersTable, cfg.Azure.EventsTable)
		if err != nil {
			return nil, err
		}
		if err := azure.EnsureTable(ctx, users); err != nil {
			return nil, fmt.Errorf("ensure table %s: %w", cfg.Azure.UsersTable, err)
		}
		if err := azure.EnsureTable(ctx, events); err != nil {
			return nil, fmt.Errorf("ensure table %s: %w", cfg.Azure.EventsTable, err)
		}
		return azure.NewTableAdapter(users, events), nil

	case "june":
		return june.NewAdapter(cfg.June.WriteKey, june.WithEndpoint(cfg.June.Endpoint)), nil

	default:
		return nil, fmt.Errorf("unknown adapter %q", cfg.Pixel.Adapter)
	}
}
