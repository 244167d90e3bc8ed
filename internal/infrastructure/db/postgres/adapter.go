package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

// execer is the slice of *pgxpool.Pool the adapter needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// Adapter implements ports.StorageAdapter on PostgreSQL.
type Adapter struct {
	db execer
}

func NewAdapter(db execer) *Adapter {
	return &Adapter{db: db}
}

func (a *Adapter) Name() string { return "postgres" }

// Migrate creates the tables when they do not exist.
func (a *Adapter) Migrate(ctx context.Context) error {
	if _, err := a.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Attributes the caller did not send stay as stored (COALESCE).
const upsertUserSQL = `
INSERT INTO pixel_users (email, name, image, user_id, anonymous_id, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, NOW(), NOW())
ON CONFLICT (email) DO UPDATE SET
	name         = COALESCE(EXCLUDED.name, pixel_users.name),
	image        = COALESCE(EXCLUDED.image, pixel_users.image),
	user_id      = COALESCE(EXCLUDED.user_id, pixel_users.user_id),
	anonymous_id = COALESCE(EXCLUDED.anonymous_id, pixel_users.anonymous_id),
	data         = COALESCE(EXCLUDED.data, pixel_users.data),
	updated_at   = NOW()`

// The no-op update makes RETURNING yield the id of an existing row too.
const insertIdentifiedEventSQL = `
WITH owner AS (
	INSERT INTO pixel_users (email, name, image)
	VALUES ($1, $2, $3)
	ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
	RETURNING id
)
INSERT INTO pixel_events (id, event, data, user_ref, anonymous_id, created_at, user_id)
SELECT $4, $5, $6::jsonb, owner.id, $7, $8, $9 FROM owner`

// Subjects without an email have no profile row; user_id still keeps the
// caller's own id when one was sent.
const insertAnonymousEventSQL = `
INSERT INTO pixel_events (id, event, data, user_ref, anonymous_id, created_at, user_id)
VALUES ($1, $2, $3::jsonb, NULL, $4, $5, $6)`

func (a *Adapter) SaveUser(ctx context.Context, subject domain.Subject) error {
	if subject.Email == "" {
		return nil
	}
	_, err := a.db.Exec(ctx, upsertUserSQL,
		subject.Email,
		nullable(subject.Name),
		nullable(subject.Image),
		nullable(subject.UserID),
		nullable(subject.AnonymousID),
		jsonb(subject.Data),
	)
	if err != nil {
		return fmt.Errorf("%w: postgres upsert user: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (a *Adapter) SaveEvent(ctx context.Context, record domain.EventRecord) error {
	s := record.Subject
	var err error
	if s.Email != "" {
		_, err = a.db.Exec(ctx, insertIdentifiedEventSQL,
			s.Email,
			nullable(s.Name),
			nullable(s.Image),
			record.ID,
			record.Event,
			jsonb(record.Data),
			nullable(s.AnonymousID),
			record.Timestamp.UTC(),
			nullable(s.UserID),
		)
	} else {
		_, err = a.db.Exec(ctx, insertAnonymousEventSQL,
			record.ID,
			record.Event,
			jsonb(record.Data),
			nullable(s.AnonymousID),
			record.Timestamp.UTC(),
			nullable(s.UserID),
		)
	}
	if err != nil {
		return fmt.Errorf("%w: postgres insert event: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Ping satisfies ports.HealthChecker.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.Ping(ctx)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// jsonb returns nil or the JSON text of v.
func jsonb(v domain.Value) any {
	if v.IsZero() {
		return nil
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return nil
	}
	return string(raw)
}
