package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

const timeLayout = "2006-01-02 15:04:05.000"

// Adapter implements ports.StorageAdapter with database/sql.
type Adapter struct {
	db  *sql.DB
	now func() time.Time
}

func NewAdapter(db *sql.DB) *Adapter {
	return &Adapter{db: db, now: time.Now}
}

func (a *Adapter) Name() string { return "sqlite" }

// Migrate creates the tables when they do not exist.
func (a *Adapter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}

const upsertUserSQL = `
INSERT INTO pixel_users (email, name, image, user_id, anonymous_id, data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (email) DO UPDATE SET
	name         = COALESCE(excluded.name, pixel_users.name),
	image        = COALESCE(excluded.image, pixel_users.image),
	user_id      = COALESCE(excluded.user_id, pixel_users.user_id),
	anonymous_id = COALESCE(excluded.anonymous_id, pixel_users.anonymous_id),
	data         = COALESCE(excluded.data, pixel_users.data),
	updated_at   = excluded.updated_at`

func (a *Adapter) SaveUser(ctx context.Context, subject domain.Subject) error {
	if subject.Email == "" {
		return nil
	}
	now := a.now().UTC().Format(timeLayout)
	_, err := a.db.ExecContext(ctx, upsertUserSQL,
		subject.Email,
		nullString(subject.Name),
		nullString(subject.Image),
		nullString(subject.UserID),
		nullString(subject.AnonymousID),
		jsonText(subject.Data),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("%w: sqlite upsert user: %w", domain.ErrPersistence, err)
	}
	return nil
}

// SaveEvent inserts the event; identified events connect to their profile,
// creating a minimal one when it does not exist yet.
func (a *Adapter) SaveEvent(ctx context.Context, record domain.EventRecord) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: sqlite begin: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	var userRef sql.NullInt64
	if email := record.Subject.Email; email != "" {
		now := a.now().UTC().Format(timeLayout)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pixel_users (email, name, image, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (email) DO NOTHING`,
			email, nullString(record.Subject.Name), nullString(record.Subject.Image), now, now,
		); err != nil {
			return fmt.Errorf("%w: sqlite connect user: %w", domain.ErrPersistence, err)
		}
		if err := tx.QueryRowContext(ctx, `SELECT id FROM pixel_users WHERE email = ?`, email).Scan(&userRef); err != nil {
			return fmt.Errorf("%w: sqlite lookup user: %w", domain.ErrPersistence, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pixel_events (id, event, data, user_ref, anonymous_id, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Event,
		jsonText(record.Data),
		userRef,
		nullString(record.Subject.AnonymousID),
		nullString(record.Subject.UserID),
		record.Timestamp.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("%w: sqlite insert event: %w", domain.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: sqlite commit: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Ping satisfies ports.HealthChecker.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func jsonText(v domain.Value) sql.NullString {
	if v.IsZero() {
		return sql.NullString{}
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
