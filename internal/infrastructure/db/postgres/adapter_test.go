package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

type execCall struct {
	sql  string
	args []any
}

type stubExecer struct {
	calls []execCall
	err   error
}

func (s *stubExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), s.err
}

func (s *stubExecer) Ping(context.Context) error { return s.err }

func TestAdapter_SaveUser_Upsert(t *testing.T) {
	db := &stubExecer{}
	a := NewAdapter(db)

	err := a.SaveUser(context.Background(), domain.Subject{
		Email: "a@x.com",
		Name:  "Ada",
		Data:  domain.Map(map[string]domain.Value{"plan": domain.String("pro")}),
	})
	if err != nil {
		t.Fatalf("save user: %v", err)
	}
	if len(db.calls) != 1 {
		t.Fatalf("expected one statement, got %d", len(db.calls))
	}
	call := db.calls[0]
	if !strings.Contains(call.sql, "ON CONFLICT (email) DO UPDATE") {
		t.Fatalf("expected upsert, got %s", call.sql)
	}
	if call.args[0] != "a@x.com" || call.args[1] != "Ada" {
		t.Fatalf("unexpected args: %v", call.args)
	}
	if call.args[2] != nil || call.args[3] != nil || call.args[4] != nil {
		t.Fatalf("absent attributes must be NULL so COALESCE keeps stored values: %v", call.args)
	}
	if call.args[5] != `{"plan":"pro"}` {
		t.Fatalf("unexpected jsonb arg: %v", call.args[5])
	}
}

func TestAdapter_SaveUser_SkipsWithoutEmail(t *testing.T) {
	db := &stubExecer{}
	if err := NewAdapter(db).SaveUser(context.Background(), domain.AnonymousSubject("a1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.calls) != 0 {
		t.Fatalf("expected no statement for subject without email")
	}
}

func TestAdapter_SaveEvent_Identified(t *testing.T) {
	db := &stubExecer{}
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err := NewAdapter(db).SaveEvent(context.Background(), domain.EventRecord{
		ID:        "01H",
		Event:     "Signed in",
		Subject:   domain.Subject{Email: "u@e.com", AnonymousID: "anon"},
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("save event: %v", err)
	}
	call := db.calls[0]
	if !strings.Contains(call.sql, "WITH owner AS") {
		t.Fatalf("expected connect-or-create statement, got %s", call.sql)
	}
	if call.args[0] != "u@e.com" || call.args[3] != "01H" || call.args[4] != "Signed in" {
		t.Fatalf("unexpected args: %v", call.args)
	}
	if call.args[5] != nil {
		t.Fatalf("null payload must be NULL, got %v", call.args[5])
	}
	if call.args[6] != "anon" || call.args[7] != ts || call.args[8] != nil {
		t.Fatalf("unexpected trailing args: %v", call.args)
	}
}

func TestAdapter_SaveEvent_Anonymous(t *testing.T) {
	db := &stubExecer{}
	err := NewAdapter(db).SaveEvent(context.Background(), domain.EventRecord{
		ID:      "01H",
		Event:   "pageview",
		Data:    domain.String("x"),
		Subject: domain.AnonymousSubject(""),
	})
	if err != nil {
		t.Fatalf("save event: %v", err)
	}
	call := db.calls[0]
	if !strings.Contains(call.sql, "NULL, $4") {
		t.Fatalf("expected anonymous insert, got %s", call.sql)
	}
	if call.args[2] != `"x"` || call.args[3] != "0" {
		t.Fatalf("unexpected args: %v", call.args)
	}
}

func TestAdapter_SaveEvent_UserIDWithoutEmail(t *testing.T) {
	db := &stubExecer{}
	err := NewAdapter(db).SaveEvent(context.Background(), domain.EventRecord{
		ID:      "01J",
		Event:   "Exported",
		Subject: domain.Subject{UserID: "u-42"},
	})
	if err != nil {
		t.Fatalf("save event: %v", err)
	}
	call := db.calls[0]
	if !strings.Contains(call.sql, "user_id") {
		t.Fatalf("expected user_id column, got %s", call.sql)
	}
	if call.args[3] != nil || call.args[5] != "u-42" {
		t.Fatalf("expected user id to be kept on the event row: %v", call.args)
	}
}

func TestAdapter_WrapsErrors(t *testing.T) {
	db := &stubExecer{err: errors.New("conn reset")}
	err := NewAdapter(db).SaveEvent(context.Background(), domain.EventRecord{ID: "1", Event: "e"})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}
