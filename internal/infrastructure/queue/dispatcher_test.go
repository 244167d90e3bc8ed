package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

type orderedAdapter struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (o *orderedAdapter) Name() string { return "ordered" }

func (o *orderedAdapter) SaveUser(_ context.Context, s domain.Subject) error {
	o.record("user:" + s.Key())
	if o.fail {
		return errors.New("boom")
	}
	return nil
}

func (o *orderedAdapter) SaveEvent(_ context.Context, r domain.EventRecord) error {
	o.record("event:" + r.Subject.Key() + ":" + r.Event)
	if o.fail {
		return errors.New("boom")
	}
	return nil
}

func (o *orderedAdapter) record(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, s)
}

func (o *orderedAdapter) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

func stop(t *testing.T, a *AsyncAdapter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestAsyncAdapter_PreservesPerSubjectOrder(t *testing.T) {
	inner := &orderedAdapter{}
	a := NewAsyncAdapter(inner, 4, zerolog.Nop())
	a.Start()

	ctx := context.Background()
	subject := domain.Subject{Email: "a@x.com"}
	_ = a.SaveUser(ctx, subject)
	for _, ev := range []string{"one", "two", "three"} {
		_ = a.SaveEvent(ctx, domain.EventRecord{Event: ev, Subject: subject})
	}
	stop(t, a)

	got := inner.snapshot()
	want := []string{"user:a@x.com", "event:a@x.com:one", "event:a@x.com:two", "event:a@x.com:three"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestAsyncAdapter_ErrorsAreSwallowed(t *testing.T) {
	inner := &orderedAdapter{fail: true}
	a := NewAsyncAdapter(inner, 1, zerolog.Nop())
	a.Start()

	if err := a.SaveEvent(context.Background(), domain.EventRecord{Event: "e", Subject: domain.AnonymousSubject("")}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	stop(t, a)
	if len(inner.snapshot()) != 1 {
		t.Fatalf("expected the write to reach the inner adapter")
	}
}

func TestAsyncAdapter_DropsAfterStop(t *testing.T) {
	inner := &orderedAdapter{}
	a := NewAsyncAdapter(inner, 2, zerolog.Nop())
	a.Start()
	stop(t, a)

	_ = a.SaveUser(context.Background(), domain.Subject{Email: "late@x.com"})
	stop(t, a)
	if n := len(inner.snapshot()); n != 0 {
		t.Fatalf("expected no writes after stop, got %d", n)
	}
}

func TestShardIndex_Deterministic(t *testing.T) {
	a := NewAsyncAdapter(&orderedAdapter{}, 0, zerolog.Nop())
	if len(a.workers) != defaultWorkers {
		t.Fatalf("expected %d workers, got %d", defaultWorkers, len(a.workers))
	}
	if a.shardIndex("k") != a.shardIndex("k") {
		t.Fatal("shard index must be stable")
	}
}
