// Package memory keeps profiles and events in process memory. It backs local
// development (PIXEL_ADAPTER=memory) and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

// Adapter is a mutex-guarded in-memory store.
type Adapter struct {
	mu       sync.RWMutex
	profiles map[string]domain.UserProfile
	events   []domain.EventRecord
	now      func() time.Time
}

func NewAdapter() *Adapter {
	return &Adapter{
		profiles: make(map[string]domain.UserProfile),
		now:      time.Now,
	}
}

func (a *Adapter) Name() string { return "memory" }

// SaveUser upserts by email. Subjects without an email are skipped.
func (a *Adapter) SaveUser(_ context.Context, subject domain.Subject) error {
	if subject.Email == "" {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.profiles[subject.Email] = domain.ProfileOf(subject, a.now())
	return nil
}

func (a *Adapter) SaveEvent(_ context.Context, record domain.EventRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, record)
	return nil
}

// Profile returns the stored profile for email.
func (a *Adapter) Profile(email string) (domain.UserProfile, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.profiles[email]
	return p, ok
}

// ProfileCount reports how many distinct profiles are stored.
func (a *Adapter) ProfileCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.profiles)
}

// Events returns a copy of the stored events in arrival order.
func (a *Adapter) Events() []domain.EventRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.EventRecord, len(a.events))
	copy(out, a.events)
	return out
}
