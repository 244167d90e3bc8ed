package ports

import (
	"context"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

// StorageAdapter persists profiles and events for one backend. Both methods
// must accept partial subjects (no email, no userId) without panicking.
// Retrying failed writes is the adapter's own business.
type StorageAdapter interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// SaveUser upserts the subject's profile. Repeated calls for the same
	// key never create duplicates.
	SaveUser(ctx context.Context, subject domain.Subject) error
	// SaveEvent appends one event record. Events are never deduplicated.
	SaveEvent(ctx context.Context, record domain.EventRecord) error
}

// HealthChecker is implemented by adapters with a reachable dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
