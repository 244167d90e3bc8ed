package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

const (
	DefaultStream        = "pixel:events"
	DefaultProfilePrefix = "pixel:user:"

	messageTypeUser  = "user"
	messageTypeEvent = "event"
)

// StreamAdapter appends every profile and event to a Redis stream for
// downstream consumers. Profiles are also upserted into one hash per email.
// Key format: <prefix><email>
type StreamAdapter struct {
	client        *redis.Client
	stream        string
	profilePrefix string
	maxLen        int64
	now           func() time.Time
}

type StreamOption func(*StreamAdapter)

func WithStream(name string) StreamOption {
	return func(a *StreamAdapter) {
		if name != "" {
			a.stream = name
		}
	}
}

// WithMaxLen caps the stream length (approximate trimming).
func WithMaxLen(n int64) StreamOption {
	return func(a *StreamAdapter) { a.maxLen = n }
}

func NewStreamAdapter(client *redis.Client, opts ...StreamOption) *StreamAdapter {
	a := &StreamAdapter{
		client:        client,
		stream:        DefaultStream,
		profilePrefix: DefaultProfilePrefix,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *StreamAdapter) Name() string { return "redis" }

func (a *StreamAdapter) SaveUser(ctx context.Context, subject domain.Subject) error {
	payload, err := sonic.Marshal(subject)
	if err != nil {
		return fmt.Errorf("%w: encode user: %w", domain.ErrPersistence, err)
	}

	pipe := a.client.TxPipeline()
	if subject.Email != "" {
		pipe.HSet(ctx, a.profileKey(subject.Email), profileFields(subject, a.now()))
	}
	pipe.XAdd(ctx, a.xaddArgs(messageTypeUser, subject.Key(), payload))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: redis save user: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (a *StreamAdapter) SaveEvent(ctx context.Context, record domain.EventRecord) error {
	payload, err := sonic.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encode event: %w", domain.ErrPersistence, err)
	}
	if err := a.client.XAdd(ctx, a.xaddArgs(messageTypeEvent, record.ID, payload)).Err(); err != nil {
		return fmt.Errorf("%w: redis xadd: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Ping satisfies ports.HealthChecker.
func (a *StreamAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

func (a *StreamAdapter) xaddArgs(kind, id string, payload []byte) *redis.XAddArgs {
	args := &redis.XAddArgs{
		Stream: a.stream,
		Values: map[string]interface{}{
			"type":    kind,
			"id":      id,
			"payload": string(payload),
		},
	}
	if a.maxLen > 0 {
		args.MaxLen = a.maxLen
		args.Approx = true
	}
	return args
}

func (a *StreamAdapter) profileKey(email string) string {
	return a.profilePrefix + email
}

// profileFields lists the hash fields to write; empty attributes are left
// untouched so partial subjects never blank a stored profile.
func profileFields(s domain.Subject, now time.Time) map[string]interface{} {
	fields := map[string]interface{}{
		"email":      s.Email,
		"updated_at": now.UTC().Format(time.RFC3339Nano),
	}
	if s.Name != "" {
		fields["name"] = s.Name
	}
	if s.Image != "" {
		fields["image"] = s.Image
	}
	if s.UserID != "" {
		fields["user_id"] = s.UserID
	}
	if s.AnonymousID != "" {
		fields["anonymous_id"] = s.AnonymousID
	}
	if !s.Data.IsZero() {
		if raw, err := s.Data.MarshalJSON(); err == nil {
			fields["data"] = string(raw)
		}
	}
	return fields
}
