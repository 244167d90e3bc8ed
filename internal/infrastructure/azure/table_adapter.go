package azure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

const usersPartition = "users"

type tableClient interface {
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
}

type userEntity struct {
	aztables.Entity
	Email       string `json:"Email"`
	Name        string `json:"Name,omitempty"`
	Image       string `json:"Image,omitempty"`
	UserID      string `json:"UserId,omitempty"`
	AnonymousID string `json:"AnonymousId,omitempty"`
	Data        string `json:"Data,omitempty"`
	UpdatedAt   string `json:"UpdatedAt"`
}

type eventEntity struct {
	aztables.Entity
	Event       string `json:"Event"`
	Data        string `json:"Data,omitempty"`
	Email       string `json:"Email,omitempty"`
	UserID      string `json:"UserId,omitempty"`
	AnonymousID string `json:"AnonymousId,omitempty"`
	Timestamp   string `json:"OccurredAt"`
}

// TableAdapter writes profiles to a users table (merge upsert, row key =
// email) and events to an events table partitioned by UTC day.
type TableAdapter struct {
	users  tableClient
	events tableClient
	now    func() time.Time
}

func NewTableAdapter(users, events tableClient) *TableAdapter {
	return &TableAdapter{users: users, events: events, now: time.Now}
}

func (a *TableAdapter) Name() string { return "aztables" }

func (a *TableAdapter) SaveUser(ctx context.Context, subject domain.Subject) error {
	if subject.Email == "" {
		return nil
	}
	ent := userEntity{
		Entity:      aztables.Entity{PartitionKey: usersPartition, RowKey: rowKey(subject.Email)},
		Email:       subject.Email,
		Name:        subject.Name,
		Image:       subject.Image,
		UserID:      subject.UserID,
		AnonymousID: subject.AnonymousID,
		Data:        dataString(subject.Data),
		UpdatedAt:   a.now().UTC().Format(time.RFC3339Nano),
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return fmt.Errorf("%w: encode user entity: %w", domain.ErrPersistence, err)
	}
	if _, err := a.users.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeMerge}); err != nil {
		return fmt.Errorf("%w: aztables upsert user: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (a *TableAdapter) SaveEvent(ctx context.Context, record domain.EventRecord) error {
	ts := record.Timestamp.UTC()
	ent := eventEntity{
		Entity:      aztables.Entity{PartitionKey: ts.Format("2006-01-02"), RowKey: record.ID},
		Event:       record.Event,
		Data:        dataString(record.Data),
		Email:       record.Subject.Email,
		UserID:      record.Subject.UserID,
		AnonymousID: record.Subject.AnonymousID,
		Timestamp:   ts.Format(time.RFC3339Nano),
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return fmt.Errorf("%w: encode event entity: %w", domain.ErrPersistence, err)
	}
	if _, err := a.events.AddEntity(ctx, payload, nil); err != nil {
		return fmt.Errorf("%w: aztables add event: %w", domain.ErrPersistence, err)
	}
	return nil
}

// rowKey strips the characters Azure Tables forbids in keys.
func rowKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '#', '?':
			return '_'
		}
		if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
			return '_'
		}
		return r
	}, s)
}

func dataString(v domain.Value) string {
	if v.IsZero() {
		return ""
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(raw)
}
