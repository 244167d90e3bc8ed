package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
	GetProperties(ctx context.Context, o *azqueue.GetQueuePropertiesOptions) (azqueue.GetQueuePropertiesResponse, error)
}

// Envelope is the message body consumers receive.
type Envelope struct {
	Type    string              `json:"type"`
	User    *domain.Subject     `json:"user,omitempty"`
	Event   *domain.EventRecord `json:"event,omitempty"`
	Version int                 `json:"version"`
}

const envelopeVersion = 1

// QueueAdapter enqueues one message per profile save and per event.
type QueueAdapter struct {
	queue queueClient
}

func NewQueueAdapter(queue queueClient) *QueueAdapter {
	return &QueueAdapter{queue: queue}
}

func (a *QueueAdapter) Name() string { return "azqueue" }

func (a *QueueAdapter) SaveUser(ctx context.Context, subject domain.Subject) error {
	return a.enqueue(ctx, Envelope{Type: "user", User: &subject, Version: envelopeVersion})
}

func (a *QueueAdapter) SaveEvent(ctx context.Context, record domain.EventRecord) error {
	return a.enqueue(ctx, Envelope{Type: "event", Event: &record, Version: envelopeVersion})
}

// Ping satisfies ports.HealthChecker.
func (a *QueueAdapter) Ping(ctx context.Context) error {
	_, err := a.queue.GetProperties(ctx, nil)
	return err
}

func (a *QueueAdapter) enqueue(ctx context.Context, env Envelope) error {
	body, err := sonic.MarshalString(env)
	if err != nil {
		return fmt.Errorf("%w: encode envelope: %w", domain.ErrPersistence, err)
	}
	if _, err := a.queue.EnqueueMessage(ctx, body, nil); err != nil {
		return fmt.Errorf("%w: azqueue enqueue %s: %w", domain.ErrPersistence, env.Type, err)
	}
	return nil
}
