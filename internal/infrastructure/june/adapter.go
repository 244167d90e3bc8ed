// Package june forwards profiles and events to the June analytics HTTP API.
package june

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

const (
	DefaultEndpoint = "https://api.june.so/sdk"
	defaultTimeout  = 5 * time.Second
)

type identifyPayload struct {
	UserID      string         `json:"userId"`
	AnonymousID string         `json:"anonymousId,omitempty"`
	Traits      map[string]any `json:"traits"`
	Timestamp   string         `json:"timestamp"`
}

type trackPayload struct {
	UserID      string `json:"userId,omitempty"`
	AnonymousID string `json:"anonymousId,omitempty"`
	Event       string `json:"event"`
	Properties  any    `json:"properties,omitempty"`
	MessageID   string `json:"messageId"`
	Timestamp   string `json:"timestamp"`
}

// Adapter calls June's identify and track endpoints. June has no email
// primary key, so the user id falls back to the email.
type Adapter struct {
	endpoint string
	writeKey string
	client   *http.Client
	now      func() time.Time
}

type Option func(*Adapter)

func WithEndpoint(endpoint string) Option {
	return func(a *Adapter) { a.endpoint = endpoint }
}

func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

func NewAdapter(writeKey string, opts ...Option) *Adapter {
	a := &Adapter{
		endpoint: DefaultEndpoint,
		writeKey: writeKey,
		client:   &http.Client{Timeout: defaultTimeout},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return "june" }

func (a *Adapter) SaveUser(ctx context.Context, subject domain.Subject) error {
	userID := userIDOf(subject)
	if userID == "" {
		return nil
	}
	return a.post(ctx, "/identify", identifyPayload{
		UserID:      userID,
		AnonymousID: subject.AnonymousID,
		Traits:      traitsOf(subject),
		Timestamp:   a.now().UTC().Format(time.RFC3339Nano),
	})
}

func (a *Adapter) SaveEvent(ctx context.Context, record domain.EventRecord) error {
	payload := trackPayload{
		UserID:      userIDOf(record.Subject),
		AnonymousID: record.Subject.AnonymousID,
		Event:       record.Event,
		MessageID:   record.ID,
		Timestamp:   record.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if !record.Data.IsZero() {
		payload.Properties = record.Data.Interface()
	}
	return a.post(ctx, "/track", payload)
}

func (a *Adapter) post(ctx context.Context, path string, payload any) error {
	body, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: june encode: %w", domain.ErrPersistence, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: june request: %w", domain.ErrPersistence, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+a.writeKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: june %s: %w", domain.ErrPersistence, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: june %s: status %d: %s", domain.ErrPersistence, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func userIDOf(s domain.Subject) string {
	if s.UserID != "" {
		return s.UserID
	}
	return s.Email
}

// traitsOf maps the profile onto June traits. Keys of a map-shaped data
// payload are merged in without overriding the named traits.
func traitsOf(s domain.Subject) map[string]any {
	traits := map[string]any{}
	if fields, ok := s.Data.AsMap(); ok {
		for k, v := range fields {
			traits[k] = v.Interface()
		}
	} else if !s.Data.IsZero() {
		traits["data"] = s.Data.Interface()
	}
	set := func(k, v string) {
		if v != "" {
			traits[k] = v
		}
	}
	set("email", s.Email)
	set("name", s.Name)
	set("avatar", s.Image)
	return traits
}
