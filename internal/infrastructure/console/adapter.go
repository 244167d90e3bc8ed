// Package console implements the diagnostic storage adapter: every profile
// and event becomes a structured log line.
package console

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

type Adapter struct {
	log zerolog.Logger
}

func NewAdapter(log zerolog.Logger) *Adapter {
	return &Adapter{log: log.With().Str("component", "pixel.console").Logger()}
}

func (a *Adapter) Name() string { return "console" }

func (a *Adapter) SaveUser(_ context.Context, subject domain.Subject) error {
	a.log.Info().
		Str("email", subject.Email).
		Str("user_id", subject.UserID).
		Str("anonymous_id", subject.AnonymousID).
		Str("name", subject.Name).
		Interface("data", subject.Data.Interface()).
		Msg("user")
	return nil
}

func (a *Adapter) SaveEvent(_ context.Context, record domain.EventRecord) error {
	a.log.Info().
		Str("event_id", record.ID).
		Str("event", record.Event).
		Str("subject", record.Subject.Key()).
		Bool("identified", record.Subject.Identified()).
		Interface("data", record.Data.Interface()).
		Time("timestamp", record.Timestamp).
		Msg("event")
	return nil
}
