package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pixel-analytics/pixel/internal/api/metrics"
	"github.com/pixel-analytics/pixel/internal/core/domain"
	"github.com/pixel-analytics/pixel/internal/core/ports"
)

const tracerName = "github.com/pixel-analytics/pixel/internal/core/service"

// nonceRange bounds the random part of the identify nonce.
const nonceRange = 10_000_000_000

// GatewayConfig is read once at startup and handed to NewEventGateway.
type GatewayConfig struct {
	Secret string
	// PersistOnIdentify saves the profile during identify instead of waiting
	// for the first tracked event.
	PersistOnIdentify bool
}

type eventGateway struct {
	codec             ports.TokenCodec
	adapter           ports.StorageAdapter
	persistOnIdentify bool
	log               zerolog.Logger
	tracer            trace.Tracer
	now               func() time.Time
}

// GatewayOption customises an event gateway.
type GatewayOption func(*eventGateway)

// WithTracerProvider routes gateway spans to tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) GatewayOption {
	return func(g *eventGateway) { g.tracer = tp.Tracer(tracerName) }
}

func WithClock(now func() time.Time) GatewayOption {
	return func(g *eventGateway) { g.now = now }
}

// NewEventGateway returns an EventGateway implementation. It refuses to start
// without a signing secret.
func NewEventGateway(
	cfg GatewayConfig,
	codec ports.TokenCodec,
	adapter ports.StorageAdapter,
	log zerolog.Logger,
	opts ...GatewayOption,
) (ports.EventGateway, error) {
	if cfg.Secret == "" {
		return nil, domain.ErrMissingSecret
	}
	if codec == nil || adapter == nil {
		return nil, fmt.Errorf("event gateway: codec and adapter are required")
	}

	g := &eventGateway{
		codec:             codec,
		adapter:           adapter,
		persistOnIdentify: cfg.PersistOnIdentify,
		log:               log,
		tracer:            otel.Tracer(tracerName),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Identify mints a token for the profile. It returns "" when no token could
// be issued; the caller decides whether to carry on anonymously.
func (g *eventGateway) Identify(ctx context.Context, in ports.IdentifyInput) string {
	ctx, span := g.tracer.Start(ctx, "pixel.identify")
	defer span.End()

	claims := domain.IdentityClaims{
		Email:  in.Email,
		Name:   in.Name,
		Image:  in.Image,
		UserID: in.UserID,
		Data:   in.Data,
		Random: g.nonce(),
	}

	jwt := g.codec.Mint(claims)
	if jwt == "" {
		metrics.IdentifyTotal.WithLabelValues("failed").Inc()
		span.SetStatus(codes.Error, "token not issued")
		g.log.Warn().Str("email", in.Email).Msg("identify: no token issued")
		return ""
	}
	metrics.IdentifyTotal.WithLabelValues("issued").Inc()

	// Without a token no later track can reference the profile.
	if g.persistOnIdentify {
		g.saveUser(ctx, claims.Subject())
	}

	return jwt
}

// Track attributes the event to the identified user (linking the anonymous
// id) or to an anonymous subject, then persists exactly one event record.
// Adapter failures are logged and counted but never returned.
func (g *eventGateway) Track(ctx context.Context, in ports.TrackInput) error {
	if err := domain.ValidateEventName(in.Event); err != nil {
		return err
	}

	ctx, span := g.tracer.Start(ctx, "pixel.track", trace.WithAttributes(
		attribute.String("pixel.event", in.Event),
	))
	defer span.End()

	var subject domain.Subject
	subjectLabel := "anonymous"
	if in.User != nil {
		subject = in.User.Subject().WithAnonymousID(in.AnonymousID)
		subjectLabel = "identified"
		g.saveUser(ctx, subject)
	} else {
		subject = domain.AnonymousSubject(in.AnonymousID)
	}
	span.SetAttributes(attribute.String("pixel.subject", subjectLabel))

	record := domain.EventRecord{
		ID:        ulid.Make().String(),
		Event:     in.Event,
		Data:      in.Data,
		Subject:   subject,
		Timestamp: g.now().UTC(),
	}
	g.saveEvent(ctx, record)

	kind := "custom"
	if in.Event == domain.PageViewEvent {
		kind = "pageview"
	}
	metrics.TrackTotal.WithLabelValues(kind, subjectLabel).Inc()
	return nil
}

func (g *eventGateway) VerifyToken(token string) (domain.IdentityClaims, error) {
	return g.codec.Verify(token)
}

func (g *eventGateway) saveUser(ctx context.Context, subject domain.Subject) {
	start := time.Now()
	err := g.adapter.SaveUser(ctx, subject)
	metrics.AdapterDuration.WithLabelValues(g.adapter.Name(), "save_user").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AdapterErrorsTotal.WithLabelValues(g.adapter.Name(), "save_user").Inc()
		trace.SpanFromContext(ctx).RecordError(err)
		g.log.Error().Err(err).
			Str("adapter", g.adapter.Name()).
			Str("subject", subject.Key()).
			Msg("save user failed")
	}
}

func (g *eventGateway) saveEvent(ctx context.Context, record domain.EventRecord) {
	start := time.Now()
	err := g.adapter.SaveEvent(ctx, record)
	metrics.AdapterDuration.WithLabelValues(g.adapter.Name(), "save_event").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AdapterErrorsTotal.WithLabelValues(g.adapter.Name(), "save_event").Inc()
		trace.SpanFromContext(ctx).RecordError(err)
		g.log.Error().Err(err).
			Str("adapter", g.adapter.Name()).
			Str("event", record.Event).
			Str("subject", record.Subject.Key()).
			Msg("save event failed")
		return
	}

	g.log.Debug().
		Str("event_id", record.ID).
		Str("event", record.Event).
		Str("subject", record.Subject.Key()).
		Msg("event tracked")
}

// nonce mirrors the token uniqueness scheme: a random number offset by the
// current time in milliseconds.
func (g *eventGateway) nonce() int64 {
	return rand.Int64N(nonceRange) + g.now().UnixMilli()
}
