package ports

import (
	"context"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

// IdentifyInput is the profile a client asks to be identified as.
type IdentifyInput struct {
	Email  string
	Name   string
	Image  string
	UserID string
	Data   domain.Value
}

// TrackInput is the DTO passed from the transport layer to the gateway.
type TrackInput struct {
	Event       string
	AnonymousID string
	// User is nil for visitors that were never identified.
	User *domain.IdentityClaims
	Data domain.Value
}

// EventGateway is the server-side facade for identify and track calls.
type EventGateway interface {
	// Identify returns a signed token, or "" when none could be minted.
	Identify(ctx context.Context, in IdentifyInput) string
	Track(ctx context.Context, in TrackInput) error
	// VerifyToken re-hydrates the claims carried by a client token.
	VerifyToken(token string) (domain.IdentityClaims, error)
}
