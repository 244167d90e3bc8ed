package ports

import "github.com/pixel-analytics/pixel/internal/core/domain"

// TokenCodec mints and verifies signed identity tokens.
type TokenCodec interface {
	// Mint signs claims. It returns "" when no token could be issued.
	Mint(claims domain.IdentityClaims) string
	// Verify returns the embedded claims or an error wrapping
	// domain.ErrInvalidToken (or domain.ErrMissingSecret).
	Verify(token string) (domain.IdentityClaims, error)
}
