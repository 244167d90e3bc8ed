// Package token signs and verifies the identity tokens handed to clients.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

// DefaultTTL is the validity window of a minted token: one year.
const DefaultTTL = 8760 * time.Hour

var signingMethod = jwt.SigningMethodHS256

type tokenClaims struct {
	domain.IdentityClaims
	jwt.RegisteredClaims
}

// Codec implements ports.TokenCodec with HS256 over the shared secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

type Option func(*Codec)

func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Codec) { c.log = log }
}

// NewCodec returns a Codec keyed by the raw bytes of secret.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, domain.ErrMissingSecret
	}
	c := &Codec{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Mint signs claims and returns the compact token, or "" if signing failed.
func (c *Codec) Mint(claims domain.IdentityClaims) string {
	if len(c.secret) == 0 {
		c.log.Error().Err(domain.ErrMissingSecret).Msg("mint token")
		return ""
	}

	tc := tokenClaims{
		IdentityClaims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(c.now().Add(c.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, tc).SignedString(c.secret)
	if err != nil {
		c.log.Error().Err(err).Str("email", claims.Email).Msg("mint token")
		return ""
	}
	return signed
}

// Verify checks signature, algorithm and expiry, then returns the embedded
// claims untouched.
func (c *Codec) Verify(token string) (domain.IdentityClaims, error) {
	if c == nil || len(c.secret) == 0 {
		return domain.IdentityClaims{}, domain.ErrMissingSecret
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return domain.IdentityClaims{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	return tc.IdentityClaims, nil
}
