package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pixel-analytics/pixel/internal/api/metrics"
	"github.com/pixel-analytics/pixel/internal/core/domain"
)

// ClaimsKey is the echo.Context key holding *domain.IdentityClaims.
const ClaimsKey = "pixel.claims"

// TokenVerifier is the part of the gateway the middleware needs.
type TokenVerifier interface {
	VerifyToken(token string) (domain.IdentityClaims, error)
}

// Identity verifies an optional Bearer token and injects its claims into
// context. Tracking never fails on credentials: missing, malformed or
// rejected tokens leave the request anonymous.
func Identity(verifier TokenVerifier, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return next(c)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				log.Debug().Msg("ignoring non-bearer authorization header")
				return next(c)
			}

			claims, err := verifier.VerifyToken(strings.TrimSpace(parts[1]))
			if err != nil {
				metrics.TokenRejectedTotal.Inc()
				log.Warn().Err(err).Msg("bearer token rejected, tracking anonymously")
				return next(c)
			}

			c.Set(ClaimsKey, &claims)
			return next(c)
		}
	}
}
