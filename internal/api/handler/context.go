package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/pixel-analytics/pixel/internal/api/middleware"
	"github.com/pixel-analytics/pixel/internal/core/domain"
)

// ctxClaims returns the identity the Identity middleware verified from the
// Authorization header, or nil when the request is anonymous.
func ctxClaims(c echo.Context) *domain.IdentityClaims {
	claims, _ := c.Get(middleware.ClaimsKey).(*domain.IdentityClaims)
	return claims
}
