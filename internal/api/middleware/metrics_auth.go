package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"
)

// MetricsAuth guards the scrape endpoint with basic auth. The password is
// checked against a bcrypt hash so the plain secret never sits in config.
func MetricsAuth(user, passwordHash string) echo.MiddlewareFunc {
	return echomiddleware.BasicAuth(func(u, p string, _ echo.Context) (bool, error) {
		if subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 {
			return false, nil
		}
		return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(p)) == nil, nil
	})
}
