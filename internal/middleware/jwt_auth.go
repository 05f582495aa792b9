package middleware

import (
	"github.com/anonto42/rehab-social/backend/internal/auth"
	"github.com/labstack/echo/v4"
)

const principalKey = "principal"

// Authenticate rejects requests without a verifiable bearer token and stores
// the resolved principal in the context.
func Authenticate(verifier auth.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, err := verifier.Verify(c.Request().Context(), auth.TokenFromRequest(c.Request()))
			if err != nil {
				return err
			}
			c.Set(principalKey, principal)
			return next(c)
		}
	}
}

// UserID returns the authenticated user's id, or 0 outside Authenticate.
func UserID(c echo.Context) uint {
	if p, ok := c.Get(principalKey).(*auth.Principal); ok {
		return p.UserID
	}
	return 0
}
