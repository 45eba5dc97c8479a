package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

// RequireRole gates a route group to the listed roles. The role comes from
// the JWT claims stashed by Auth; a missing or foreign role surfaces as
// domain.ErrUnauthorized through the central error handler.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if _, ok := allowed[role]; !ok {
				return domain.ErrUnauthorized
			}
			return next(c)
		}
	}
}
