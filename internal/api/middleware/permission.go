package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/comanda/restaurant-console/internal/api/handler"
	"github.com/comanda/restaurant-console/internal/core/domain"
)

// RequirePermission enforces that the session's role grants action on
// resource. It must run after RequireSession.
func RequirePermission(resource, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, _ := c.Get(handler.ContextKeyUser).(*domain.User)
			if !user.Can(resource, action) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
