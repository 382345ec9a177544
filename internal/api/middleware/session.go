package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/comanda/restaurant-console/internal/api/handler"
	"github.com/comanda/restaurant-console/internal/core/ports"
)

// RequireSession rejects requests while the session is not authenticated and
// injects the session's user into the context.
func RequireSession(session ports.SessionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			snap := session.Snapshot()
			if !snap.IsAuthenticated || snap.User == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "session not authenticated")
			}
			c.Set(handler.ContextKeyUser, snap.User)
			return next(c)
		}
	}
}
