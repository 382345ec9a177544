package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

// ContextKeyUser is where RequireSession stores the session's user.
const ContextKeyUser = "user"

// ctxUser returns the user injected by the RequireSession middleware.
// A missing user means the route was mounted without the middleware.
func ctxUser(c echo.Context) (*domain.User, error) {
	user, _ := c.Get(ContextKeyUser).(*domain.User)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "session not authenticated")
	}
	return user, nil
}
