package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/comanda/restaurant-console/internal/api/handler"
	"github.com/comanda/restaurant-console/internal/core/domain"
)

type stubSession struct{ snapshot domain.Session }

func (s stubSession) Snapshot() domain.Session { return s.snapshot }

func (stubSession) Login(context.Context, domain.Credentials) error { return nil }

func (stubSession) Logout(context.Context) {}

func (stubSession) RefreshAccessToken(context.Context) bool { return false }

func (stubSession) CheckAuth(context.Context) {}

func cashier() *domain.User {
	return &domain.User{ID: "u-2", Role: &domain.Role{Name: "cashier", Permissions: []domain.Permission{
		{Resource: "restaurant", Action: "read"},
		{Resource: "payments", Action: "create"},
	}}}
}

func TestRequireSession_InjectsUser(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	mw := RequireSession(stubSession{snapshot: domain.Session{User: cashier(), IsAuthenticated: true}})
	h := mw(func(c echo.Context) error {
		user, ok := c.Get(handler.ContextKeyUser).(*domain.User)
		if !ok || user.ID != "u-2" {
			t.Fatalf("expected user in context, got %v", c.Get(handler.ContextKeyUser))
		}
		return c.NoContent(http.StatusOK)
	})

	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestRequireSession_RejectsLoggedOut(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	mw := RequireSession(stubSession{snapshot: domain.Session{State: domain.StateUnauthenticated}})
	h := mw(func(c echo.Context) error {
		t.Fatalf("should not reach next handler")
		return nil
	})

	var he *echo.HTTPError
	if err := h(c); !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestRequirePermission_Allows(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.Set(handler.ContextKeyUser, cashier())

	called := false
	h := RequirePermission("restaurant", "read")(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected next handler with 200, got called=%v code=%d", called, rec.Code)
	}
}

func TestRequirePermission_Forbids(t *testing.T) {
	for name, user := range map[string]*domain.User{
		"missing permission": cashier(),
		"no user":            nil,
	} {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			if user != nil {
				c.Set(handler.ContextKeyUser, user)
			}

			h := RequirePermission("staff", "update")(func(c echo.Context) error {
				t.Fatalf("should not reach next handler")
				return nil
			})

			_ = h(c)
			if rec.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rec.Code)
			}
		})
	}
}
