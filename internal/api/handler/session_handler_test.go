package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

type stubSessionService struct {
	snapshot  domain.Session
	loginFn   func(ctx context.Context, creds domain.Credentials) error
	refreshOK bool
	logouts   int
	checks    int
}

func (s *stubSessionService) Snapshot() domain.Session { return s.snapshot }

func (s *stubSessionService) Login(ctx context.Context, creds domain.Credentials) error {
	return s.loginFn(ctx, creds)
}

func (s *stubSessionService) Logout(context.Context) {
	s.logouts++
	s.snapshot = domain.Session{State: domain.StateUnauthenticated}
}

func (s *stubSessionService) RefreshAccessToken(context.Context) bool { return s.refreshOK }

func (s *stubSessionService) CheckAuth(context.Context) { s.checks++ }

type stubActivity struct{ touches int }

func (a *stubActivity) Touch() { a.touches++ }

func managerUser() *domain.User {
	return &domain.User{
		ID:    "u-1",
		Name:  "Ana",
		Email: "ana@example.com",
		Role: &domain.Role{Name: "manager", Permissions: []domain.Permission{
			{Resource: "orders", Action: "*"},
		}},
	}
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func TestSessionHandler_Login_Success(t *testing.T) {
	e := newEcho()
	activity := &stubActivity{}
	stub := &stubSessionService{}
	stub.loginFn = func(_ context.Context, creds domain.Credentials) error {
		if creds.Email != "ana@example.com" || creds.Password != "secret" || !creds.Remember {
			t.Fatalf("unexpected credentials %+v", creds)
		}
		stub.snapshot = domain.Session{
			User: managerUser(), AccessToken: "access-1", RefreshToken: "refresh-1",
			IsAuthenticated: true, State: domain.StateAuthenticated,
		}
		return nil
	}
	h := NewSessionHandler(stub, activity)

	body := strings.NewReader(`{"email":"ana@example.com","password":"secret","remember":true}`)
	req := httptest.NewRequest(http.MethodPost, "/session/login", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "access-1") || strings.Contains(rec.Body.String(), "refresh-1") {
		t.Fatal("tokens must never be returned by the agent")
	}

	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.IsAuthenticated || resp.User == nil || resp.User.Email != "ana@example.com" {
		t.Errorf("unexpected response %+v", resp)
	}
	if activity.touches != 1 {
		t.Errorf("expected login to count as activity, got %d touches", activity.touches)
	}
}

func TestSessionHandler_Login_Validation(t *testing.T) {
	e := newEcho()
	stub := &stubSessionService{loginFn: func(context.Context, domain.Credentials) error {
		t.Fatal("service must not be called for invalid input")
		return nil
	}}
	h := NewSessionHandler(stub, nil)

	req := httptest.NewRequest(http.MethodPost, "/session/login", strings.NewReader(`{"email":"nope"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Login(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if msg := he.Message.(string); !strings.Contains(msg, "email must be a valid email") || !strings.Contains(msg, "password is required") {
		t.Errorf("unexpected validation message %q", msg)
	}
}

func TestSessionHandler_Login_Rejected(t *testing.T) {
	e := newEcho()
	stub := &stubSessionService{}
	stub.loginFn = func(context.Context, domain.Credentials) error {
		stub.snapshot = domain.Session{Error: "Credenciales inválidas", State: domain.StateUnauthenticated}
		return domain.ErrInvalidCredentials
	}
	h := NewSessionHandler(stub, nil)

	req := httptest.NewRequest(http.MethodPost, "/session/login", strings.NewReader(`{"email":"ana@example.com","password":"bad"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Login(c)
	var le *LoginError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoginError, got %T", err)
	}
	if le.Message != "Credenciales inválidas" || !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("unexpected login error %+v", le)
	}
}

func TestSessionHandler_Logout(t *testing.T) {
	e := newEcho()
	stub := &stubSessionService{snapshot: domain.Session{User: managerUser(), IsAuthenticated: true}}
	h := NewSessionHandler(stub, nil)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/session/logout", nil), rec)
	if err := h.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || stub.logouts != 1 {
		t.Fatalf("expected 200 and one logout, got %d / %d", rec.Code, stub.logouts)
	}
	var resp sessionResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.IsAuthenticated {
		t.Error("expected logged-out session in response")
	}
}

func TestSessionHandler_CheckAndRefresh(t *testing.T) {
	e := newEcho()
	stub := &stubSessionService{refreshOK: true, snapshot: domain.Session{IsAuthenticated: true, State: domain.StateAuthenticated}}
	h := NewSessionHandler(stub, nil)

	rec := httptest.NewRecorder()
	if err := h.Check(e.NewContext(httptest.NewRequest(http.MethodPost, "/session/check", nil), rec)); err != nil {
		t.Fatalf("check: %v", err)
	}
	if stub.checks != 1 || rec.Code != http.StatusOK {
		t.Errorf("expected one check with 200, got %d / %d", stub.checks, rec.Code)
	}

	rec = httptest.NewRecorder()
	if err := h.Refresh(e.NewContext(httptest.NewRequest(http.MethodPost, "/session/refresh", nil), rec)); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	var resp refreshResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.Refreshed || !resp.Session.IsAuthenticated {
		t.Errorf("unexpected refresh response %+v", resp)
	}
}

func TestSessionHandler_Activity(t *testing.T) {
	e := newEcho()
	activity := &stubActivity{}
	h := NewSessionHandler(&stubSessionService{}, activity)

	rec := httptest.NewRecorder()
	if err := h.Activity(e.NewContext(httptest.NewRequest(http.MethodPost, "/session/activity", nil), rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent || activity.touches != 1 {
		t.Fatalf("expected 204 and one touch, got %d / %d", rec.Code, activity.touches)
	}
}

func TestSessionHandler_Permission(t *testing.T) {
	tests := []struct {
		query   string
		allowed bool
	}{
		{"resource=orders&action=update", true},
		{"resource=ORDERS&action=delete", true},
		{"resource=staff&action=read", false},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			e := newEcho()
			h := NewSessionHandler(&stubSessionService{}, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/session/permissions?"+tc.query, nil), rec)
			c.Set(ContextKeyUser, managerUser())

			if err := h.Permission(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			var resp permissionResponse
			_ = json.Unmarshal(rec.Body.Bytes(), &resp)
			if resp.Allowed != tc.allowed {
				t.Errorf("expected allowed=%v, got %+v", tc.allowed, resp)
			}
		})
	}
}

func TestSessionHandler_Permission_Errors(t *testing.T) {
	e := newEcho()
	h := NewSessionHandler(&stubSessionService{}, nil)

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/session/permissions?resource=orders&action=read", nil), httptest.NewRecorder())
	var he *echo.HTTPError
	if err := h.Permission(c); !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without user, got %v", err)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/session/permissions?resource=orders", nil), httptest.NewRecorder())
	c.Set(ContextKeyUser, managerUser())
	if err := h.Permission(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without action, got %v", err)
	}
}
