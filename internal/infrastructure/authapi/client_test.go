package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", srv.Client(), zerolog.Nop())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != pathLogin {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON body, got %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get(headerRequestID) == "" || r.Header.Get(headerInstance) == "" {
			t.Error("expected request id and client instance headers")
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("login must not send a bearer token")
		}
		var body loginRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Email != "ana@example.com" || body.Password != "secret" {
			t.Errorf("unexpected body %+v", body)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":         map[string]any{"id": "u-1", "name": "Ana", "role": map[string]any{"name": "manager"}},
			"token":        "access-1",
			"refreshToken": "refresh-1",
		})
	})

	res, err := c.Login(context.Background(), "ana@example.com", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AccessToken != "access-1" || res.RefreshToken != "refresh-1" {
		t.Errorf("unexpected tokens %+v", res)
	}
	if res.User == nil || res.User.ID != "u-1" || res.User.RoleName() != "manager" {
		t.Errorf("unexpected user %+v", res.User)
	}
}

func TestLogin_DataEnvelopeAndAccessTokenField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"user":         map[string]any{"id": "u-1"},
			"accessToken":  "access-1",
			"refreshToken": "refresh-1",
		}})
	})

	res, err := c.Login(context.Background(), "ana@example.com", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AccessToken != "access-1" || res.User.ID != "u-1" {
		t.Errorf("envelope not unwrapped: %+v", res)
	}
}

func TestLogin_Rejected(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        map[string]string
		credentials bool
		display     string
	}{
		{"unauthorized with message", http.StatusUnauthorized, map[string]string{"message": "Credenciales inválidas"}, true, "Credenciales inválidas"},
		{"bad request with error field", http.StatusBadRequest, map[string]string{"error": "email required"}, true, "email required"},
		{"rate limited", http.StatusTooManyRequests, nil, false, ""},
		{"server error", http.StatusInternalServerError, map[string]string{"message": "boom"}, false, "boom"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})

			_, err := c.Login(context.Background(), "ana@example.com", "bad")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, domain.ErrInvalidCredentials); got != tc.credentials {
				t.Errorf("errors.Is(ErrInvalidCredentials) = %v, want %v", got, tc.credentials)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T", err)
			}
			if apiErr.Status != tc.status || apiErr.DisplayMessage() != tc.display {
				t.Errorf("unexpected api error %+v", apiErr)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathRefresh {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body refreshRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.RefreshToken != "refresh-1" {
			t.Errorf("unexpected refresh token %q", body.RefreshToken)
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": "access-2"})
	})

	token, err := c.Refresh(context.Background(), "refresh-1")
	if err != nil || token != "access-2" {
		t.Fatalf("unexpected result %q / %v", token, err)
	}
}

func TestRefresh_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "refresh token expired"})
	})

	if _, err := c.Refresh(context.Background(), "refresh-1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

type recordedRequest struct {
	op, outcome string
}

type stubRecorder struct{ requests []recordedRequest }

func (r *stubRecorder) ObserveRequest(op, outcome string, _ time.Duration) {
	r.requests = append(r.requests, recordedRequest{op, outcome})
}

func TestClient_RecordsOutcomes(t *testing.T) {
	calls := 0
	rec := &stubRecorder{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			writeJSON(w, http.StatusOK, map[string]string{"token": "access-2"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "expired"})
	}).WithRecorder(rec)

	_, _ = c.Refresh(context.Background(), "refresh-1")
	_, _ = c.Refresh(context.Background(), "refresh-1")

	want := []recordedRequest{{opRefresh, "ok"}, {opRefresh, "rejected"}}
	if len(rec.requests) != len(want) {
		t.Fatalf("expected %d recorded requests, got %+v", len(want), rec.requests)
	}
	for i := range want {
		if rec.requests[i] != want[i] {
			t.Errorf("request %d: expected %+v, got %+v", i, want[i], rec.requests[i])
		}
	}
}

func TestClient_RecordsTransportError(t *testing.T) {
	rec := &stubRecorder{}
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(srv.URL, nil, zerolog.Nop()).WithRecorder(rec)

	if _, err := c.Me(context.Background(), "access-1"); err == nil {
		t.Fatal("expected transport error")
	}
	if len(rec.requests) != 1 || rec.requests[0] != (recordedRequest{opMe, "error"}) {
		t.Fatalf("unexpected recorded requests %+v", rec.requests)
	}
}

func TestMe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != pathMe {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u-1", "name": "Ana"}})
		case "Bearer empty":
			writeJSON(w, http.StatusOK, map[string]any{})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "jwt expired"})
		}
	})

	user, err := c.Me(context.Background(), "good")
	if err != nil || user.Name != "Ana" {
		t.Fatalf("unexpected result %+v / %v", user, err)
	}
	if _, err := c.Me(context.Background(), "expired"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := c.Me(context.Background(), "empty"); err == nil {
		t.Error("expected error for a response without user")
	}
}

func TestLogout_SendsBearer(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.Logout(context.Background(), "access-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Bearer access-1" {
		t.Errorf("unexpected Authorization header %q", got)
	}
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("any HTTP answer counts as reachable, got %v", err)
	}

	srv := httptest.NewServer(http.NotFoundHandler())
	down := New(srv.URL, srv.Client(), zerolog.Nop())
	srv.Close()
	if err := down.Ping(context.Background()); err == nil {
		t.Error("expected error for an unreachable server")
	}
}

func TestCancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token": "x"})
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Refresh(ctx, "refresh-1"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
