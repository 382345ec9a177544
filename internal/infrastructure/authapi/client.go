// Package authapi is the HTTP client of the restaurant backend: the auth
// endpoints consumed by the session manager and the bearer-authenticated API
// used by the domain stores.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/comanda/restaurant-console/internal/core/domain"
	"github.com/comanda/restaurant-console/internal/core/ports"
)

const (
	pathLogin   = "/auth/login"
	pathLogout  = "/auth/logout"
	pathRefresh = "/auth/refresh-token"
	pathMe      = "/auth/me"

	headerRequestID = "X-Request-ID"
	headerInstance  = "X-Client-Instance"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10
)

// NewHTTPClient returns an http.Client with the given timeout whose transport
// is traced with OpenTelemetry.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Recorder observes auth API round trips. outcome is "ok", "rejected" for
// non-2xx responses or "error" for transport failures.
type Recorder interface {
	ObserveRequest(op, outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, string, time.Duration) {}

// Client implements ports.AuthClient against the REST auth endpoints.
type Client struct {
	baseURL    string
	http       *http.Client
	instanceID string
	recorder   Recorder
	log        zerolog.Logger
}

var _ ports.AuthClient = (*Client)(nil)

// New returns a Client for baseURL. A nil httpClient gets NewHTTPClient's defaults.
func New(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(defaultTimeout)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       httpClient,
		instanceID: uuid.NewString(),
		recorder:   nopRecorder{},
		log:        log.With().Str("component", "auth_api").Logger(),
	}
}

// WithRecorder reports every round trip to r.
func (c *Client) WithRecorder(r Recorder) *Client {
	if r != nil {
		c.recorder = r
	}
	return c
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         *domain.User `json:"user"`
	Token        string       `json:"token"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
}

type meResponse struct {
	User *domain.User `json:"user"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	var resp loginResponse
	if err := c.do(ctx, opLogin, http.MethodPost, pathLogin, "", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	token := resp.Token
	if token == "" {
		token = resp.AccessToken
	}
	return &ports.LoginResult{User: resp.User, AccessToken: token, RefreshToken: resp.RefreshToken}, nil
}

func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, opLogout, http.MethodPost, pathLogout, accessToken, nil, nil)
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var resp refreshResponse
	if err := c.do(ctx, opRefresh, http.MethodPost, pathRefresh, "", refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return "", err
	}
	if resp.Token != "" {
		return resp.Token, nil
	}
	return resp.AccessToken, nil
}

func (c *Client) Me(ctx context.Context, accessToken string) (*domain.User, error) {
	var resp meResponse
	if err := c.do(ctx, opMe, http.MethodGet, pathMe, accessToken, nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, &APIError{Op: opMe, Status: http.StatusOK, Message: "response missing user"}
	}
	return resp.User, nil
}

// Ping reports whether the auth API answers at all; any HTTP status counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathMe, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth api unreachable: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path, bearer string, in, out any) error {
	start := time.Now()
	outcome := "error"
	defer func() {
		c.recorder.ObserveRequest(op, outcome, time.Since(start))
	}()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	reqID := uuid.NewString()
	req.Header.Set(headerRequestID, reqID)
	req.Header.Set(headerInstance, c.instanceID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "rejected"
		apiErr := newAPIError(op, resp)
		c.log.Debug().
			Str("operation", op).
			Str("request_id", reqID).
			Int("status", resp.StatusCode).
			Msg("auth api rejected request")
		return apiErr
	}
	outcome = "ok"

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := decodeEnvelope(resp.Body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// decodeEnvelope accepts both bare payloads and payloads wrapped in {"data": …}.
func decodeEnvelope(r io.Reader, out any) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Data) > 0 && wrapped.Data[0] == '{' {
		raw = wrapped.Data
	}
	return json.Unmarshal(raw, out)
}
