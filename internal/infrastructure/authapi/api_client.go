package authapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/comanda/restaurant-console/internal/core/domain"
	"github.com/comanda/restaurant-console/internal/core/ports"
)

const pathRestaurantInfo = "/restaurant/info"

// TokenSource yields the current access token; *service.SessionManager is one.
type TokenSource interface {
	AccessToken() string
}

// BearerTransport adds the session's access token to every request.
type BearerTransport struct {
	Base   http.RoundTripper
	Tokens TokenSource
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	token := t.Tokens.AccessToken()
	if token == "" || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(clone)
}

// APIClient is the shared client of the domain stores.
type APIClient struct {
	baseURL string
	http    *http.Client
}

var _ ports.RestaurantClient = (*APIClient)(nil)

// NewAPIClient wraps httpClient's transport with the session's bearer token.
func NewAPIClient(baseURL string, httpClient *http.Client, tokens TokenSource) *APIClient {
	if httpClient == nil {
		httpClient = NewHTTPClient(defaultTimeout)
	}
	c := *httpClient
	c.Transport = &BearerTransport{Base: httpClient.Transport, Tokens: tokens}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), http: &c}
}

func (c *APIClient) RestaurantInfo(ctx context.Context) (*domain.RestaurantInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathRestaurantInfo, nil)
	if err != nil {
		return nil, fmt.Errorf("restaurant info: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("restaurant info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError("restaurant_info", resp)
	}
	var info domain.RestaurantInfo
	if err := decodeEnvelope(resp.Body, &info); err != nil {
		return nil, fmt.Errorf("restaurant info: decode response: %w", err)
	}
	return &info, nil
}
