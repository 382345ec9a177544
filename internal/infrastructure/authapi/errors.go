package authapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

const (
	opLogin   = "login"
	opLogout  = "logout"
	opRefresh = "refresh"
	opMe      = "me"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth api %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("auth api %s: status %d: %s", e.Op, e.Status, e.Message)
}

// DisplayMessage is the server-supplied message, if any.
func (e *APIError) DisplayMessage() string {
	return e.Message
}

// Is maps credential rejections onto the domain sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrInvalidCredentials:
		return e.Op == opLogin && e.Status >= 400 && e.Status < 500 && e.Status != http.StatusTooManyRequests
	case domain.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

func newAPIError(op string, resp *http.Response) *APIError {
	apiErr := &APIError{Op: op, Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}
