package ports

import (
	"context"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

// LoginResult is the payload of a successful POST /auth/login.
type LoginResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

// AuthClient is the REST contract of the remote authentication service.
type AuthClient interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	// Logout invalidates the session server-side. Callers treat it as best effort.
	Logout(ctx context.Context, accessToken string) error
	// Refresh exchanges a refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (string, error)
	// Me returns the user bound to the access token.
	Me(ctx context.Context, accessToken string) (*domain.User, error)
}
