package ports

import (
	"context"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

// SessionService is the session surface exposed to transport layers.
type SessionService interface {
	Snapshot() domain.Session
	Login(ctx context.Context, creds domain.Credentials) error
	Logout(ctx context.Context)
	RefreshAccessToken(ctx context.Context) bool
	CheckAuth(ctx context.Context)
}

// ActivityTracker records user activity for the idle watcher.
type ActivityTracker interface {
	Touch()
}

// RestaurantInfoReader exposes the cached venue profile.
type RestaurantInfoReader interface {
	Info() (*domain.RestaurantInfo, error)
}
