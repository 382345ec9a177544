package ports

import (
	"context"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

// RestaurantClient fetches venue data with the session's bearer token.
type RestaurantClient interface {
	RestaurantInfo(ctx context.Context) (*domain.RestaurantInfo, error)
}
