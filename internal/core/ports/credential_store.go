package ports

import (
	"context"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

// CredentialStore persists the three session slots across restarts.
// Get returns domain.ErrSlotEmpty when the slot holds nothing (or has expired).
type CredentialStore interface {
	Get(ctx context.Context, slot domain.Slot) (string, domain.Durability, error)
	Set(ctx context.Context, slot domain.Slot, value string, durability domain.Durability) error
	Clear(ctx context.Context) error
}

// Pinger is implemented by dependencies that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
