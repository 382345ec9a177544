package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/comanda/restaurant-console/internal/core/domain"
	"github.com/comanda/restaurant-console/internal/core/ports"
)

const (
	defaultSessionTTL  = 12 * time.Hour
	defaultRememberTTL = 30 * 24 * time.Hour

	fieldValue      = "value"
	fieldDurability = "durability"
)

// CredentialStore keeps the session slots in Redis hashes, one key per slot.
// Session-lived slots expire after SessionTTL, persistent ones after RememberTTL.
// Key format: console:session:<profile>:<slot>
type CredentialStore struct {
	client      *redis.Client
	profile     string
	sessionTTL  time.Duration
	rememberTTL time.Duration
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore wraps client; zero TTLs fall back to 12h / 30d.
func NewCredentialStore(client *redis.Client, profile string, sessionTTL, rememberTTL time.Duration) *CredentialStore {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	if rememberTTL <= 0 {
		rememberTTL = defaultRememberTTL
	}
	if profile == "" {
		profile = "default"
	}
	return &CredentialStore{
		client:      client,
		profile:     profile,
		sessionTTL:  sessionTTL,
		rememberTTL: rememberTTL,
	}
}

func (s *CredentialStore) Get(ctx context.Context, slot domain.Slot) (string, domain.Durability, error) {
	fields, err := s.client.HGetAll(ctx, s.key(slot)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", "", domain.ErrSlotEmpty
		}
		return "", "", fmt.Errorf("redis get %s: %w", slot, err)
	}
	value := fields[fieldValue]
	if value == "" {
		return "", "", domain.ErrSlotEmpty
	}
	return value, domain.Durability(fields[fieldDurability]), nil
}

func (s *CredentialStore) Set(ctx context.Context, slot domain.Slot, value string, durability domain.Durability) error {
	key := s.key(slot)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldValue, value, fieldDurability, string(durability))
		pipe.Expire(ctx, key, s.ttl(durability))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", slot, err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	keys := make([]string, 0, len(domain.Slots))
	for _, slot := range domain.Slots {
		keys = append(keys, s.key(slot))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}

func (s *CredentialStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *CredentialStore) ttl(d domain.Durability) time.Duration {
	if d == domain.DurabilityPersistent {
		return s.rememberTTL
	}
	return s.sessionTTL
}

func (s *CredentialStore) key(slot domain.Slot) string {
	return fmt.Sprintf("console:session:%s:%s", s.profile, slot)
}
