package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

func TestCredentialStore_KeysAndTTLs(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	s := NewCredentialStore(client, "front-desk", time.Hour, 48*time.Hour)
	if got := s.key(domain.SlotRefreshToken); got != "console:session:front-desk:refresh_token" {
		t.Errorf("unexpected key %q", got)
	}
	if s.ttl(domain.DurabilitySession) != time.Hour || s.ttl(domain.DurabilityPersistent) != 48*time.Hour {
		t.Error("ttl must follow durability")
	}

	defaults := NewCredentialStore(client, "", 0, 0)
	if defaults.profile != "default" || defaults.sessionTTL != defaultSessionTTL || defaults.rememberTTL != defaultRememberTTL {
		t.Errorf("unexpected defaults %+v", defaults)
	}
}

// TestCredentialStore_RoundTrip needs a live server: TEST_REDIS_ADDR=localhost:6379.
func TestCredentialStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, Config{Addr: addr})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	s := NewCredentialStore(client, "test-"+time.Now().Format("150405.000000"), time.Minute, time.Hour)
	defer s.Clear(ctx)

	if _, _, err := s.Get(ctx, domain.SlotAccessToken); !errors.Is(err, domain.ErrSlotEmpty) {
		t.Fatalf("expected ErrSlotEmpty, got %v", err)
	}
	if err := s.Set(ctx, domain.SlotAccessToken, "access-1", domain.DurabilityPersistent); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, d, err := s.Get(ctx, domain.SlotAccessToken)
	if err != nil || v != "access-1" || d != domain.DurabilityPersistent {
		t.Fatalf("unexpected %q/%q/%v", v, d, err)
	}
	if ttl := client.TTL(ctx, s.key(domain.SlotAccessToken)).Val(); ttl <= time.Minute {
		t.Errorf("expected remember TTL, got %v", ttl)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, _, err := s.Get(ctx, domain.SlotAccessToken); !errors.Is(err, domain.ErrSlotEmpty) {
		t.Errorf("expected ErrSlotEmpty after Clear, got %v", err)
	}
}
