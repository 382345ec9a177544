package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

func lazyDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	// Connect does not dial until the first operation.
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client.Database("console_test")
}

func TestCredentialStore_EntryExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewCredentialStore(lazyDatabase(t), "front-desk", time.Hour, 24*time.Hour)
	s.now = func() time.Time { return now }

	session := s.newEntry("access-1", domain.DurabilitySession)
	if session.ExpiresAt != now.Add(time.Hour).Unix() {
		t.Errorf("unexpected session expiry %d", session.ExpiresAt)
	}
	persistent := s.newEntry("refresh-1", domain.DurabilityPersistent)
	if persistent.ExpiresAt != now.Add(24*time.Hour).Unix() {
		t.Errorf("unexpected persistent expiry %d", persistent.ExpiresAt)
	}

	v, d, err := s.entryValue(session)
	if err != nil || v != "access-1" || d != domain.DurabilitySession {
		t.Fatalf("unexpected %q/%q/%v", v, d, err)
	}

	now = now.Add(2 * time.Hour)
	if _, _, err := s.entryValue(session); !errors.Is(err, domain.ErrSlotEmpty) {
		t.Errorf("expired entry must read as empty, got %v", err)
	}
	if _, _, err := s.entryValue(persistent); err != nil {
		t.Errorf("persistent entry expired too early: %v", err)
	}
	if _, _, err := s.entryValue(slotEntry{}); !errors.Is(err, domain.ErrSlotEmpty) {
		t.Errorf("missing entry must read as empty, got %v", err)
	}
}

func TestNewCredentialStore_Defaults(t *testing.T) {
	s := NewCredentialStore(lazyDatabase(t), "", 0, 0)
	if s.profile != "default" || s.sessionTTL != defaultSessionTTL || s.rememberTTL != defaultRememberTTL {
		t.Errorf("unexpected defaults %+v", s)
	}
	if s.coll.Name() != sessionCollection {
		t.Errorf("unexpected collection %q", s.coll.Name())
	}
}

// TestCredentialStore_RoundTrip needs a live server: TEST_MONGO_URI=mongodb://localhost:27017.
func TestCredentialStore_RoundTrip(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, db, err := Connect(ctx, Config{URI: uri, Database: "console_test"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect(ctx)

	s := NewCredentialStore(db, "test-"+time.Now().Format("150405.000000"), time.Hour, 24*time.Hour)
	defer s.Clear(ctx)

	for _, slot := range domain.Slots {
		if err := s.Set(ctx, slot, "v-"+string(slot), domain.DurabilityPersistent); err != nil {
			t.Fatalf("set %s: %v", slot, err)
		}
	}
	v, d, err := s.Get(ctx, domain.SlotUser)
	if err != nil || v != "v-user" || d != domain.DurabilityPersistent {
		t.Fatalf("unexpected %q/%q/%v", v, d, err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, _, err := s.Get(ctx, domain.SlotUser); !errors.Is(err, domain.ErrSlotEmpty) {
		t.Errorf("expected ErrSlotEmpty after Clear, got %v", err)
	}
}
