package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/comanda/restaurant-console/internal/core/domain"
	"github.com/comanda/restaurant-console/internal/core/ports"
)

const (
	sessionCollection = "console_sessions"

	defaultSessionTTL  = 12 * time.Hour
	defaultRememberTTL = 30 * 24 * time.Hour
)

// CredentialStore keeps one document per console profile with an embedded
// entry per slot. Expired entries read as empty.
type CredentialStore struct {
	coll        *mongo.Collection
	profile     string
	sessionTTL  time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

type slotEntry struct {
	Value      string `bson:"value"`
	Durability string `bson:"durability"`
	ExpiresAt  int64  `bson:"expires_at"`
}

type sessionDoc struct {
	Profile   string               `bson:"_id"`
	Slots     map[string]slotEntry `bson:"slots"`
	UpdatedAt int64                `bson:"updated_at"`
}

func NewCredentialStore(db *mongo.Database, profile string, sessionTTL, rememberTTL time.Duration) *CredentialStore {
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
		coll:        db.Collection(sessionCollection),
		profile:     profile,
		sessionTTL:  sessionTTL,
		rememberTTL: rememberTTL,
		now:         time.Now,
	}
}

func (s *CredentialStore) Get(ctx context.Context, slot domain.Slot) (string, domain.Durability, error) {
	var doc sessionDoc
	opts := options.FindOne().SetProjection(bson.M{"slots." + string(slot): 1})
	if err := s.coll.FindOne(ctx, bson.M{"_id": s.profile}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", "", domain.ErrSlotEmpty
		}
		return "", "", fmt.Errorf("find session slot: %w", err)
	}
	return s.entryValue(doc.Slots[string(slot)])
}

func (s *CredentialStore) Set(ctx context.Context, slot domain.Slot, value string, durability domain.Durability) error {
	entry := s.newEntry(value, durability)
	update := bson.M{"$set": bson.M{
		"slots." + string(slot): entry,
		"updated_at":            s.now().Unix(),
	}}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": s.profile}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert session slot: %w", err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": s.profile}); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *CredentialStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}

func (s *CredentialStore) newEntry(value string, d domain.Durability) slotEntry {
	ttl := s.sessionTTL
	if d == domain.DurabilityPersistent {
		ttl = s.rememberTTL
	}
	return slotEntry{
		Value:      value,
		Durability: string(d),
		ExpiresAt:  s.now().Add(ttl).Unix(),
	}
}

func (s *CredentialStore) entryValue(e slotEntry) (string, domain.Durability, error) {
	if e.Value == "" || (e.ExpiresAt > 0 && s.now().Unix() >= e.ExpiresAt) {
		return "", "", domain.ErrSlotEmpty
	}
	return e.Value, domain.Durability(e.Durability), nil
}
