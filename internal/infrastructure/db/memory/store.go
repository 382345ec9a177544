// Package memory is a process-local credential store. Everything it holds is
// lost on restart regardless of durability.
package memory

import (
	"context"
	"sync"

	"github.com/comanda/restaurant-console/internal/core/domain"
	"github.com/comanda/restaurant-console/internal/core/ports"
)

type entry struct {
	value      string
	durability domain.Durability
}

type Store struct {
	mu    sync.RWMutex
	slots map[domain.Slot]entry
}

var _ ports.CredentialStore = (*Store)(nil)

func New() *Store {
	return &Store{slots: make(map[domain.Slot]entry)}
}

func (s *Store) Get(_ context.Context, slot domain.Slot) (string, domain.Durability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.slots[slot]
	if !ok || e.value == "" {
		return "", "", domain.ErrSlotEmpty
	}
	return e.value, e.durability, nil
}

func (s *Store) Set(_ context.Context, slot domain.Slot, value string, durability domain.Durability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = entry{value: value, durability: durability}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = make(map[domain.Slot]entry)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
