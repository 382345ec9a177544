// Package file persists long-lived credentials in a JSON file readable only by
// its owner. Session-lived credentials never touch the disk; they stay in
// memory and vanish with the process.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/comanda/restaurant-console/internal/core/domain"
	"github.com/comanda/restaurant-console/internal/core/ports"
)

const fileMode = 0o600

type document struct {
	Version int                    `json:"version"`
	Slots   map[domain.Slot]string `json:"slots"`
}

// Store is a file-backed ports.CredentialStore.
type Store struct {
	path   string
	sealer *sealer

	mu      sync.Mutex
	session map[domain.Slot]string
}

var _ ports.CredentialStore = (*Store)(nil)

// New returns a store writing to path. A non-empty passphrase encrypts the
// file at rest.
func New(path, passphrase string) (*Store, error) {
	if path == "" {
		return nil, errors.New("file store: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("file store: create dir: %w", err)
	}
	s := &Store{path: path, session: make(map[domain.Slot]string)}
	if passphrase != "" {
		s.sealer = newSealer(passphrase)
	}
	return s, nil
}

// DefaultPath is the credentials file under the user's config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "restaurant-console", "session.json")
}

func (s *Store) Get(_ context.Context, slot domain.Slot) (string, domain.Durability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.session[slot]; ok && v != "" {
		return v, domain.DurabilitySession, nil
	}
	doc, err := s.read()
	if err != nil {
		return "", "", err
	}
	v := doc.Slots[slot]
	if v == "" {
		return "", "", domain.ErrSlotEmpty
	}
	return v, domain.DurabilityPersistent, nil
}

func (s *Store) Set(_ context.Context, slot domain.Slot, value string, durability domain.Durability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if durability == domain.DurabilityPersistent {
		delete(s.session, slot)
		doc.Slots[slot] = value
	} else {
		s.session[slot] = value
		if _, ok := doc.Slots[slot]; !ok {
			return nil
		}
		delete(doc.Slots, slot)
	}
	return s.write(doc)
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = make(map[domain.Slot]string)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file store: remove: %w", err)
	}
	return nil
}

// Ping checks that the directory holding the file is usable.
func (s *Store) Ping(context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

func (s *Store) read() (*document, error) {
	doc := &document{Version: 1, Slots: make(map[domain.Slot]string)}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file store: read: %w", err)
	}
	if s.sealer != nil {
		if raw, err = s.sealer.open(raw); err != nil {
			return nil, fmt.Errorf("file store: %w", err)
		}
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("file store: decode: %w", err)
	}
	if doc.Slots == nil {
		doc.Slots = make(map[domain.Slot]string)
	}
	return doc, nil
}

// write replaces the file atomically.
func (s *Store) write(doc *document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("file store: encode: %w", err)
	}
	if s.sealer != nil {
		if raw, err = s.sealer.seal(raw); err != nil {
			return fmt.Errorf("file store: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("file store: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file store: chmod: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file store: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("file store: rename: %w", err)
	}
	return nil
}
