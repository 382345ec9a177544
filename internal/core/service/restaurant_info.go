package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/comanda/restaurant-console/internal/core/domain"
	"github.com/comanda/restaurant-console/internal/core/ports"
)

const restaurantFetchLimit = 10 * time.Second

// RestaurantInfoStore loads the venue profile once per authenticated session
// and forgets it when the session ends.
type RestaurantInfoStore struct {
	client ports.RestaurantClient
	log    zerolog.Logger

	mu          sync.RWMutex
	info        *domain.RestaurantInfo
	err         error
	fetched     bool
	gen         uint64
	unsubscribe func()
}

func NewRestaurantInfoStore(client ports.RestaurantClient, log zerolog.Logger) *RestaurantInfoStore {
	return &RestaurantInfoStore{
		client: client,
		log:    log.With().Str("component", "restaurant_info").Logger(),
	}
}

// Start follows session so the fetch happens right after authentication.
func (s *RestaurantInfoStore) Start(session SessionSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		return
	}
	s.unsubscribe = session.Subscribe(s.onSession)
}

// Stop stops following the session.
func (s *RestaurantInfoStore) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Info returns the cached profile and the error of the last fetch, if any.
func (s *RestaurantInfoStore) Info() (*domain.RestaurantInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil {
		return nil, s.err
	}
	info := *s.info
	return &info, s.err
}

func (s *RestaurantInfoStore) onSession(sess domain.Session) {
	s.mu.Lock()
	if s.unsubscribe == nil {
		s.mu.Unlock()
		return
	}
	if !sess.IsAuthenticated {
		if s.fetched {
			s.log.Debug().Msg("session ended, dropping restaurant info")
		}
		s.info, s.err, s.fetched = nil, nil, false
		s.gen++
		s.mu.Unlock()
		return
	}
	if s.fetched {
		s.mu.Unlock()
		return
	}
	s.fetched = true
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), restaurantFetchLimit)
	defer cancel()
	info, err := s.client.RestaurantInfo(ctx)
	if err == nil && info == nil {
		err = errors.New("empty restaurant info response")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.info, s.err = info, err
	if err != nil {
		s.log.Warn().Err(err).Msg("fetch restaurant info")
		return
	}
	s.log.Info().Str("restaurant_id", info.ID).Msg("restaurant info loaded")
}
