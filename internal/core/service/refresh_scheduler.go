package service

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

const (
	defaultRefreshLead    = time.Minute
	scheduledRefreshLimit = 30 * time.Second
)

// TokenExpiry reads the exp claim of a JWT access token without verifying its
// signature. ok is false for opaque tokens or tokens without exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	t, err := claims.GetExpirationTime()
	if err != nil || t == nil {
		return time.Time{}, false
	}
	return t.Time, true
}

// RefreshScheduler refreshes the access token shortly before it expires, so
// API calls rarely hit an expired token. Opaque tokens are left alone and rely
// on CheckAuth's refresh-and-retry.
type RefreshScheduler struct {
	session   SessionRefresher
	lead      time.Duration
	log       zerolog.Logger
	now       func() time.Time
	afterFunc AfterFunc

	mu          sync.Mutex
	token       string
	timer       Timer
	unsubscribe func()
}

func NewRefreshScheduler(session SessionRefresher, lead time.Duration, log zerolog.Logger) *RefreshScheduler {
	if lead <= 0 {
		lead = defaultRefreshLead
	}
	return &RefreshScheduler{
		session:   session,
		lead:      lead,
		log:       log.With().Str("component", "refresh_scheduler").Logger(),
		now:       time.Now,
		afterFunc: realAfterFunc,
	}
}

// Start begins following session changes.
func (s *RefreshScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		return
	}
	s.unsubscribe = s.session.Subscribe(s.onSession)
}

// Stop cancels any pending refresh and stops following the session.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.disarmLocked()
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *RefreshScheduler) onSession(sess domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe == nil {
		return
	}

	if !sess.IsAuthenticated || sess.AccessToken == "" {
		s.disarmLocked()
		return
	}
	if sess.AccessToken == s.token {
		return
	}
	s.disarmLocked()
	s.token = sess.AccessToken

	exp, ok := TokenExpiry(sess.AccessToken)
	if !ok {
		s.log.Debug().Msg("access token carries no expiry, proactive refresh disabled")
		return
	}
	delay := exp.Sub(s.now()) - s.lead
	if delay < 0 {
		delay = 0
	}
	token := sess.AccessToken
	s.timer = s.afterFunc(delay, func() { s.fire(token) })
	s.log.Debug().Time("expires_at", exp).Dur("refresh_in", delay).Msg("refresh scheduled")
}

func (s *RefreshScheduler) fire(token string) {
	s.mu.Lock()
	current := s.token == token
	s.mu.Unlock()
	if !current {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), scheduledRefreshLimit)
	defer cancel()
	if !s.session.RefreshAccessToken(ctx) {
		s.log.Warn().Msg("scheduled token refresh failed")
	}
}

func (s *RefreshScheduler) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.token = ""
}
