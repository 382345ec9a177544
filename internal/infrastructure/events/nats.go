// Package events publishes session transitions so other terminals and
// back-office tools can react to logins and logouts.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

const DefaultSubject = "console.session"

// SessionEvent is the wire format of a published transition. Tokens are never
// included.
type SessionEvent struct {
	Terminal        string       `json:"terminal"`
	State           domain.State `json:"state"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	UserID          string       `json:"userId,omitempty"`
	Role            string       `json:"role,omitempty"`
	Error           string       `json:"error,omitempty"`
	At              time.Time    `json:"at"`
}

// Publisher sends a SessionEvent on every state change.
type Publisher struct {
	conn     *nats.Conn
	subject  string
	terminal string
	log      zerolog.Logger

	mu   sync.Mutex
	last domain.State
}

// Connect dials NATS. The connection reconnects forever in the background.
func Connect(url, subject, terminal string, log zerolog.Logger) (*Publisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url,
		nats.Name("restaurant-console/"+terminal),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Publisher{
		conn:     conn,
		subject:  subject,
		terminal: terminal,
		log:      log.With().Str("component", "session_events").Logger(),
	}, nil
}

// Observe is meant to be registered with SessionManager.Subscribe.
func (p *Publisher) Observe(s domain.Session) {
	p.mu.Lock()
	changed := s.State != p.last
	p.last = s.State
	p.mu.Unlock()
	if !changed {
		return
	}

	raw, err := json.Marshal(newSessionEvent(p.terminal, s, time.Now().UTC()))
	if err != nil {
		p.log.Error().Err(err).Msg("encode session event")
		return
	}
	if err := p.conn.Publish(p.subject, raw); err != nil {
		p.log.Warn().Err(err).Str("state", string(s.State)).Msg("publish session event")
	}
}

// Close flushes pending events and closes the connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

func newSessionEvent(terminal string, s domain.Session, at time.Time) SessionEvent {
	ev := SessionEvent{
		Terminal:        terminal,
		State:           s.State,
		IsAuthenticated: s.IsAuthenticated,
		Error:           s.Error,
		At:              at,
	}
	if s.User != nil {
		ev.UserID = s.User.ID
		ev.Role = s.User.RoleName()
	}
	return ev
}
