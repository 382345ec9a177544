package service

import (
	"context"
	"sync"
	"time"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

// fakeClock records scheduled callbacks instead of running them.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// pending returns the timers that are still armed, oldest first.
func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

func (c *fakeClock) all() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTimer(nil), c.timers...)
}

// stubSession is a synchronous session source.
type stubSession struct {
	mu        sync.Mutex
	observers map[int]func(domain.Session)
	next      int
	refreshes int
	logouts   int
	refreshOK bool
}

func newStubSession() *stubSession {
	return &stubSession{observers: make(map[int]func(domain.Session))}
}

func (s *stubSession) Subscribe(fn func(domain.Session)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

func (s *stubSession) emit(sess domain.Session) {
	s.mu.Lock()
	fns := make([]func(domain.Session), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(sess)
	}
}

// observerFuncs returns the registered callbacks, standing in for deliveries that
// were already queued when a subscriber left.
func (s *stubSession) observerFuncs() []func(domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fns := make([]func(domain.Session), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	return fns
}

func (s *stubSession) RefreshAccessToken(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	return s.refreshOK
}

func (s *stubSession) Logout(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logouts++
}

func (s *stubSession) counts() (refreshes, logouts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes, s.logouts
}

func authenticated(token string) domain.Session {
	return domain.Session{
		User:            testUser("Ana"),
		AccessToken:     token,
		RefreshToken:    "refresh-1",
		IsAuthenticated: true,
		State:           domain.StateAuthenticated,
	}
}

func loggedOut() domain.Session {
	return domain.Session{State: domain.StateUnauthenticated}
}
