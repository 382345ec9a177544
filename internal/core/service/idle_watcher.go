package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

const idleLogoutLimit = 15 * time.Second

// IdleWatcher logs the session out after a period without user activity. A
// warning is emitted first; activity after the warning cancels the logout.
// It is armed only while the session is authenticated.
type IdleWatcher struct {
	// OnLogout, when set, runs before an idle logout is issued.
	OnLogout func()

	session   SessionTerminator
	timeout   time.Duration
	warning   time.Duration
	warn      func(remaining time.Duration)
	log       zerolog.Logger
	afterFunc AfterFunc

	mu          sync.Mutex
	armed       bool
	warned      bool
	gen         uint64
	warnTimer   Timer
	logoutTimer Timer
	unsubscribe func()
}

// NewIdleWatcher returns a watcher that warns `warning` before `timeout`
// elapses. warn may be nil.
func NewIdleWatcher(session SessionTerminator, timeout, warning time.Duration, warn func(time.Duration), log zerolog.Logger) *IdleWatcher {
	if warning < 0 || warning >= timeout {
		warning = 0
	}
	return &IdleWatcher{
		session:   session,
		timeout:   timeout,
		warning:   warning,
		warn:      warn,
		log:       log.With().Str("component", "idle_watcher").Logger(),
		afterFunc: realAfterFunc,
	}
}

// Start begins following session changes.
func (w *IdleWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unsubscribe != nil || w.timeout <= 0 {
		return
	}
	w.unsubscribe = w.session.Subscribe(w.onSession)
}

// Stop disarms the watcher.
func (w *IdleWatcher) Stop() {
	w.mu.Lock()
	unsubscribe := w.unsubscribe
	w.unsubscribe = nil
	w.disarmLocked()
	w.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Touch records user activity and restarts the inactivity window.
func (w *IdleWatcher) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		return
	}
	if w.warned {
		w.log.Debug().Msg("activity after idle warning, logout cancelled")
	}
	w.armLocked()
}

// Armed reports whether an inactivity window is running.
func (w *IdleWatcher) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

func (w *IdleWatcher) onSession(sess domain.Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// Deliveries queued before Stop may still arrive.
	if w.unsubscribe == nil {
		return
	}
	switch {
	case sess.IsAuthenticated && !w.armed:
		w.armLocked()
	case !sess.IsAuthenticated && w.armed:
		w.disarmLocked()
	}
}

func (w *IdleWatcher) armLocked() {
	w.stopTimersLocked()
	w.armed = true
	w.warned = false
	w.gen++
	gen := w.gen

	if w.warning > 0 {
		w.warnTimer = w.afterFunc(w.timeout-w.warning, func() { w.fireWarning(gen) })
	}
	w.logoutTimer = w.afterFunc(w.timeout, func() { w.fireLogout(gen) })
}

func (w *IdleWatcher) disarmLocked() {
	w.stopTimersLocked()
	w.armed = false
	w.warned = false
	w.gen++
}

func (w *IdleWatcher) stopTimersLocked() {
	if w.warnTimer != nil {
		w.warnTimer.Stop()
		w.warnTimer = nil
	}
	if w.logoutTimer != nil {
		w.logoutTimer.Stop()
		w.logoutTimer = nil
	}
}

func (w *IdleWatcher) fireWarning(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || !w.armed {
		w.mu.Unlock()
		return
	}
	w.warned = true
	warn := w.warn
	remaining := w.warning
	w.mu.Unlock()

	w.log.Info().Dur("remaining", remaining).Msg("session idle, logging out soon")
	if warn != nil {
		warn(remaining)
	}
}

func (w *IdleWatcher) fireLogout(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || !w.armed {
		w.mu.Unlock()
		return
	}
	w.disarmLocked()
	w.mu.Unlock()

	w.log.Info().Dur("timeout", w.timeout).Msg("session idle timeout reached, logging out")
	if w.OnLogout != nil {
		w.OnLogout()
	}
	ctx, cancel := context.WithTimeout(context.Background(), idleLogoutLimit)
	defer cancel()
	w.session.Logout(ctx)
}
