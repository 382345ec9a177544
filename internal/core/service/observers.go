package service

import (
	"context"
	"time"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

// SessionSource is the observable side of SessionManager.
type SessionSource interface {
	Subscribe(fn func(domain.Session)) (unsubscribe func())
}

// SessionRefresher can keep a session's access token fresh.
type SessionRefresher interface {
	SessionSource
	RefreshAccessToken(ctx context.Context) bool
}

// SessionTerminator can end a session.
type SessionTerminator interface {
	SessionSource
	Logout(ctx context.Context)
}

// Timer is the subset of *time.Timer the watchers use.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d; time.AfterFunc in production.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
