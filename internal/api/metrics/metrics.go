// Package metrics defines and registers all custom Prometheus metrics for the
// restaurant console session agent. It is the single source of truth for
// metric names, labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on import.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/comanda/restaurant-console/internal/core/domain"
)

const namespace = "console"

// ── Auth API metrics ─────────────────────────────────────────────────────────

// AuthRequestsTotal counts calls made to the remote auth API.
// Labels:
//   - operation: "login", "logout", "refresh", "me"
//   - outcome: "ok", "rejected" (non-2xx), "error" (transport failure)
var AuthRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_requests_total",
		Help:      "Total number of requests sent to the auth API.",
	},
	[]string{"operation", "outcome"},
)

// AuthRequestDuration measures auth API round trips.
// Label:
//   - operation: see AuthRequestsTotal
var AuthRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "auth_request_duration_seconds",
		Help:      "Duration of auth API requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// AuthRecorder feeds auth API round trips into AuthRequestsTotal and
// AuthRequestDuration. It satisfies authapi.Recorder.
type AuthRecorder struct{}

func (AuthRecorder) ObserveRequest(op, outcome string, elapsed time.Duration) {
	AuthRequestsTotal.WithLabelValues(op, outcome).Inc()
	AuthRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ── Session metrics ──────────────────────────────────────────────────────────

// SessionTransitionsTotal counts state changes of the session.
// Label:
//   - state: the state entered ("authenticating", "authenticated", …)
var SessionTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Total number of session state transitions, by state entered.",
	},
	[]string{"state"},
)

// SessionAuthenticated is 1 while the session is authenticated.
var SessionAuthenticated = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_authenticated",
		Help:      "1 when the console session is authenticated, 0 otherwise.",
	},
)

// IdleLogoutsTotal counts logouts triggered by the idle watcher.
var IdleLogoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idle_logouts_total",
		Help:      "Total number of logouts triggered by user inactivity.",
	},
)

// SessionRecorder turns session snapshots into metric updates.
type SessionRecorder struct {
	last domain.State
}

// Observe is meant to be registered with SessionManager.Subscribe.
func (r *SessionRecorder) Observe(s domain.Session) {
	if s.State != r.last {
		SessionTransitionsTotal.WithLabelValues(string(s.State)).Inc()
		r.last = s.State
	}
	if s.IsAuthenticated {
		SessionAuthenticated.Set(1)
	} else {
		SessionAuthenticated.Set(0)
	}
}
