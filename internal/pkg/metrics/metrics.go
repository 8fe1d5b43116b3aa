// Package metrics defines and registers all custom Prometheus metrics for the
// session and presence core. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics are registered with the default Prometheus registry at package
// init through promauto; the /metrics handler serves that registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "backoffice"

// ── Session metrics ───────────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Label:
//   - result: "ok", "invalid_credential", "replayed", "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// SessionValidationsTotal counts bearer token validations.
// Label:
//   - result: "ok", "unauthenticated", "invalidated", "error"
var SessionValidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_validations_total",
		Help:      "Total number of session validations, by result.",
	},
	[]string{"result"},
)

// RevocationsTotal counts operations that voided a session.
// Label:
//   - kind: "logout", "force_logout", "delete"
var RevocationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "revocations_total",
		Help:      "Total number of session revocations, by kind.",
	},
	[]string{"kind"},
)

// ── Presence metrics ──────────────────────────────────────────────────────────

// PresenceConnections tracks the number of open realtime connections.
var PresenceConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "presence_connections",
		Help:      "Current number of open realtime connections.",
	},
)

// PresenceOnlineUsers tracks the number of accounts with a live connection.
var PresenceOnlineUsers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "presence_online_users",
		Help:      "Current number of accounts with at least one announced connection.",
	},
)

// PresenceBroadcastsTotal counts fan-out events.
// Label:
//   - event: realtime event name (e.g. "peer-online")
var PresenceBroadcastsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "presence_broadcasts_total",
		Help:      "Total number of presence events broadcast to all connections.",
	},
	[]string{"event"},
)

// PresenceDroppedTotal counts frames dropped because a peer's send buffer
// was full.
var PresenceDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "presence_dropped_frames_total",
		Help:      "Total number of realtime frames dropped for slow peers.",
	},
)
