package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Realtime
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nightcircle_ws_connections",
			Help: "Open websocket connections",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nightcircle_online_users",
			Help: "Users with at least one open connection",
		},
	)

	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nightcircle_ws_frames_dropped_total",
			Help: "Outbound frames dropped because a client queue was full",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nightcircle_ws_rate_limited_total",
			Help: "Inbound frames rejected by the per-connection limiter",
		},
	)

	// Messaging
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightcircle_messages_sent_total",
			Help: "Messages persisted and fanned out",
		},
		[]string{"kind"}, // "private" or "group"
	)

	MessageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightcircle_message_errors_total",
			Help: "Rejected or failed message operations",
		},
		[]string{"kind", "reason"},
	)

	ReactionsToggled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightcircle_reactions_toggled_total",
			Help: "Reaction toggles by outcome",
		},
		[]string{"outcome"}, // "added", "removed", "conflict"
	)

	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightcircle_notifications_total",
			Help: "Notification dispatch results",
		},
		[]string{"result"}, // "ok" or "failed"
	)

	// Geo
	GroupsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightcircle_groups_created_total",
			Help: "Proximity groups created",
		},
		[]string{"tier"},
	)

	MembersEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nightcircle_group_members_evicted_total",
			Help: "Members removed after moving out of a tier radius",
		},
	)

	GeocoderFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightcircle_geocoder_fallbacks_total",
			Help: "Geocoding lookups answered by the deterministic fallback",
		},
		[]string{"reason"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nightcircle_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Ephemeral content
	RoomsSwept = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightcircle_rooms_swept_total",
			Help: "Night rooms removed by the retention sweep",
		},
		[]string{"result"}, // "deleted" or "failed"
	)

	RowsReaped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightcircle_rows_reaped_total",
			Help: "Expired rows removed by the reaper",
		},
		[]string{"table"},
	)
)
