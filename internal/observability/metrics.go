package observability

import "github.com/prometheus/client_golang/prometheus"

// Chat relay collectors. Labels are bounded: event names come from a fixed
// set, outcome is one of ok|error|ignored|denied|limited, kind is
// text|image|file.
var (
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Current number of attached realtime connections.",
		},
	)

	UsersRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_users_registered",
			Help: "Current number of users bound to a live connection.",
		},
	)

	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_total",
			Help: "Realtime events handled, by event name and outcome.",
		},
		[]string{"event", "outcome"},
	)

	EventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_event_duration_seconds",
			Help:    "Time spent handling a realtime event.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event"},
	)

	MessagesPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Messages appended to the store, by content kind.",
		},
		[]string{"kind"},
	)
)

// Event outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeIgnored = "ignored"
	OutcomeDenied  = "denied"
	OutcomeLimited = "limited"
)

func init() {
	prometheus.MustRegister(ConnectionsActive, UsersRegistered, EventsTotal, EventDuration, MessagesPersisted)
}
