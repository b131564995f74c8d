package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "relay"

type Metrics struct {
	Connections   prometheus.Gauge
	Rooms         prometheus.Gauge
	Participants  prometheus.Gauge
	Waiting       prometheus.Gauge
	Messages      *prometheus.CounterVec // by inbound type
	ParseErrors   prometheus.Counter
	JoinFailures  *prometheus.CounterVec // by reason
	RoomsStarted  *prometheus.CounterVec // by mode
	RoomsTornDown prometheus.Counter
	RoomsSwept    prometheus.Counter
	Disconnects   prometheus.Counter
}

// New registers the relay collectors on reg. Pass prometheus.NewRegistry()
// in tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Registered WebSocket connections",
		}),
		Rooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Live rooms",
		}),
		Participants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "participants",
			Help:      "Participants seated in a room",
		}),
		Waiting: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waiting",
			Help:      "Connections in the anonymous match pool",
		}),
		Messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound messages by type",
		}, []string{"type"}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Inbound frames that were not a valid envelope",
		}),
		JoinFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "join_failures_total",
			Help:      "Rejected join intents by reason",
		}, []string{"reason"}),
		RoomsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_started_total",
			Help:      "Rooms that reached capacity",
		}, []string{"mode"}),
		RoomsTornDown: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_torn_down_total",
			Help:      "Rooms deleted when their last participant left",
		}),
		RoomsSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_swept_total",
			Help:      "Empty rooms removed by the periodic sweep",
		}),
		Disconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Connections cleaned up by the supervisor",
		}),
	}
}

// Observe sets the point-in-time gauges.
func (m *Metrics) Observe(connections, rooms, participants, waiting int) {
	m.Connections.Set(float64(connections))
	m.Rooms.Set(float64(rooms))
	m.Participants.Set(float64(participants))
	m.Waiting.Set(float64(waiting))
}
