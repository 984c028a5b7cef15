package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trivia"

// Metrics holds the Prometheus collectors for the game engine and gateway.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	sessionsCreated   prometheus.Counter
	gamesFinished     prometheus.Counter
	roundsFinalized   *prometheus.CounterVec
	activeConnections prometheus.Gauge
	inboundFrames     *prometheus.CounterVec
	outboundMessages  *prometheus.CounterVec
	policyViolations  prometheus.Counter
	cacheOps          *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Game sessions created by a first join.",
		}),
		gamesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Game sessions that reached the finished state.",
		}),
		roundsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_finalized_total",
			Help:      "Rounds scored, by the path that finalized them.",
		}, []string{"trigger"}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_active_connections",
			Help:      "Open websocket connections.",
		}),
		inboundFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_inbound_frames_total",
			Help:      "Inbound frames by message type.",
		}, []string{"type"}),
		outboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_outbound_messages_total",
			Help:      "Outbound messages delivered to sockets, by message type.",
		}, []string{"type"}),
		policyViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_policy_violations_total",
			Help:      "Connections closed for a policy violation.",
		}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Best-effort cache calls by operation and result.",
		}, []string{"op", "result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.sessionsCreated,
			m.gamesFinished,
			m.roundsFinalized,
			m.activeConnections,
			m.inboundFrames,
			m.outboundMessages,
			m.policyViolations,
			m.cacheOps,
		)
	}
	return m
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) GameFinished() {
	if m == nil {
		return
	}
	m.gamesFinished.Inc()
}

// RoundFinalized counts a round scored by trigger (timer, all_answered, request, join, advance).
func (m *Metrics) RoundFinalized(trigger string) {
	if m == nil {
		return
	}
	m.roundsFinalized.WithLabelValues(trigger).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

func (m *Metrics) InboundFrame(msgType string) {
	if m == nil {
		return
	}
	m.inboundFrames.WithLabelValues(msgType).Inc()
}

func (m *Metrics) OutboundMessages(msgType string, delivered int) {
	if m == nil || delivered <= 0 {
		return
	}
	m.outboundMessages.WithLabelValues(msgType).Add(float64(delivered))
}

func (m *Metrics) PolicyViolation() {
	if m == nil {
		return
	}
	m.policyViolations.Inc()
}

// CacheOp counts a cache call; ok=false means miss or failure.
func (m *Metrics) CacheOp(op string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "miss"
	}
	m.cacheOps.WithLabelValues(op, result).Inc()
}
