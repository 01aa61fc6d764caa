package realtime

import (
	"github.com/prometheus/client_golang/prometheus"

	v1 "talkwire/shared/contracts/realtime/v1"
)

// Frame outcomes.
const (
	outcomeDelivered = "delivered"
	outcomeIgnored   = "ignored"
	outcomeMalformed = "malformed"
)

// Metrics instruments every Manager that shares it. A nil *Metrics records nothing.
type Metrics struct {
	connects      *prometheus.CounterVec
	frames        *prometheus.CounterVec
	publishes     *prometheus.CounterVec
	subscriptions prometheus.Gauge
}

// NewMetrics builds the collectors and registers them on reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talkwire",
			Subsystem: "realtime",
			Name:      "connect_attempts_total",
			Help:      "Transport connect attempts by result.",
		}, []string{"result"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talkwire",
			Subsystem: "realtime",
			Name:      "frames_total",
			Help:      "Inbound frames by topic kind and outcome.",
		}, []string{"kind", "outcome"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talkwire",
			Subsystem: "realtime",
			Name:      "publishes_total",
			Help:      "Outbound publishes by result.",
		}, []string{"result"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "talkwire",
			Subsystem: "realtime",
			Name:      "active_subscriptions",
			Help:      "Broker subscriptions currently held across all managers.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.connects, m.frames, m.publishes, m.subscriptions)
	}
	return m
}

func (m *Metrics) connect(result string) {
	if m != nil {
		m.connects.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) frame(kind v1.Kind, outcome string) {
	if m != nil {
		m.frames.WithLabelValues(string(kind), outcome).Inc()
	}
}

func (m *Metrics) publish(result string) {
	if m != nil {
		m.publishes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) subscriptionsAdd(n int) {
	if m != nil && n != 0 {
		m.subscriptions.Add(float64(n))
	}
}
