package restapi

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts REST traffic. A nil *Metrics records nothing.
type Metrics struct {
	requests     *prometheus.CounterVec
	unauthorized prometheus.Counter
	failures     *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them on reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talkwire",
			Subsystem: "rest",
			Name:      "requests_total",
			Help:      "REST responses by method and status class.",
		}, []string{"method", "class"}),
		unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "talkwire",
			Subsystem: "rest",
			Name:      "unauthorized_total",
			Help:      "401 responses that cleared the session.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talkwire",
			Subsystem: "rest",
			Name:      "transport_failures_total",
			Help:      "Requests that got no response, by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.unauthorized, m.failures)
	}
	return m
}

func (m *Metrics) observe(method string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, statusClass(status)).Inc()
}

func (m *Metrics) unauthorizedHit() {
	if m == nil {
		return
	}
	m.unauthorized.Inc()
}

func (m *Metrics) transportFailure(reason string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(reason).Inc()
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}
