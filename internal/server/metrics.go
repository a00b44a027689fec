package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics carries its own registry so independent gateways (and tests)
// never collide on the default one.
type metrics struct {
	registry *prometheus.Registry

	sessionsStarted  prometheus.Counter
	activeSessions   prometheus.Gauge
	hostEvents       *prometheus.CounterVec
	eventsThrottled  *prometheus.CounterVec
	terminalOutcomes *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &metrics{
		registry: reg,
		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "proctor",
			Name:      "sessions_started_total",
			Help:      "Proctored sessions started.",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "proctor",
			Name:      "sessions_active",
			Help:      "Sessions currently running.",
		}),
		hostEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proctor",
			Name:      "host_events_total",
			Help:      "Raw host events by kind and monitor disposition.",
		}, []string{"kind", "decision"}),
		eventsThrottled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proctor",
			Name:      "events_throttled_total",
			Help:      "Host events dropped by the per-session rate limiter.",
		}, []string{"kind"}),
		terminalOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proctor",
			Name:      "sessions_ended_total",
			Help:      "Terminal outcomes by kind and cause.",
		}, []string{"outcome", "cause"}),
	}
}
