package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the gateway's prometheus instruments
type Metrics struct {
	connections prometheus.Gauge
	events      *prometheus.CounterVec
	pushDropped *prometheus.CounterVec
}

// NewMetrics registers the gateway instruments on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "social_gateway_connections",
			Help: "Number of open authenticated websocket connections.",
		}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "social_gateway_events_total",
			Help: "Realtime requests handled, by event and result.",
		}, []string{"event", "result"}),
		pushDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "social_gateway_push_dropped_total",
			Help: "Pushes dropped because a connection was closed or its queue was full.",
		}, []string{"event"}),
	}
}
