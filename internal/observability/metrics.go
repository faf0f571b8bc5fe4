package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	hubConnectionsGauge   prometheus.Gauge
	hubMessagesTotal      *prometheus.CounterVec
	hubEventsDroppedTotal *prometheus.CounterVec
	hubCallSessionsGauge  prometheus.Gauge
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used by the hub.
func RegisterMetrics() {
	registerOnce.Do(func() {
		hubConnectionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hub_connections",
			Help: "Number of websocket connections currently registered.",
		})

		hubMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_messages_sent_total",
			Help: "Total number of chat messages persisted and broadcast.",
		}, []string{"kind"})

		hubEventsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_events_dropped_total",
			Help: "Total number of events dropped for slow or absent receivers.",
		}, []string{"reason"})

		hubCallSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hub_call_sessions",
			Help: "Number of active call signaling sessions.",
		})

		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hub_http_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		prometheus.MustRegister(
			hubConnectionsGauge,
			hubMessagesTotal,
			hubEventsDroppedTotal,
			hubCallSessionsGauge,
			httpRequestsTotal,
			httpLatencySeconds,
		)
	})
}

// HubConnections exposes the active connection gauge.
func HubConnections() prometheus.Gauge {
	RegisterMetrics()
	return hubConnectionsGauge
}

// HubMessagesSent exposes the message counter labelled by kind.
func HubMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return hubMessagesTotal
}

// HubEventsDropped exposes the dropped-event counter labelled by reason.
func HubEventsDropped() *prometheus.CounterVec {
	RegisterMetrics()
	return hubEventsDroppedTotal
}

// HubCallSessions exposes the active call session gauge.
func HubCallSessions() prometheus.Gauge {
	RegisterMetrics()
	return hubCallSessionsGauge
}

// HTTPRequests exposes the counter for HTTP requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for HTTP requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}
