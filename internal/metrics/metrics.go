package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "canvasapp"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// WebSocketMetrics holds Prometheus metrics for the room sync subsystem.
// All fields are nil-safe to leave unset in tests.
type WebSocketMetrics struct {
	ActiveConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	BroadcastMessages prometheus.Counter
	DroppedPeers      prometheus.Counter
	StoreFailures     prometheus.Counter
}

// NewWebSocketMetrics creates and registers websocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active WebSocket connections.",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_rooms",
			Help:      "Number of rooms with at least one member.",
		}),
		BroadcastMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "broadcast_messages_total",
			Help:      "Total number of messages fanned out to room members.",
		}),
		DroppedPeers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "dropped_peers_total",
			Help:      "Total number of peers disconnected because their send buffer was full.",
		}),
		StoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "store_failures_total",
			Help:      "Total number of failed durable store calls from the session handler.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.ActiveRooms, m.BroadcastMessages, m.DroppedPeers, m.StoreFailures)
	return m
}
