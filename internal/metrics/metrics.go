// Package metrics holds the Prometheus collectors shared by the device client,
// the notification reader, and the stream watcher. Collectors register with the
// default registry; the bridge exposes them on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Notification stream
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beoplay_notifications_total",
			Help: "Notifications merged into the device snapshot",
		},
		[]string{"kind"},
	)

	NotificationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beoplay_notifications_dropped_total",
			Help: "Notification lines discarded without effect",
		},
		[]string{"reason"}, // "decode", "oversized", "merge", "slow_subscriber"
	)

	StreamSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beoplay_stream_sessions_total",
			Help: "Notification stream sessions by how they ended",
		},
		[]string{"outcome"}, // "ended", "failed", "rejected"
	)

	StreamBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beoplay_stream_breaker_state",
			Help: "Stream reconnect breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Request/response traffic
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beoplay_requests_total",
			Help: "Requests to the device by outcome",
		},
		[]string{"method", "outcome"}, // outcome: "ok", "status", "transport", "malformed", "skipped", "error"
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beoplay_request_duration_seconds",
			Help:    "Round trip time of requests that reached the network",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method"},
	)

	CooldownRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beoplay_cooldown_remaining",
			Help: "Requests still to be skipped after the last transport failure",
		},
	)

	SnapshotVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beoplay_snapshot_version",
			Help: "Version of the most recent device snapshot",
		},
	)

	// Bridge
	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beoplay_bridge_event_subscribers",
			Help: "Open /events WebSocket connections",
		},
	)

	// MQTT
	MQTTPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beoplay_mqtt_publishes_total",
			Help: "Snapshot publications to the MQTT broker",
		},
		[]string{"outcome"},
	)
)

// RecordRequest records a finished request to the device.
func RecordRequest(method, outcome string, elapsed time.Duration) {
	RequestsTotal.WithLabelValues(method, outcome).Inc()
	if elapsed > 0 {
		RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	}
}
