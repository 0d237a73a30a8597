package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Direction labels for relayed traffic.
const (
	DirectionUpstream   = "client_to_broker"
	DirectionDownstream = "broker_to_client"
)

var (
	registerOnce sync.Once

	framesRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amqpwire",
			Subsystem: "relay",
			Name:      "frames_total",
			Help:      "Frames relayed, by direction, frame type and decoded kind.",
		},
		[]string{"direction", "type", "kind"},
	)
	bytesRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amqpwire",
			Subsystem: "relay",
			Name:      "bytes_total",
			Help:      "Encoded frame bytes relayed, end octet included.",
		},
		[]string{"direction"},
	)
	codecErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amqpwire",
			Subsystem: "codec",
			Name:      "errors_total",
			Help:      "Frame decode/encode failures by direction and error kind.",
		},
		[]string{"direction", "kind"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "amqpwire",
			Subsystem: "relay",
			Name:      "sessions_active",
			Help:      "Relay sessions currently open.",
		},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "amqpwire",
			Subsystem: "relay",
			Name:      "session_duration_seconds",
			Help:      "Relay session lifetime in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
		},
		[]string{"outcome"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amqpwire",
			Subsystem: "admin_http",
			Name:      "requests_total",
			Help:      "Admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "amqpwire",
			Subsystem: "admin_http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesRelayed, bytesRelayed, codecErrors, sessionsActive, sessionDuration, httpRequests, httpDuration)
	})
}

// RecordFrame counts one relayed frame. kind is "method", "generic",
// "generic_basic" or "heartbeat".
func RecordFrame(direction, frameType, kind string, encodedBytes int) {
	RegisterMetrics()
	framesRelayed.WithLabelValues(direction, frameType, kind).Inc()
	bytesRelayed.WithLabelValues(direction).Add(float64(encodedBytes))
}

func RecordCodecError(direction, kind string) {
	RegisterMetrics()
	codecErrors.WithLabelValues(direction, kind).Inc()
}

func SessionOpened() {
	RegisterMetrics()
	sessionsActive.Inc()
}

func SessionClosed(outcome string, lifetime time.Duration) {
	RegisterMetrics()
	sessionsActive.Dec()
	sessionDuration.WithLabelValues(outcome).Observe(lifetime.Seconds())
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
