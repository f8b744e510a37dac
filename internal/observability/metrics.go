package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stridelink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "device", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stridelink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	framesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stridelink",
			Subsystem: "decode",
			Name:      "frames_total",
			Help:      "Sensor data frames by outcome.",
		},
		[]string{"device", "outcome"},
	)
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stridelink",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events published on the bus.",
		},
		[]string{"device", "type"},
	)
	commandsFlushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stridelink",
			Subsystem: "session",
			Name:      "commands_flushed_total",
			Help:      "Outbound command buffers written to a device.",
		},
		[]string{"device"},
	)
	relayWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stridelink",
			Subsystem: "relay",
			Name:      "writes_total",
			Help:      "Relay sink writes by outcome.",
		},
		[]string{"sink", "outcome"},
	)
	relayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stridelink",
			Subsystem: "relay",
			Name:      "write_duration_seconds",
			Help:      "Relay sink write duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"sink"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			framesDecoded,
			eventsPublished,
			commandsFlushed,
			relayWrites,
			relayDuration,
		)
	})
}

// RecordHTTPRequest counts one API request. device is "" for routes that do
// not target a device.
func RecordHTTPRequest(method, path, device string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, device, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordFrame counts one decode attempt. outcome is "ok", "partial" or the
// failing error kind.
func RecordFrame(device, outcome string) {
	RegisterMetrics()
	framesDecoded.WithLabelValues(device, outcome).Inc()
}

func RecordEvent(device, eventType string) {
	RegisterMetrics()
	eventsPublished.WithLabelValues(device, eventType).Inc()
}

func RecordCommandFlush(device string) {
	RegisterMetrics()
	commandsFlushed.WithLabelValues(device).Inc()
}

// RecordRelayWrite counts a sink write; outcome is "ok", "error", "skipped"
// or "dropped".
func RecordRelayWrite(sink, outcome string, duration time.Duration) {
	RegisterMetrics()
	relayWrites.WithLabelValues(sink, outcome).Inc()
	if outcome != "dropped" {
		relayDuration.WithLabelValues(sink).Observe(duration.Seconds())
	}
}
