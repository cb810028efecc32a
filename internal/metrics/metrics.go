package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Discovery metrics
	DiscoveryCycles   prometheus.Counter
	DiscoveryAttempts prometheus.Counter
	DevicesDiscovered prometheus.Gauge
	DiscoveryOutcomes *prometheus.CounterVec

	// Capture metrics
	SessionAttaches      prometheus.Counter
	SessionAttachErrors  prometheus.Counter
	SessionConnected     prometheus.Gauge
	FramesDelivered      prometheus.Counter
	FrameSize            prometheus.Histogram
	KeyFrames            prometheus.Counter

	// Recording metrics
	RecordingsStarted  prometheus.Counter
	RecordingsSaved    prometheus.Counter
	RecordingsDropped  prometheus.Counter
	RecordingActive    prometheus.Gauge
	RecordingDuration  prometheus.Histogram
	FramesAppended     prometheus.Counter
	FramesDroppedWrite *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		// Discovery metrics
		DiscoveryCycles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirrorcap_discovery_cycles_total",
			Help: "Total number of discovery cycles started",
		}),
		DiscoveryAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirrorcap_discovery_attempts_total",
			Help: "Total number of device enumeration attempts",
		}),
		DevicesDiscovered: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mirrorcap_devices_discovered",
			Help: "Number of capture devices in the last enumerated set",
		}),
		DiscoveryOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mirrorcap_discovery_outcomes_total",
				Help: "Terminal outcomes of discovery cycles",
			},
			[]string{"outcome"}, // found, manual, exhausted, stopped
		),

		// Capture metrics
		SessionAttaches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirrorcap_session_attaches_total",
			Help: "Total number of successful capture session attachments",
		}),
		SessionAttachErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirrorcap_session_attach_errors_total",
			Help: "Total number of failed capture session attachments",
		}),
		SessionConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mirrorcap_session_connected",
			Help: "1 while a capture session is attached and streaming",
		}),
		FramesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirrorcap_frames_delivered_total",
			Help: "Total number of frames delivered by the capture session",
		}),
		FrameSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mirrorcap_frame_size_bytes",
			Help:    "Size of delivered frames in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 10), // 1KB to ~512KB
		}),
		KeyFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirrorcap_keyframes_total",
			Help: "Total number of keyframes delivered",
		}),

		// Recording metrics
		RecordingsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirrorcap_recordings_started_total",
			Help: "Total number of recordings started",
		}),
		RecordingsSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirrorcap_recordings_saved_total",
			Help: "Total number of recordings relocated to storage",
		}),
		RecordingsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirrorcap_recordings_discarded_total",
			Help: "Total number of recordings discarded without saving",
		}),
		RecordingActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mirrorcap_recording_active",
			Help: "1 while a recording session is writing",
		}),
		RecordingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mirrorcap_recording_duration_seconds",
			Help:    "Duration of finished recordings in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1.1h
		}),
		FramesAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mirrorcap_frames_appended_total",
			Help: "Total number of frames appended to container files",
		}),
		FramesDroppedWrite: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mirrorcap_frames_dropped_total",
				Help: "Total number of frames dropped before encoding",
			},
			[]string{"reason"}, // not_ready, not_writing
		),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mirrorcap_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mirrorcap_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	return m
}

// RecordDiscoveryCycle records a discovery cycle starting
func (m *Metrics) RecordDiscoveryCycle() {
	m.DiscoveryCycles.Inc()
}

// RecordDiscoveryAttempt records one enumeration attempt and the set size it produced
func (m *Metrics) RecordDiscoveryAttempt(deviceCount int) {
	m.DiscoveryAttempts.Inc()
	m.DevicesDiscovered.Set(float64(deviceCount))
}

// RecordDiscoveryOutcome records the terminal outcome of a cycle
func (m *Metrics) RecordDiscoveryOutcome(outcome string) {
	m.DiscoveryOutcomes.WithLabelValues(outcome).Inc()
}

// RecordAttach records a capture session attachment result
func (m *Metrics) RecordAttach(err error) {
	if err != nil {
		m.SessionAttachErrors.Inc()
		return
	}
	m.SessionAttaches.Inc()
	m.SessionConnected.Set(1)
}

// RecordDetach records the capture session being released
func (m *Metrics) RecordDetach() {
	m.SessionConnected.Set(0)
}

// RecordFrame records a delivered frame
func (m *Metrics) RecordFrame(size int, keyFrame bool) {
	m.FramesDelivered.Inc()
	m.FrameSize.Observe(float64(size))
	if keyFrame {
		m.KeyFrames.Inc()
	}
}

// RecordRecordingStart records a recording entering the writing state
func (m *Metrics) RecordRecordingStart() {
	m.RecordingsStarted.Inc()
	m.RecordingActive.Set(1)
}

// RecordRecordingEnd records a recording leaving the writing state
func (m *Metrics) RecordRecordingEnd(saved bool, durationSeconds float64) {
	m.RecordingActive.Set(0)
	m.RecordingDuration.Observe(durationSeconds)
	if saved {
		m.RecordingsSaved.Inc()
	} else {
		m.RecordingsDropped.Inc()
	}
}

// RecordAppend records a frame appended to the container
func (m *Metrics) RecordAppend() {
	m.FramesAppended.Inc()
}

// RecordDroppedFrame records a frame dropped before encoding
func (m *Metrics) RecordDroppedFrame(reason string) {
	m.FramesDroppedWrite.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, path, statusClass(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
