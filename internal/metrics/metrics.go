// Package metrics exposes Prometheus collectors for the audio relay.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Direction labels.
const (
	ToSpeech    = "to_speech"
	ToTelephony = "to_telephony"
)

var (
	// Bridges currently relaying
	ActiveBridges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "voicebridge",
			Subsystem: "bridge",
			Name:      "active",
			Help:      "Bridge sessions currently running",
		},
	)

	// Bridge sessions by end reason
	BridgesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicebridge",
			Subsystem: "bridge",
			Name:      "sessions_total",
			Help:      "Bridge sessions finished, by end reason",
		},
		[]string{"reason"},
	)

	// Calls refused because the concurrency cap was reached
	RejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voicebridge",
			Subsystem: "bridge",
			Name:      "rejected_total",
			Help:      "Telephony connections refused at capacity",
		},
	)

	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "voicebridge",
			Subsystem: "bridge",
			Name:      "session_duration_seconds",
			Help:      "Bridge session duration in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicebridge",
			Subsystem: "media",
			Name:      "frames_total",
			Help:      "Audio frames forwarded",
		},
		[]string{"direction"},
	)

	// Frames dropped, by direction and cause
	DroppedFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicebridge",
			Subsystem: "media",
			Name:      "dropped_frames_total",
			Help:      "Audio frames dropped",
		},
		[]string{"direction", "cause"},
	)

	SpeechErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voicebridge",
			Subsystem: "speech",
			Name:      "errors_total",
			Help:      "Error events reported by the speech session",
		},
	)

	SpeechDialDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "voicebridge",
			Subsystem: "speech",
			Name:      "dial_duration_seconds",
			Help:      "Time to open the speech session",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
)

// RecordFrame counts one forwarded frame.
func RecordFrame(direction string) {
	FramesTotal.WithLabelValues(direction).Inc()
}

// RecordDrop counts one dropped frame.
func RecordDrop(direction, cause string) {
	DroppedFramesTotal.WithLabelValues(direction, cause).Inc()
}

// RecordSessionEnd records a finished bridge.
func RecordSessionEnd(reason string, d time.Duration) {
	BridgesTotal.WithLabelValues(reason).Inc()
	SessionDuration.Observe(d.Seconds())
}
