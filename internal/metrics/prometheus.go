package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains prometheus metrics of the workbench
type Metrics struct {
	// remote API calls
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec

	// poll loop
	Polls *prometheus.CounterVec

	// UI sessions
	ActiveSessions prometheus.Gauge
	Recordings     prometheus.Counter
	RecordingBytes prometheus.Histogram
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns process wide metrics, registers them on first call
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		UpstreamRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "workbench_upstream_requests_total",
			Help: "Total number of requests sent to the transcription API",
		}, []string{"endpoint", "result"}),
		UpstreamDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "workbench_upstream_request_duration_seconds",
			Help:    "Duration of transcription API requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}, []string{"endpoint"}),
		Polls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "workbench_polls_total",
			Help: "Total number of transcript status polls",
		}, []string{"result"}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "workbench_active_sessions",
			Help: "Current number of UI sessions kept in memory",
		}),
		Recordings: promauto.NewCounter(prometheus.CounterOpts{
			Name: "workbench_recordings_total",
			Help: "Total number of finished microphone recordings",
		}),
		RecordingBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "workbench_recording_size_bytes",
			Help:    "Size of assembled WAV recordings",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 12), // 16KB to ~32MB
		}),
	}
}
