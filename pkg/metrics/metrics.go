// Package metrics holds the Prometheus collectors shared by the HTTP layer
// and the transcription pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	TranscriptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcriptions_total",
			Help: "Transcription outcomes by kind and error code",
		},
		[]string{"kind", "code"},
	)

	TranscriptionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transcription_duration_seconds",
			Help:    "Wall time of one transcription, from availability check to cleanup",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal, TranscriptionsTotal, TranscriptionDuration)
}
