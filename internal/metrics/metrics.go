// Package metrics exposes Prometheus counters for the processing service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the labeling service.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	recordingsTotal     prometheus.Counter
	recordingsFailed    prometheus.Counter
	activeJobs          prometheus.Gauge
	processingSeconds   prometheus.Histogram
	segmentsFusedTotal  prometheus.Counter
	speakersNamedTotal  prometheus.Counter
	errorsTotal         prometheus.Counter
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labeler_requests_total",
		Help: "Total number of HTTP requests received",
	})
	recordingsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labeler_recordings_processed_total",
		Help: "Total number of recordings that finished processing",
	})
	recordingsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labeler_recordings_failed_total",
		Help: "Total number of recordings whose processing failed",
	})
	activeJobs := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "labeler_active_jobs",
		Help: "Number of processing jobs currently running",
	})
	processingSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "labeler_processing_duration_seconds",
		Help:    "Wall clock duration of complete processing runs",
		Buckets: prometheus.ExponentialBuckets(10, 2, 10),
	})
	segmentsFusedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labeler_segments_fused_total",
		Help: "Total number of diarization segments fused with face tracks",
	})
	speakersNamedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labeler_speakers_named_total",
		Help: "Total number of speakers named from transcript introductions",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labeler_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		recordingsTotal,
		recordingsFailed,
		activeJobs,
		processingSeconds,
		segmentsFusedTotal,
		speakersNamedTotal,
		errorsTotal,
	)

	return &Metrics{
		registry:           registry,
		requestsTotal:      requestsTotal,
		recordingsTotal:    recordingsTotal,
		recordingsFailed:   recordingsFailed,
		activeJobs:         activeJobs,
		processingSeconds:  processingSeconds,
		segmentsFusedTotal: segmentsFusedTotal,
		speakersNamedTotal: speakersNamedTotal,
		errorsTotal:        errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// RecordingProcessed records a finished run and its duration in seconds.
func (m *Metrics) RecordingProcessed(seconds float64) {
	m.recordingsTotal.Inc()
	m.processingSeconds.Observe(seconds)
}

// RecordingFailed increments the failure counter.
func (m *Metrics) RecordingFailed() {
	m.recordingsFailed.Inc()
}

// JobStarted and JobFinished track the active jobs gauge.
func (m *Metrics) JobStarted() {
	m.activeJobs.Inc()
}

func (m *Metrics) JobFinished() {
	m.activeJobs.Dec()
}

// AddSegmentsFused adds to the fused segment counter.
func (m *Metrics) AddSegmentsFused(n int) {
	m.segmentsFusedTotal.Add(float64(n))
}

// AddSpeakersNamed adds to the named speaker counter.
func (m *Metrics) AddSpeakersNamed(n int) {
	m.speakersNamedTotal.Add(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// responseWriter captures the status code for metrics.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestMiddleware returns chi-compatible middleware that records request
// count and error count (status >= 400).
func RequestMiddleware(m *Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrap, r)
			m.IncRequests()
			if wrap.status >= 400 {
				m.IncErrors()
			}
		})
	}
}
