package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the Kairo service.
// All Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Flow metrics
	FlowRuns     *prometheus.CounterVec
	FlowDuration *prometheus.HistogramVec

	// Model call metrics
	ModelRequests *prometheus.CounterVec
	ModelRetries  *prometheus.CounterVec
	ModelDuration *prometheus.HistogramVec

	// Audio metrics
	WAVBytes      prometheus.Histogram
	AudioDuration prometheus.Histogram

	// Store metrics
	StoreOperations *prometheus.CounterVec

	// Journal lock metrics
	UnlockAttempts *prometheus.CounterVec
	ActiveUnlocks  prometheus.Gauge

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
	RateLimited         *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with the default registry
func NewMetrics() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// New creates all metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FlowRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kairo_flow_runs_total",
			Help: "Total number of AI flow runs by flow and result",
		}, []string{"flow", "result"}),
		FlowDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kairo_flow_duration_seconds",
			Help:    "End-to-end duration of AI flow runs",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2 minutes
		}, []string{"flow"}),

		ModelRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kairo_model_requests_total",
			Help: "Total number of generative model requests by kind and result",
		}, []string{"kind", "result"}),
		ModelRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kairo_model_retries_total",
			Help: "Total number of generative model request retries",
		}, []string{"kind"}),
		ModelDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kairo_model_request_duration_seconds",
			Help:    "Duration of generative model requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 11), // 100ms to ~100s
		}, []string{"kind"}),

		WAVBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kairo_wav_size_bytes",
			Help:    "Size of encoded WAV files",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10), // 16KB to ~8MB
		}),
		AudioDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kairo_audio_duration_seconds",
			Help:    "Duration of generated meditation audio",
			Buckets: prometheus.LinearBuckets(15, 15, 10), // 15s to 150s
		}),

		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kairo_store_operations_total",
			Help: "Total number of document store operations",
		}, []string{"operation", "collection", "result"}),

		UnlockAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kairo_journal_unlock_attempts_total",
			Help: "Total number of journal unlock attempts by result",
		}, []string{"result"}),
		ActiveUnlocks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kairo_journal_active_unlocks",
			Help: "Current number of unlocked journal sessions",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kairo_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kairo_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kairo_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kairo_http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		}, []string{"endpoint"}),
	}
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordFlow records one flow run
func (m *Metrics) RecordFlow(flow string, ok bool, durationSeconds float64) {
	if m == nil {
		return
	}
	m.FlowRuns.WithLabelValues(flow, resultLabel(ok)).Inc()
	m.FlowDuration.WithLabelValues(flow).Observe(durationSeconds)
}

// RecordModelRequest records one model request, including all of its retries
func (m *Metrics) RecordModelRequest(kind string, ok bool, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ModelRequests.WithLabelValues(kind, resultLabel(ok)).Inc()
	m.ModelDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordModelRetry increments the retry counter
func (m *Metrics) RecordModelRetry(kind string) {
	if m == nil {
		return
	}
	m.ModelRetries.WithLabelValues(kind).Inc()
}

// RecordAudio records an encoded WAV file
func (m *Metrics) RecordAudio(sizeBytes int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.WAVBytes.Observe(float64(sizeBytes))
	m.AudioDuration.Observe(durationSeconds)
}

// RecordStoreOperation records a document store operation
func (m *Metrics) RecordStoreOperation(operation, collection string, ok bool) {
	if m == nil {
		return
	}
	m.StoreOperations.WithLabelValues(operation, collection, resultLabel(ok)).Inc()
}

// RecordUnlockAttempt records a journal unlock attempt
func (m *Metrics) RecordUnlockAttempt(ok bool) {
	if m == nil {
		return
	}
	m.UnlockAttempts.WithLabelValues(resultLabel(ok)).Inc()
}

// SetActiveUnlocks sets the current number of unlocked journal sessions
func (m *Metrics) SetActiveUnlocks(count int) {
	if m == nil {
		return
	}
	m.ActiveUnlocks.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

// RecordRateLimited records a request rejected by the rate limiter
func (m *Metrics) RecordRateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(endpoint).Inc()
}
