// Package metrics provides Prometheus metrics collection for the cycle dashboard.
// It defines the prediction, model and advisory metrics exposed via the
// Prometheus metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the dashboard.
type Metrics struct {
	// Prediction metrics
	Predictions       *prometheus.CounterVec   // Predictions served, by purpose and category
	SchemaErrors      *prometheus.CounterVec   // Observations rejected by a feature schema
	InferenceFailures *prometheus.CounterVec   // Classifier calls that failed
	ModelUnavailable  *prometheus.CounterVec   // Requests for a purpose with no loaded model
	PredictionLatency *prometheus.HistogramVec // End-to-end classify latency in seconds
	CacheHits         *prometheus.CounterVec   // Predictions served from the cache

	// Model metrics
	ModelLoaded    *prometheus.GaugeVec   // 1 when the purpose has a usable model
	ModelAge       *prometheus.GaugeVec   // Age of each model artifact in seconds
	MLTimeouts     *prometheus.CounterVec // Model worker timeouts
	WorkerRestarts *prometheus.CounterVec // Model worker restarts

	// Advisory metrics
	AdvisoryRequests *prometheus.CounterVec // Advisory questions by outcome
	AdvisoryLatency  prometheus.Histogram   // Advisory round trip latency in seconds

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec // HTTP requests by route and status code
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions served",
		}, []string{"purpose", "category"}),
		SchemaErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schema_errors_total",
			Help: "Total number of observations rejected by a feature schema",
		}, []string{"purpose"}),
		InferenceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inference_failures_total",
			Help: "Total number of failed classifier calls",
		}, []string{"purpose"}),
		ModelUnavailable: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "model_unavailable_total",
			Help: "Total number of requests for a purpose without a loaded model",
		}, []string{"purpose"}),
		PredictionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Prediction latency in seconds (assemble, classify, present)",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"purpose"}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prediction_cache_hits_total",
			Help: "Total number of predictions served from the cache",
		}, []string{"purpose"}),
		ModelLoaded: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "model_loaded",
			Help: "Whether the purpose has a usable model (1) or not (0)",
		}, []string{"purpose"}),
		ModelAge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the model artifact in seconds",
		}, []string{"model"}),
		MLTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_timeouts_total",
			Help: "Total number of model worker timeouts",
		}, []string{"model"}),
		WorkerRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_worker_restarts_total",
			Help: "Total number of model worker restarts",
		}, []string{"model"}),
		AdvisoryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "advisory_requests_total",
			Help: "Total number of advisory questions by outcome",
		}, []string{"outcome"}),
		AdvisoryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "advisory_latency_seconds",
			Help:    "Advisory round trip latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}
