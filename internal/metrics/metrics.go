// Package metrics defines the Prometheus collectors of the scoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GRPCServerHandlingSeconds is a histogram for gRPC server request latencies
	GRPCServerHandlingSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grpc_server_handling_seconds",
			Help:    "Histogram of response latency (seconds) of gRPC that had been application-level handled by the server.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "code"},
	)

	// ModelLoadsTotal counts executions of the model load sequence, by model and device.
	ModelLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "m6a_model_loads_total",
			Help: "Number of times a CNN model was loaded into ONNX Runtime.",
		},
		[]string{"model", "device"},
	)

	// ModelLoadSeconds is the duration of the last model load.
	ModelLoadSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "m6a_model_load_seconds",
			Help: "Duration (seconds) of the last model load, staging included.",
		},
	)

	// InferenceBatchSize is a histogram of windows per forward pass
	InferenceBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "m6a_inference_batch_windows",
			Help:    "Histogram of windows scored per forward pass.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 9),
		},
	)

	// InferenceLatencySeconds is a histogram for forward pass latency
	InferenceLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "m6a_inference_latency_seconds",
			Help:    "Histogram of forward pass latency (seconds).",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
	)

	// ScoreCacheLookups counts per-window score cache lookups by result.
	ScoreCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "m6a_score_cache_lookups_total",
			Help: "Per-window score cache lookups, by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	// HealthStatus is a gauge indicating the health status of the service
	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "health_status",
			Help: "Health status of the service (1 = healthy, 0 = unhealthy).",
		},
	)
)

// RecordGRPCLatency records the latency of a gRPC method call
func RecordGRPCLatency(method, code string, seconds float64) {
	GRPCServerHandlingSeconds.WithLabelValues(method, code).Observe(seconds)
}

// RecordModelLoad records one model load.
func RecordModelLoad(model, device string, seconds float64) {
	ModelLoadsTotal.WithLabelValues(model, device).Inc()
	ModelLoadSeconds.Set(seconds)
}

// RecordInferenceBatch records the number of windows of a forward pass
func RecordInferenceBatch(windows int) {
	InferenceBatchSize.Observe(float64(windows))
}

// RecordInferenceLatency records the latency of a forward pass
func RecordInferenceLatency(seconds float64) {
	InferenceLatencySeconds.Observe(seconds)
}

// RecordCacheLookups adds hits, misses and errors to the cache lookup counters.
func RecordCacheLookups(hits, misses, errs int) {
	ScoreCacheLookups.WithLabelValues("hit").Add(float64(hits))
	ScoreCacheLookups.WithLabelValues("miss").Add(float64(misses))
	ScoreCacheLookups.WithLabelValues("error").Add(float64(errs))
}

// SetHealthy sets the health status to healthy
func SetHealthy() {
	HealthStatus.Set(1)
}

// SetUnhealthy sets the health status to unhealthy
func SetUnhealthy() {
	HealthStatus.Set(0)
}
