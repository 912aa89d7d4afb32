// Package metrics exports registry operation metrics to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"provcore/internal/core"
)

// Recorder implements the service metrics seam on a dedicated
// Prometheus registry so the scrape surface carries only registry
// series.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

var _ core.MetricsRecorder = (*Recorder)(nil)

// NewRecorder builds a recorder with its collectors registered.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "provcore",
		Subsystem: "registry",
		Name:      "operations_total",
		Help:      "Registry operations by name and outcome.",
	}, []string{"operation", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "provcore",
		Subsystem: "registry",
		Name:      "operation_duration_seconds",
		Help:      "Registry operation latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	registry.MustRegister(operations, duration)
	return &Recorder{
		registry:   registry,
		operations: operations,
		duration:   duration,
	}
}

// Observe records one completed operation.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Registry exposes the underlying Prometheus registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler returns the scrape endpoint for this recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
