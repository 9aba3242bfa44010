// Package metrics provides Prometheus metrics for the tracker agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the tracker.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
	DispatchBatchSize prometheus.Histogram
	RequestDuration   *prometheus.HistogramVec
	ErrorsTotal       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackd_operations_total",
				Help: "Total remote operations by kind and outcome.",
			},
			[]string{"kind", "status"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "trackd_result_queue_depth",
				Help: "Messages waiting in the result queue.",
			},
		),
		DispatchBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trackd_dispatch_batch_size",
				Help:    "Messages drained per dispatcher tick.",
				Buckets: []float64{0, 1, 2, 5, 10},
			},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trackd_api_request_duration_seconds",
				Help:    "Management API request duration by endpoint.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackd_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.OperationsTotal)
	reg.MustRegister(m.QueueDepth)
	reg.MustRegister(m.DispatchBatchSize)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOperation increments the operation counter.
func (m *Metrics) RecordOperation(kind, status string) {
	m.OperationsTotal.WithLabelValues(kind, status).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}

// SetQueueDepth records the current result queue depth.
func (m *Metrics) SetQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}

// ObserveBatch records the size of one dispatched batch.
func (m *Metrics) ObserveBatch(n int) {
	m.DispatchBatchSize.Observe(float64(n))
}

// ObserveDuration records a management API request duration.
func (m *Metrics) ObserveDuration(endpoint string, seconds float64) {
	m.RequestDuration.WithLabelValues(endpoint).Observe(seconds)
}
