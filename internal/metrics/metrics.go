// Package metrics provides Prometheus metrics for tweetsmith
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay stream outcomes.
const (
	OutcomeCompleted         = "completed"
	OutcomeFailedBeforeFirst = "failed_before_first_fragment"
	OutcomeFailedMidStream   = "failed_mid_stream"
)

// Metrics holds all Prometheus metrics for tweetsmith. A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RelayStreamsTotal   *prometheus.CounterVec
	RelayFragmentsTotal prometheus.Counter

	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tweetsmith_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tweetsmith_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	m.RelayStreamsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tweetsmith_relay_streams_total",
			Help: "Completion streams by terminal outcome",
		},
		[]string{"outcome"},
	)

	m.RelayFragmentsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "tweetsmith_relay_fragments_total",
			Help: "Text fragments relayed from the LLM provider",
		},
	)

	m.StoreOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tweetsmith_store_operations_total",
			Help: "Object store operations",
		},
		[]string{"operation", "status"},
	)

	m.StoreOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tweetsmith_store_operation_duration_seconds",
			Help:    "Duration of object store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	return m
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordStream records the terminal outcome of a completion stream.
func (m *Metrics) RecordStream(outcome string) {
	if m == nil {
		return
	}
	m.RelayStreamsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordFragment() {
	if m == nil {
		return
	}
	m.RelayFragmentsTotal.Inc()
}

// RecordStoreOperation records an object store call.
func (m *Metrics) RecordStoreOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
