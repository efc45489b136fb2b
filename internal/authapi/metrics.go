/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authapi

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsLabelMethod        = "method"
	metricsLabelRoutePattern  = "route_pattern"
	metricsLabelStatusCode    = "status_code"
	metricsLabelErrorCode     = "code"
	metricsLabelVerifyOutcome = "outcome"
)

// Outcomes of credential verification requests.
const (
	VerifyOutcomeMatch    = "match"
	VerifyOutcomeMismatch = "mismatch"
	VerifyOutcomeLimited  = "limited"
	VerifyOutcomeError    = "error"
)

// DefaultRequestDurationBuckets is default buckets into which observations of serving HTTP requests are counted.
var DefaultRequestDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// MetricsOpts represents options for Metrics.
type MetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// DurationBuckets is a list of buckets into which observations of serving HTTP requests are counted.
	DurationBuckets []float64

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// Metrics represents Prometheus metrics of the HTTP API.
type Metrics struct {
	RequestDurations *prometheus.HistogramVec
	ResponseErrors   *prometheus.CounterVec
	Verifications    *prometheus.CounterVec
}

// NewMetrics creates a new instance of Metrics with default options.
func NewMetrics() *Metrics {
	return NewMetricsWithOpts(MetricsOpts{})
}

// NewMetricsWithOpts creates a new instance of Metrics with the provided options.
func NewMetricsWithOpts(opts MetricsOpts) *Metrics {
	durBuckets := opts.DurationBuckets
	if durBuckets == nil {
		durBuckets = DefaultRequestDurationBuckets
	}
	return &Metrics{
		RequestDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "http_request_duration_seconds",
			Help:        "A histogram of the HTTP request durations.",
			Buckets:     durBuckets,
			ConstLabels: opts.ConstLabels,
		}, []string{metricsLabelMethod, metricsLabelRoutePattern, metricsLabelStatusCode}),
		ResponseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "http_response_errors_total",
			Help:        "The total number of API errors that were responded.",
			ConstLabels: opts.ConstLabels,
		}, []string{metricsLabelErrorCode}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "credential_verifications_total",
			Help:        "The total number of credential verification requests by outcome.",
			ConstLabels: opts.ConstLabels,
		}, []string{metricsLabelVerifyOutcome}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (m *Metrics) MustRegister() {
	prometheus.MustRegister(m.collectors()...)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (m *Metrics) Unregister() {
	for _, c := range m.collectors() {
		prometheus.Unregister(c)
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.RequestDurations, m.ResponseErrors, m.Verifications}
}

func (m *Metrics) observeRequest(method, routePattern string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestDurations.With(prometheus.Labels{
		metricsLabelMethod:       method,
		metricsLabelRoutePattern: routePattern,
		metricsLabelStatusCode:   strconv.Itoa(status),
	}).Observe(elapsed.Seconds())
}

func (m *Metrics) incResponseErrors(apiErr *Error) {
	if m == nil {
		return
	}
	m.ResponseErrors.WithLabelValues(apiErr.Code).Inc()
}

func (m *Metrics) incVerifications(outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}
