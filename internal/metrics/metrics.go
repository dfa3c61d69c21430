// Package metrics provides Prometheus metrics for the pullquest console.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the console.
type Metrics struct {
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	SubmissionsTotal   *prometheus.CounterVec
	GateDecisionsTotal *prometheus.CounterVec
	LookupsTotal       *prometheus.CounterVec
	RewardsTotal       *prometheus.CounterVec
	PendingIngests     prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pullquest_api_requests_total",
				Help: "Total outbound API calls by service, endpoint and status.",
			},
			[]string{"service", "endpoint", "status"},
		),
		APIRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pullquest_api_request_duration_seconds",
				Help:    "Outbound API call duration by service and endpoint.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "endpoint"},
		),
		SubmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pullquest_issue_submissions_total",
				Help: "Issue submissions by outcome.",
			},
			[]string{"outcome"},
		),
		GateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pullquest_gate_decisions_total",
				Help: "Authorization gate decisions by result.",
			},
			[]string{"result"},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pullquest_related_issue_lookups_total",
				Help: "Related-issue lookups by result.",
			},
			[]string{"result"},
		),
		RewardsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pullquest_rewards_total",
				Help: "Computed merge rewards by level.",
			},
			[]string{"level"},
		),
		PendingIngests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pullquest_pending_ingests",
				Help: "Issues created upstream whose ingestion has not completed.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.APIRequestsTotal)
	reg.MustRegister(m.APIRequestDuration)
	reg.MustRegister(m.SubmissionsTotal)
	reg.MustRegister(m.GateDecisionsTotal)
	reg.MustRegister(m.LookupsTotal)
	reg.MustRegister(m.RewardsTotal)
	reg.MustRegister(m.PendingIngests)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// All recorders are nil-safe so components can run without metrics.

// RecordAPICall counts an outbound call and records its duration.
func (m *Metrics) RecordAPICall(service, endpoint, status string, seconds float64) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.WithLabelValues(service, endpoint, status).Inc()
	m.APIRequestDuration.WithLabelValues(service, endpoint).Observe(seconds)
}

// RecordSubmission counts an issue submission outcome.
func (m *Metrics) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordGateDecision counts an admission decision.
func (m *Metrics) RecordGateDecision(result string) {
	if m == nil {
		return
	}
	m.GateDecisionsTotal.WithLabelValues(result).Inc()
}

// RecordLookup counts a related-issue lookup.
func (m *Metrics) RecordLookup(result string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(result).Inc()
}

// RecordReward counts a computed reward level.
func (m *Metrics) RecordReward(level string) {
	if m == nil {
		return
	}
	m.RewardsTotal.WithLabelValues(level).Inc()
}

// SetPendingIngests sets the pending ingest count.
func (m *Metrics) SetPendingIngests(count float64) {
	if m == nil {
		return
	}
	m.PendingIngests.Set(count)
}
