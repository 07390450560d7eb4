// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

// Package metrics provides Prometheus instrumentation for Cardstock:
// dataset refresh outcomes, snapshot persistence, lookup results, circuit
// breaker state and API request latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Refresh Metrics
	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataset_refresh_duration_seconds",
			Help:    "Duration of dataset refresh operations in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600}, // Catalog refreshes can take minutes
		},
		[]string{"dataset"},
	)

	RefreshErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_refresh_errors_total",
			Help: "Total number of failed dataset refreshes",
		},
		[]string{"dataset", "error_type"}, // error_type: "fetch", "parse", "transform"
	)

	RefreshSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_refresh_skipped_total",
			Help: "Total number of refresh attempts skipped because one was already in flight",
		},
		[]string{"dataset"},
	)

	RefreshLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dataset_refresh_last_success_timestamp",
			Help: "Unix timestamp of the last successful refresh per dataset",
		},
		[]string{"dataset"},
	)

	DatasetEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dataset_entries",
			Help: "Current number of entries in each dataset snapshot",
		},
		[]string{"dataset"},
	)

	StaleServes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_stale_serves_total",
			Help: "Total number of lookups answered from a stale snapshot",
		},
		[]string{"dataset"},
	)

	// Lookup Metrics
	LookupRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_requests_total",
			Help: "Total number of lookup requests by dataset and outcome",
		},
		[]string{"dataset", "outcome"}, // outcome: "match", "no_match", "not_found", "unavailable"
	)

	LookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lookup_duration_seconds",
			Help:    "Lookup execution duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1}, // In-memory map navigation
		},
		[]string{"dataset"},
	)

	// Snapshot Persistence Metrics
	SnapshotPersists = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_persists_total",
			Help: "Total number of snapshot persist operations",
		},
		[]string{"dataset", "result"}, // result: "success", "failure"
	)

	SnapshotLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_loads_total",
			Help: "Total number of snapshot load operations at startup",
		},
		[]string{"dataset", "result"}, // result: "success", "failure", "absent"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordRefresh records the outcome of a dataset refresh.
func RecordRefresh(dataset string, duration time.Duration, entries int, err error, errType string) {
	RefreshDuration.WithLabelValues(dataset).Observe(duration.Seconds())
	if err != nil {
		if errType == "" {
			errType = "unknown"
		}
		RefreshErrors.WithLabelValues(dataset, errType).Inc()
		return
	}
	RefreshLastSuccess.WithLabelValues(dataset).Set(float64(time.Now().Unix()))
	DatasetEntries.WithLabelValues(dataset).Set(float64(entries))
}

// RecordLookup records a lookup request outcome.
func RecordLookup(dataset, outcome string, duration time.Duration) {
	LookupRequests.WithLabelValues(dataset, outcome).Inc()
	LookupDuration.WithLabelValues(dataset).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSnapshotPersist records a snapshot persist outcome.
func RecordSnapshotPersist(dataset string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	SnapshotPersists.WithLabelValues(dataset, result).Inc()
}

// RecordSnapshotLoad records a snapshot load outcome. absent is true when no
// snapshot existed for the dataset.
func RecordSnapshotLoad(dataset string, err error, absent bool) {
	result := "success"
	switch {
	case absent:
		result = "absent"
	case err != nil:
		result = "failure"
	}
	SnapshotLoads.WithLabelValues(dataset, result).Inc()
}
