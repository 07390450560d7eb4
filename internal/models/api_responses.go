// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

package models

import "time"

// APIResponse is the standardized envelope used by every HTTP endpoint.
//
// Status is "success" or "error". Data carries the payload on success; Error
// is populated only on failure. Metadata is always present so clients and
// monitoring can see when and from how fresh a snapshot the response was
// produced.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability. Stale is set when
// the answering snapshot was past its TTL (the data is still served; see the
// stale-preferred-over-absent policy).
type Metadata struct {
	Timestamp time.Time  `json:"timestamp"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
	Stale     bool       `json:"stale,omitempty"`
}

// APIError is a structured error payload.
//
// Common codes:
//   - VALIDATION_ERROR: invalid request parameters or body
//   - NOT_FOUND: key absent from the dataset
//   - DATASET_UNAVAILABLE: dataset has never successfully refreshed
//   - REFRESH_IN_PROGRESS: forced refresh rejected by single-flight
//   - UNAUTHORIZED: missing or wrong API token
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// HealthStatus is the payload of the health endpoint.
type HealthStatus struct {
	Status        string          `json:"status"` // "healthy" or "degraded"
	Version       string          `json:"version"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	Datasets      []DatasetStatus `json:"datasets"`
}
