// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tcgtools/cardstock/internal/logging"
	"github.com/tcgtools/cardstock/internal/lookup"
	"github.com/tcgtools/cardstock/internal/models"
	"github.com/tcgtools/cardstock/internal/normalize"
	"github.com/tcgtools/cardstock/internal/validation"
)

// sanitizeLogValue removes control characters from strings to prevent log
// injection: newlines, carriage returns and other control characters could
// otherwise forge log entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Vary", "Accept-Encoding")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", generateETag(data))

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// generateETag creates a simple ETag from data using FNV-1a hash.
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return strconv.FormatUint(uint64(hash), 16)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Data:   nil,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondSuccess sends a success envelope carrying data and the snapshot
// metadata of the dataset that answered.
func respondSuccess(w http.ResponseWriter, status int, data interface{}, info lookup.SnapshotInfo) {
	md := models.Metadata{Timestamp: time.Now()}
	if info.OK {
		fetched := info.FetchedAt
		md.FetchedAt = &fetched
		md.Stale = info.Stale
	}
	respondJSON(w, status, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: md,
	})
}

// validateRequest validates a struct and translates failures into the
// VALIDATION_ERROR response shape.
func validateRequest(v interface{}) *models.APIError {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return nil
	}
	apiErr := verr.ToAPIError()
	return &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// filtersFromQuery builds lookup filters from query parameters. Repeatable
// condition/printing parameters become filter lists; all values are accepted
// in any alias form and normalized here, so the engine only sees canonical
// vocabulary.
func filtersFromQuery(q url.Values) models.Filters {
	f := models.Filters{
		Conditions: normalize.Conditions(q["condition"]),
		Printings:  normalize.Printings(q["printing"]),
	}
	if provider := q.Get("provider"); provider != "" {
		f.Provider = normalize.ProviderOf(provider)
	}
	if kind := q.Get("kind"); kind != "" {
		f.Kind = models.PriceKindOf(kind)
	}
	return f
}

// outcomeStatus maps a point-lookup outcome to its HTTP status. no_match is
// a successful answer carrying diagnostics, not an error.
func outcomeStatus(outcome models.Outcome) (int, *models.APIError) {
	switch outcome {
	case models.OutcomeUnavailable:
		return http.StatusServiceUnavailable, &models.APIError{
			Code:    "DATASET_UNAVAILABLE",
			Message: "dataset has not completed an initial refresh yet",
		}
	case models.OutcomeNotFound:
		return http.StatusNotFound, &models.APIError{
			Code:    "NOT_FOUND",
			Message: "no entry for the requested uuid",
		}
	default:
		return http.StatusOK, nil
	}
}
