// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

// Package api implements the HTTP boundary: request parsing and validation,
// the response envelope, middleware and routing. All domain decisions live in
// the lookup engine; handlers only translate between HTTP and the engine's
// vocabulary.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tcgtools/cardstock/internal/logging"
	"github.com/tcgtools/cardstock/internal/lookup"
	"github.com/tcgtools/cardstock/internal/models"
	"github.com/tcgtools/cardstock/internal/normalize"
)

// maxBulkBodySize caps bulk request bodies at 1MB. 500 UUIDs fit comfortably.
const maxBulkBodySize = 1 << 20

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	engine    *lookup.Engine
	version   string
	startTime time.Time
}

// NewHandler creates a Handler backed by the lookup engine.
func NewHandler(engine *lookup.Engine, version string) *Handler {
	return &Handler{
		engine:    engine,
		version:   version,
		startTime: time.Now(),
	}
}

// bulkRequest is the body of all three bulk lookup endpoints. Filter fields
// accept any alias form; they are normalized before reaching the engine.
type bulkRequest struct {
	UUIDs      []string `json:"uuids" validate:"required,min=1,max=500,dive,required"`
	Conditions []string `json:"conditions" validate:"omitempty,max=10"`
	Printings  []string `json:"printings" validate:"omitempty,max=10"`
	Provider   string   `json:"provider"`
	Kind       string   `json:"kind" validate:"omitempty,oneof=retail buylist"`
}

func (b *bulkRequest) filters() models.Filters {
	f := models.Filters{
		Conditions: normalize.Conditions(b.Conditions),
		Printings:  normalize.Printings(b.Printings),
	}
	if b.Provider != "" {
		f.Provider = normalize.ProviderOf(b.Provider)
	}
	if b.Kind != "" {
		f.Kind = models.PriceKindOf(b.Kind)
	}
	return f
}

// decodeBulkRequest parses and validates a bulk request body.
func decodeBulkRequest(w http.ResponseWriter, r *http.Request) (*bulkRequest, bool) {
	var req bulkRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBulkBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request body must be valid JSON", err)
		return nil, false
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error:    apiErr,
		})
		return nil, false
	}
	return &req, true
}

// GetSku handles GET /api/v1/sku/{uuid}.
func (h *Handler) GetSku(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	result := h.engine.LookupSku(uuid, filtersFromQuery(r.URL.Query()))

	status, apiErr := outcomeStatus(result.Outcome)
	if apiErr != nil {
		respondError(w, status, apiErr.Code, apiErr.Message, nil)
		return
	}
	respondSuccess(w, status, result, h.engine.CatalogInfo())
}

// GetPrice handles GET /api/v1/price/{uuid}.
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	result := h.engine.LookupPrice(uuid, filtersFromQuery(r.URL.Query()))

	status, apiErr := outcomeStatus(result.Outcome)
	if apiErr != nil {
		respondError(w, status, apiErr.Code, apiErr.Message, nil)
		return
	}
	respondSuccess(w, status, result, h.engine.PricesInfo())
}

// GetCombined handles GET /api/v1/combined/{uuid}. The combined outcome
// follows the catalog side, so an unpriced card still answers 200.
func (h *Handler) GetCombined(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	result := h.engine.LookupCombined(uuid, filtersFromQuery(r.URL.Query()))

	status, apiErr := outcomeStatus(result.Outcome)
	if apiErr != nil {
		respondError(w, status, apiErr.Code, apiErr.Message, nil)
		return
	}
	respondSuccess(w, status, result, h.engine.CatalogInfo())
}

// BulkSku handles POST /api/v1/sku/bulk. Bulk responses are always 200; each
// item carries its own outcome, and results hold the request order.
func (h *Handler) BulkSku(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBulkRequest(w, r)
	if !ok {
		return
	}
	results := h.engine.BulkSku(req.UUIDs, req.filters())
	respondSuccess(w, http.StatusOK, results, h.engine.CatalogInfo())
}

// BulkPrice handles POST /api/v1/price/bulk.
func (h *Handler) BulkPrice(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBulkRequest(w, r)
	if !ok {
		return
	}
	results := h.engine.BulkPrice(req.UUIDs, req.filters())
	respondSuccess(w, http.StatusOK, results, h.engine.PricesInfo())
}

// BulkCombined handles POST /api/v1/combined/bulk.
func (h *Handler) BulkCombined(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBulkRequest(w, r)
	if !ok {
		return
	}
	results := h.engine.BulkCombined(req.UUIDs, req.filters())
	respondSuccess(w, http.StatusOK, results, h.engine.CatalogInfo())
}

// CacheStatus handles GET /api/v1/cache/status.
func (h *Handler) CacheStatus(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.engine.Status(), lookup.SnapshotInfo{})
}

// CacheRefresh handles POST /api/v1/cache/refresh/{dataset}. The refresh runs
// synchronously; a concurrent refresh yields 409 rather than a second fetch.
func (h *Handler) CacheRefresh(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "dataset")

	logging.Info().Str("dataset", sanitizeLogValue(name)).Msg("Forced refresh requested")

	result, known := h.engine.ForceRefresh(r.Context(), name)
	switch {
	case !known:
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown dataset: "+sanitizeLogValue(name), nil)
	case result.AlreadyRunning:
		respondJSON(w, http.StatusConflict, &models.APIResponse{
			Status:   "error",
			Data:     result,
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error: &models.APIError{
				Code:    "REFRESH_IN_PROGRESS",
				Message: "a refresh for this dataset is already running",
			},
		})
	case !result.Success:
		respondJSON(w, http.StatusBadGateway, &models.APIResponse{
			Status:   "error",
			Data:     result,
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error: &models.APIError{
				Code:    "REFRESH_FAILED",
				Message: result.Error,
			},
		})
	default:
		respondSuccess(w, http.StatusOK, result, lookup.SnapshotInfo{})
	}
}

// Health handles GET /api/v1/health: overall status plus per-dataset detail.
// The service is degraded, not down, while a dataset has never loaded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	datasets := h.engine.Status()
	status := "healthy"
	for _, d := range datasets {
		if d.LastUpdated == nil {
			status = "degraded"
			break
		}
	}

	respondSuccess(w, http.StatusOK, models.HealthStatus{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Datasets:      datasets,
	}, lookup.SnapshotInfo{})
}

// HealthLive handles GET /api/v1/health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"}, lookup.SnapshotInfo{})
}

// HealthReady handles GET /api/v1/health/ready. The service is ready once the
// catalog dataset has data, whether from a refresh or a restored snapshot. A
// stale catalog still counts as ready; staleness degrades freshness, not
// availability.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if info := h.engine.CatalogInfo(); !info.OK {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "catalog dataset not yet available", nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "ready"}, lookup.SnapshotInfo{})
}
