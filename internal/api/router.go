// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tcgtools/cardstock/internal/config"
)

// NewRouter assembles the HTTP routing tree.
//
// Health endpoints stay unauthenticated with their own generous rate limit so
// orchestrator probes never compete with lookup traffic. /metrics is served
// outside /api/v1 and outside auth, matching the usual Prometheus scrape
// setup.
func NewRouter(handler *Handler, cfg *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(cfg))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(rateLimit(cfg.RateLimitHealth))
		r.Use(securityHeaders)
		r.Get("/", handler.Health)
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(cfg.RateLimitLookup))
		r.Use(securityHeaders)
		r.Use(prometheusMetrics)
		r.Use(bearerAuth(cfg.APIToken))

		r.Get("/sku/{uuid}", handler.GetSku)
		r.Get("/price/{uuid}", handler.GetPrice)
		r.Get("/combined/{uuid}", handler.GetCombined)

		r.Post("/sku/bulk", handler.BulkSku)
		r.Post("/price/bulk", handler.BulkPrice)
		r.Post("/combined/bulk", handler.BulkCombined)

		r.Get("/cache/status", handler.CacheStatus)
		r.Post("/cache/refresh/{dataset}", handler.CacheRefresh)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
