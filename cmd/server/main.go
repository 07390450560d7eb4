// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

// Cardstock serves Magic: The Gathering SKU catalog and price lookups from
// in-memory snapshots that refresh themselves from the upstream providers.
//
// Startup order:
//
//  1. Load configuration (defaults, optional YAML file, environment).
//  2. Initialize structured logging.
//  3. Open the snapshot database when persistence is enabled, and restore
//     any persisted datasets so lookups work before the first fetch.
//  4. Build the per-dataset refresh pipelines: rate-limited HTTP fetcher,
//     circuit breaker, transform, store.
//  5. Assemble the lookup engine and the HTTP API around it.
//  6. Run the HTTP server and the optional background refresh tickers under
//     a supervisor tree until SIGINT or SIGTERM.
//
// Lookups never block on upstream fetches. A stale or empty dataset triggers
// a background refresh while the request is answered from whatever snapshot
// exists, so a slow provider degrades freshness rather than availability.
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/tcgtools/cardstock/internal/api"
	"github.com/tcgtools/cardstock/internal/config"
	"github.com/tcgtools/cardstock/internal/dataset"
	"github.com/tcgtools/cardstock/internal/logging"
	"github.com/tcgtools/cardstock/internal/lookup"
	"github.com/tcgtools/cardstock/internal/metrics"
	"github.com/tcgtools/cardstock/internal/models"
	"github.com/tcgtools/cardstock/internal/refresh"
	"github.com/tcgtools/cardstock/internal/snapshot"
	"github.com/tcgtools/cardstock/internal/supervisor"
	"github.com/tcgtools/cardstock/internal/supervisor/services"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("version", version).
		Str("catalog_url", cfg.Catalog.URL).
		Str("prices_url", cfg.Prices.URL).
		Bool("snapshot_enabled", cfg.Snapshot.Enabled).
		Msg("Starting Cardstock")

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	var persister *snapshot.Persister
	if cfg.Snapshot.Enabled {
		persister, err = snapshot.Open(cfg.Snapshot.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Snapshot.Path).Msg("Failed to open snapshot database")
		}
		defer func() {
			if err := persister.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing snapshot database")
			}
		}()
		logging.Info().Str("path", cfg.Snapshot.Path).Msg("Snapshot persistence enabled")
	}

	catalogStore := dataset.NewStore[models.SkuRecord]("catalog", cfg.Catalog.TTL)
	pricesStore := dataset.NewStore[models.PriceRecord]("prices", cfg.Prices.TTL)

	// TCGplayer requires OAuth client credentials; MTGJSON is unauthenticated.
	var catalogTokens refresh.TokenSource
	if cfg.Catalog.PublicKey != "" && cfg.Catalog.PrivateKey != "" {
		catalogTokens = refresh.NewClientCredentials(cfg.Catalog.TokenURL, cfg.Catalog.PublicKey, cfg.Catalog.PrivateKey)
	} else {
		logging.Warn().Msg("No TCGplayer credentials configured, catalog fetches will be unauthenticated")
	}

	catalogFetcher := refresh.NewBreakerFetcher("catalog",
		refresh.NewHTTPFetcher("catalog", &cfg.Catalog, catalogTokens))
	pricesFetcher := refresh.NewBreakerFetcher("prices",
		refresh.NewHTTPFetcher("prices", &cfg.Prices, nil))

	catalog := refresh.NewCoordinator(catalogStore, catalogFetcher, refresh.TransformCatalog, persister, cfg.Catalog.FetchTimeout)
	prices := refresh.NewCoordinator(pricesStore, pricesFetcher, refresh.TransformPrices, persister, cfg.Prices.FetchTimeout)

	catalog.LoadPersisted()
	prices.LoadPersisted()

	if cfg.Catalog.RefreshOnStart {
		catalog.EnsureFresh()
	}
	if cfg.Prices.RefreshOnStart {
		prices.EnsureFresh()
	}

	engine := lookup.NewEngine(catalog, prices)
	handler := api.NewHandler(engine, version)
	router := api.NewRouter(handler, &cfg.Server)

	treeConfig := supervisor.DefaultTreeConfig()
	treeConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeConfig)

	tree.Add(services.NewHTTPService(router, &cfg.Server))
	if cfg.Catalog.RefreshInterval > 0 {
		tree.Add(services.NewRefreshService("catalog", catalog, cfg.Catalog.RefreshInterval, false))
	}
	if cfg.Prices.RefreshInterval > 0 {
		tree.Add(services.NewRefreshService("prices", prices, cfg.Prices.RefreshInterval, false))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
	}
	logging.Info().Msg("Cardstock stopped")
}
