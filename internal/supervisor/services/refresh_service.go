// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

package services

import (
	"context"
	"time"

	"github.com/tcgtools/cardstock/internal/logging"
)

// Freshener is the slice of the refresh coordinator this service needs.
type Freshener interface {
	EnsureFresh()
}

// RefreshService proactively keeps one dataset fresh by ticking EnsureFresh.
// EnsureFresh applies the same staleness check the lookup path uses and never
// fetches when the data is fresh, so the ticker only shifts refresh cost off
// the first post-expiry request; observable behavior is unchanged.
type RefreshService struct {
	name        string
	coordinator Freshener
	interval    time.Duration
	warmOnStart bool
}

// NewRefreshService creates the ticker service for the named dataset.
// warmOnStart triggers one check immediately rather than waiting a full
// interval.
func NewRefreshService(name string, coordinator Freshener, interval time.Duration, warmOnStart bool) *RefreshService {
	return &RefreshService{
		name:        name,
		coordinator: coordinator,
		interval:    interval,
		warmOnStart: warmOnStart,
	}
}

// Serve implements suture.Service.
func (s *RefreshService) Serve(ctx context.Context) error {
	logging.Info().
		Str("dataset", s.name).
		Dur("interval", s.interval).
		Msg("Background refresh service started")

	if s.warmOnStart {
		s.coordinator.EnsureFresh()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.coordinator.EnsureFresh()
		case <-ctx.Done():
			logging.Info().Str("dataset", s.name).Msg("Background refresh service stopped")
			return ctx.Err()
		}
	}
}

// String names the service in supervision logs.
func (s *RefreshService) String() string {
	return s.name + "-refresher"
}
