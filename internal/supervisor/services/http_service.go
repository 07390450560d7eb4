// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

// Package services adapts Cardstock's long-running components to suture's
// Serve(ctx) lifecycle.
package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tcgtools/cardstock/internal/config"
	"github.com/tcgtools/cardstock/internal/logging"
)

// HTTPService runs the API server as a supervised service.
type HTTPService struct {
	server          *http.Server
	addr            string
	shutdownTimeout time.Duration
}

// NewHTTPService builds the http.Server around the assembled router.
func NewHTTPService(router http.Handler, cfg *config.ServerConfig) *HTTPService {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	return &HTTPService{
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		addr:            addr,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Serve implements suture.Service. It blocks until the server fails or the
// context is canceled, then drains in-flight requests.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.addr).Msg("HTTP server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	logging.Info().Msg("HTTP server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// String names the service in supervision logs.
func (s *HTTPService) String() string {
	return "http-server"
}
