// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

// Package refresh coordinates dataset refreshes: fetching upstream payloads,
// transforming them into lookup-ready records and publishing them to the
// dataset stores. Exactly one refresh per dataset runs at a time; callers on
// the lookup path never wait for one.
package refresh

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tcgtools/cardstock/internal/config"
	"github.com/tcgtools/cardstock/internal/logging"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics. Prevents unbounded memory allocation on large error pages.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB).
// Returns the body content or a placeholder message if reading fails.
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// Fetcher retrieves one dataset's raw upstream payload.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// TokenSource supplies an Authorization bearer token for upstreams that
// require one. Implementations must be safe for concurrent use.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// HTTPFetcher downloads a dataset document over HTTP with upstream rate
// limiting and exponential backoff on HTTP 429 (1s, 2s, 4s, 8s, 16s,
// honoring Retry-After). Dataset documents run to hundreds of megabytes, so
// the client timeout comes from the dataset's fetch_timeout rather than a
// per-request default.
type HTTPFetcher struct {
	name           string
	url            string
	client         *http.Client
	limiter        *rate.Limiter
	tokens         TokenSource
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewHTTPFetcher creates a fetcher for the named dataset. tokens may be nil
// for unauthenticated upstreams.
func NewHTTPFetcher(name string, cfg *config.DatasetConfig, tokens TokenSource) *HTTPFetcher {
	rl := cfg.RateLimit
	if rl <= 0 {
		rl = 10
	}
	return &HTTPFetcher{
		name: name,
		url:  cfg.URL,
		client: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		limiter:        rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl)), 1),
		tokens:         tokens,
		maxRetries:     5,
		retryBaseDelay: 1 * time.Second,
	}
}

// Fetch downloads the full dataset document.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	resp, err := f.doRequestWithRateLimit(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("%s upstream returned HTTP %d: %s", f.name, resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response body: %w", f.name, err)
	}

	logging.Debug().
		Str("dataset", f.name).
		Int("bytes", len(body)).
		Msg("Upstream payload fetched")
	return body, nil
}

// doRequestWithRateLimit performs the HTTP request with automatic retry on
// HTTP 429. The context is used for cancellation during backoff waits.
func (f *HTTPFetcher) doRequestWithRateLimit(ctx context.Context) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if f.tokens != nil {
			token, err := f.tokens.Token(ctx)
			if err != nil {
				return nil, fmt.Errorf("acquire %s token: %w", f.name, err)
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == f.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", f.maxRetries)
			break
		}

		// Exponential backoff: 1s, 2s, 4s, 8s, 16s
		delay := f.retryBaseDelay * time.Duration(1<<uint(attempt))

		// Honor Retry-After (RFC 6585) when the upstream names a delay.
		// Only the delta-seconds form is parsed; the HTTP-date form falls
		// through to the exponential backoff above.
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}
