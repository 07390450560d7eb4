// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

package refresh

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tcgtools/cardstock/internal/logging"
)

// tokenExpirySlack is subtracted from the reported token lifetime so a token
// is never used within a minute of its expiry.
const tokenExpirySlack = time.Minute

// ClientCredentials implements TokenSource via the OAuth client-credentials
// grant used by the TCGplayer API. Tokens are cached until shortly before
// expiry; concurrent callers share one exchange.
type ClientCredentials struct {
	tokenURL   string
	publicKey  string
	privateKey string
	client     *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClientCredentials creates a token source for the given token endpoint.
func NewClientCredentials(tokenURL, publicKey, privateKey string) *ClientCredentials {
	return &ClientCredentials{
		tokenURL:   tokenURL,
		publicKey:  publicKey,
		privateKey: privateKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns a valid access token, exchanging credentials if the cached
// one is missing or about to expire.
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.publicKey)
	form.Set("client_secret", c.privateKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return "", fmt.Errorf("token endpoint returned HTTP %d: %s", resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access_token")
	}

	c.token = tr.AccessToken
	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime > tokenExpirySlack {
		lifetime -= tokenExpirySlack
	}
	c.expires = time.Now().Add(lifetime)

	logging.Debug().
		Time("expires", c.expires).
		Msg("Access token refreshed")
	return c.token, nil
}
