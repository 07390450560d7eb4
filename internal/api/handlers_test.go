// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tcgtools/cardstock/internal/config"
	"github.com/tcgtools/cardstock/internal/dataset"
	"github.com/tcgtools/cardstock/internal/lookup"
	"github.com/tcgtools/cardstock/internal/models"
	"github.com/tcgtools/cardstock/internal/normalize"
	"github.com/tcgtools/cardstock/internal/refresh"
)

// staticFetcher returns a fixed payload, for exercising the forced-refresh
// endpoint without a real upstream.
type staticFetcher struct {
	payload []byte
	err     error
}

func (s staticFetcher) Fetch(ctx context.Context) ([]byte, error) {
	return s.payload, s.err
}

type testEnv struct {
	server  *httptest.Server
	catalog *dataset.Store[models.SkuRecord]
	prices  *dataset.Store[models.PriceRecord]
}

func newTestEnv(t *testing.T, cfg *config.ServerConfig) *testEnv {
	return newTestEnvWithFetchers(t, cfg,
		staticFetcher{payload: []byte(`{"results":[{"uuid":"fresh-1","name":"Fresh Card","skus":[{"skuId":1,"condition":"nm","printing":"normal"}]}]}`)},
		staticFetcher{err: errors.New("prices upstream down")})
}

func newTestEnvWithFetchers(t *testing.T, cfg *config.ServerConfig, catalogFetcher, pricesFetcher refresh.Fetcher) *testEnv {
	t.Helper()

	catalogStore := dataset.NewStore[models.SkuRecord]("catalog", time.Hour)
	pricesStore := dataset.NewStore[models.PriceRecord]("prices", time.Hour)

	catalogCoord := refresh.NewCoordinator(catalogStore, catalogFetcher,
		refresh.TransformCatalog, nil, time.Second)
	pricesCoord := refresh.NewCoordinator(pricesStore, pricesFetcher,
		refresh.TransformPrices, nil, time.Second)

	engine := lookup.NewEngine(catalogCoord, pricesCoord)
	handler := NewHandler(engine, "test")

	if cfg == nil {
		cfg = &config.ServerConfig{
			CORSOrigins:     []string{"*"},
			RateLimitLookup: 10000,
			RateLimitHealth: 10000,
		}
	}

	srv := httptest.NewServer(NewRouter(handler, cfg))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, catalog: catalogStore, prices: pricesStore}
}

func (env *testEnv) seed() {
	env.catalog.Publish(map[string]models.SkuRecord{
		"abc-123": {
			UUID: "abc-123",
			Name: "Lightning Bolt",
			Variants: []models.SkuVariant{
				{Condition: normalize.NearMint, Printing: normalize.Normal, Provider: normalize.TCGPlayer, SkuID: "9001"},
				{Condition: normalize.LightlyPlayed, Printing: normalize.Normal, Provider: normalize.TCGPlayer, SkuID: "9002"},
			},
		},
	}, time.Now())
	env.prices.Publish(map[string]models.PriceRecord{
		"abc-123": {
			UUID: "abc-123",
			Paper: map[normalize.Provider]models.ProviderPrices{
				normalize.TCGPlayer: {
					Retail: models.PriceTable{
						normalize.Normal: {normalize.NearMint: 1.50},
					},
				},
			},
		},
	}, time.Now())
}

func getJSON(t *testing.T, url string) (int, models.APIResponse) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, body
}

func postJSON(t *testing.T, url, payload string) (int, models.APIResponse) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, body
}

func TestGetSku(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed()

	status, body := getJSON(t, env.server.URL+"/api/v1/sku/abc-123?condition=Near%20Mint")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body.Status != "success" {
		t.Errorf("envelope status = %q", body.Status)
	}
	if body.Metadata.FetchedAt == nil {
		t.Error("metadata should carry fetched_at")
	}

	var result models.SkuLookup
	remarshal(t, body.Data, &result)
	if result.Outcome != models.OutcomeMatch || len(result.Matches) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Matches[0].SkuID != "9001" {
		t.Errorf("unexpected match: %+v", result.Matches[0])
	}
}

func TestGetSkuNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed()

	status, body := getJSON(t, env.server.URL+"/api/v1/sku/nope")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d", status)
	}
	if body.Error == nil || body.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestGetSkuUnavailable(t *testing.T) {
	env := newTestEnv(t, nil) // nothing seeded

	status, body := getJSON(t, env.server.URL+"/api/v1/price/abc-123")
	if status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", status)
	}
	if body.Error == nil || body.Error.Code != "DATASET_UNAVAILABLE" {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestGetSkuNoMatchIs200WithDiagnostics(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed()

	status, body := getJSON(t, env.server.URL+"/api/v1/sku/abc-123?printing=foil")
	if status != http.StatusOK {
		t.Fatalf("no_match must be 200, got %d", status)
	}
	var result models.SkuLookup
	remarshal(t, body.Data, &result)
	if result.Outcome != models.OutcomeNoMatch || result.Diagnostics == nil {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.Diagnostics.AvailablePrintings) != 1 {
		t.Errorf("diagnostics = %+v", result.Diagnostics)
	}
}

func TestGetPriceWithAliases(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed()

	// "NM" and "non-foil" arrive as aliases and still match.
	status, body := getJSON(t, env.server.URL+"/api/v1/price/abc-123?condition=NM&printing=non-foil&provider=tcg&kind=retail")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var result models.PriceLookup
	remarshal(t, body.Data, &result)
	if result.Outcome != models.OutcomeMatch || len(result.Matches) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Matches[0].Price != 1.50 {
		t.Errorf("price = %v", result.Matches[0].Price)
	}
}

func TestGetCombinedNullPrice(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed()
	// Add a catalog-only card.
	env.catalog.Publish(map[string]models.SkuRecord{
		"only-catalog": {
			UUID: "only-catalog",
			Variants: []models.SkuVariant{
				{Condition: normalize.NearMint, Printing: normalize.Normal, Provider: normalize.TCGPlayer, SkuID: "1"},
			},
		},
	}, time.Now())

	status, body := getJSON(t, env.server.URL+"/api/v1/combined/only-catalog")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var result models.CombinedLookup
	remarshal(t, body.Data, &result)
	if result.Outcome != models.OutcomeMatch {
		t.Errorf("outcome = %s", result.Outcome)
	}
	if result.Price != nil {
		t.Errorf("price should be null: %+v", result.Price)
	}
}

func TestBulkSkuPreservesOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed()

	status, body := postJSON(t, env.server.URL+"/api/v1/sku/bulk",
		`{"uuids": ["missing-1", "abc-123", "missing-2"]}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	var results []models.SkuLookup
	remarshal(t, body.Data, &results)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].UUID != "missing-1" || results[1].UUID != "abc-123" || results[2].UUID != "missing-2" {
		t.Errorf("order lost: %+v", results)
	}
	if results[0].Outcome != models.OutcomeNotFound || results[1].Outcome != models.OutcomeMatch {
		t.Errorf("unexpected outcomes: %s %s", results[0].Outcome, results[1].Outcome)
	}
}

func TestBulkValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed()

	status, body := postJSON(t, env.server.URL+"/api/v1/sku/bulk", `{"uuids": []}`)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d", status)
	}
	if body.Error == nil || body.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v", body.Error)
	}

	status, _ = postJSON(t, env.server.URL+"/api/v1/sku/bulk", `{not json`)
	if status != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d", status)
	}
}

func TestCacheStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed()

	status, body := getJSON(t, env.server.URL+"/api/v1/cache/status")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var statuses []models.DatasetStatus
	remarshal(t, body.Data, &statuses)
	if len(statuses) != 2 {
		t.Fatalf("expected 2 dataset statuses, got %d", len(statuses))
	}
	if statuses[0].Dataset != "catalog" || statuses[1].Dataset != "prices" {
		t.Errorf("unexpected datasets: %+v", statuses)
	}
}

func TestCacheRefresh(t *testing.T) {
	env := newTestEnv(t, nil)

	// The catalog coordinator's fetcher succeeds.
	status, body := postJSON(t, env.server.URL+"/api/v1/cache/refresh/catalog", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %+v", status, body)
	}
	var result models.RefreshResult
	remarshal(t, body.Data, &result)
	if !result.Success || result.ItemCount != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	// The prices coordinator's fetcher fails; refresh reports upstream error.
	status, body = postJSON(t, env.server.URL+"/api/v1/cache/refresh/prices", "")
	if status != http.StatusBadGateway {
		t.Fatalf("status = %d", status)
	}
	if body.Error == nil || body.Error.Code != "REFRESH_FAILED" {
		t.Errorf("error = %+v", body.Error)
	}

	// Unknown dataset.
	status, _ = postJSON(t, env.server.URL+"/api/v1/cache/refresh/bogus", "")
	if status != http.StatusNotFound {
		t.Errorf("unknown dataset status = %d", status)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := getJSON(t, env.server.URL+"/api/v1/health")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var hs models.HealthStatus
	remarshal(t, body.Data, &hs)
	if hs.Status != "degraded" {
		t.Errorf("empty datasets should report degraded, got %q", hs.Status)
	}

	// Not ready until the catalog has data.
	status, body = getJSON(t, env.server.URL+"/api/v1/health/ready")
	if status != http.StatusServiceUnavailable {
		t.Errorf("empty catalog should not be ready, got %d", status)
	}
	if body.Error == nil || body.Error.Code != "NOT_READY" {
		t.Errorf("error = %+v", body.Error)
	}

	env.seed()
	_, body = getJSON(t, env.server.URL+"/api/v1/health")
	remarshal(t, body.Data, &hs)
	if hs.Status != "healthy" {
		t.Errorf("seeded datasets should report healthy, got %q", hs.Status)
	}

	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready"} {
		if status, _ := getJSON(t, env.server.URL+path); status != http.StatusOK {
			t.Errorf("%s status = %d", path, status)
		}
	}
}

func TestBearerAuth(t *testing.T) {
	cfg := &config.ServerConfig{
		APIToken:        "sekrit",
		CORSOrigins:     []string{"*"},
		RateLimitLookup: 10000,
		RateLimitHealth: 10000,
	}
	env := newTestEnv(t, cfg)
	env.seed()

	// No token: rejected.
	status, body := getJSON(t, env.server.URL+"/api/v1/sku/abc-123")
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d", status)
	}
	if body.Error == nil || body.Error.Code != "UNAUTHORIZED" {
		t.Errorf("error = %+v", body.Error)
	}

	// Correct token: accepted.
	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/sku/abc-123", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authorized status = %d", resp.StatusCode)
	}

	// Health stays open for probes.
	if status, _ := getJSON(t, env.server.URL+"/api/v1/health/live"); status != http.StatusOK {
		t.Errorf("health should not require auth, got %d", status)
	}
}

func TestStaleMetadataFlag(t *testing.T) {
	// Both fetchers fail so the background refresh triggered by the stale
	// lookup cannot replace the seeded snapshot mid-test.
	env := newTestEnvWithFetchers(t, nil,
		staticFetcher{err: errors.New("catalog upstream down")},
		staticFetcher{err: errors.New("prices upstream down")})
	env.catalog.Publish(map[string]models.SkuRecord{
		"abc-123": {
			UUID: "abc-123",
			Variants: []models.SkuVariant{
				{Condition: normalize.NearMint, Printing: normalize.Normal, Provider: normalize.TCGPlayer, SkuID: "1"},
			},
		},
	}, time.Now().Add(-2*time.Hour)) // beyond the 1h TTL

	status, body := getJSON(t, env.server.URL+"/api/v1/sku/abc-123")
	if status != http.StatusOK {
		t.Fatalf("stale data must still answer, got %d", status)
	}
	if !body.Metadata.Stale {
		t.Error("metadata should flag the stale snapshot")
	}
}

// remarshal converts the envelope's generic Data back into a typed value.
func remarshal(t *testing.T, data interface{}, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("remarshal: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("remarshal decode: %v", err)
	}
}
