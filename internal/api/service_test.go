package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/engine"
	"github.com/sellerledger/fee-engine/internal/model"
	"github.com/sellerledger/fee-engine/internal/rates"
)

// newTestRouter builds the API over the demo rate snapshot, audit feed
// disabled.
func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	repo := rates.NewMemoryRepository()
	rates.SeedDemoRates(repo)
	svc := NewService(engine.New(repo), repo, nil)

	r := chi.NewRouter()
	r.Post("/api/v1/fees/resolve", svc.ResolveFees)
	r.Get("/api/v1/tiers", svc.ListTiers)
	return r
}

func postResolve(t *testing.T, router *chi.Mux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/fees/resolve", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// phoneCaseBody builds a resolve request for the demo US/FBA snapshot.
func phoneCaseBody(overrides string) string {
	return fmt.Sprintf(`{
		"marketplace": {"country_code": "US", "program_code": "FBA", "currency_code": "USD"},
		"product": {
			"length_cm": 15, "width_cm": 8, "height_cm": 1,
			"weight_grams": 50, "price": 29.99, "category": "Electronics"
		},
		"options": {"as_of": "2024-06-15T12:00:00Z"%s}
	}`, overrides)
}

func TestResolveFeesHandler_OK(t *testing.T) {
	router := newTestRouter(t)

	rec := postResolve(t, router, phoneCaseBody(""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp ResolveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, err := uuid.Parse(resp.ResolutionID); err != nil {
		t.Errorf("resolution_id is not a UUID: %q", resp.ResolutionID)
	}
	if len(resp.ContextHash) != 64 {
		t.Errorf("expected sha256 context hash, got %q", resp.ContextHash)
	}
	if resp.Fulfillment.SizeTier != "Small Standard" {
		t.Errorf("expected Small Standard, got %s", resp.Fulfillment.SizeTier)
	}
	if !resp.Total.Amount.Equal(decimal.RequireFromString("5.46")) {
		t.Errorf("expected total 5.46, got %s", resp.Total.Amount)
	}
	if resp.CurrencyCode != "USD" {
		t.Errorf("expected USD, got %q", resp.CurrencyCode)
	}
	if resp.Storage != nil {
		t.Error("storage not requested, must be absent")
	}
}

func TestResolveFeesHandler_WithOptions(t *testing.T) {
	router := newTestRouter(t)

	rec := postResolve(t, router, phoneCaseBody(`,
		"include_discount": true,
		"include_surcharge": true, "days_of_supply": 10`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp ResolveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Discount == nil || resp.Surcharge == nil {
		t.Fatalf("expected discount and surcharge components: %s", rec.Body)
	}
	// 3.06 + 2.40 - 0.04 + 0.89.
	if !resp.Total.Amount.Equal(decimal.RequireFromString("6.31")) {
		t.Errorf("expected total 6.31, got %s", resp.Total.Amount)
	}
}

func TestResolveFeesHandler_MalformedJSON(t *testing.T) {
	router := newTestRouter(t)

	rec := postResolve(t, router, `{"marketplace": `)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestResolveFeesHandler_ValidationFailure(t *testing.T) {
	router := newTestRouter(t)

	// Lowercase country code fails structural validation before the
	// engine runs.
	body := `{
		"marketplace": {"country_code": "us", "program_code": "FBA"},
		"product": {"length_cm": 15, "width_cm": 8, "height_cm": 1,
			"weight_grams": 50, "price": 29.99, "category": "Electronics"},
		"options": {}
	}`
	rec := postResolve(t, router, body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body)
	}
}

func TestResolveFeesHandler_InvalidContext(t *testing.T) {
	router := newTestRouter(t)

	body := `{
		"marketplace": {"country_code": "US", "program_code": "FBA"},
		"product": {"length_cm": 15, "width_cm": 8, "height_cm": 1,
			"weight_grams": 50, "price": 0, "category": "Electronics"},
		"options": {}
	}`
	rec := postResolve(t, router, body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-positive price, got %d: %s", rec.Code, rec.Body)
	}
}

func TestResolveFeesHandler_NoTierMatch(t *testing.T) {
	router := newTestRouter(t)

	body := `{
		"marketplace": {"country_code": "US", "program_code": "FBA"},
		"product": {"length_cm": 500, "width_cm": 500, "height_cm": 500,
			"weight_grams": 500000, "price": 29.99, "category": "Electronics"},
		"options": {"as_of": "2024-06-15T12:00:00Z"}
	}`
	rec := postResolve(t, router, body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Error struct {
			Kind    string   `json:"kind"`
			Message string   `json:"message"`
			Tried   []string `json:"tried"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error.Kind != engine.KindNoSizeTierMatch {
		t.Errorf("expected kind %s, got %s", engine.KindNoSizeTierMatch, resp.Error.Kind)
	}
	if len(resp.Error.Tried) == 0 {
		t.Error("expected the tried tier names in the diagnostic detail")
	}
}

func TestResolveFeesHandler_UnknownCountry(t *testing.T) {
	router := newTestRouter(t)

	body := `{
		"marketplace": {"country_code": "DE", "program_code": "FBA"},
		"product": {"length_cm": 15, "width_cm": 8, "height_cm": 1,
			"weight_grams": 50, "price": 29.99, "category": "Electronics"},
		"options": {}
	}`
	rec := postResolve(t, router, body)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body)
	}
}

func TestListTiersHandler(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tiers?country=US&program=FBA", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var tiers []model.SizeTier
	if err := json.Unmarshal(rec.Body.Bytes(), &tiers); err != nil {
		t.Fatalf("decode tiers: %v", err)
	}
	if len(tiers) != 4 {
		t.Fatalf("expected 4 non-apparel tiers, got %d", len(tiers))
	}
	for i := 1; i < len(tiers); i++ {
		if tiers[i].SortOrder < tiers[i-1].SortOrder {
			t.Errorf("tiers out of order at %d: %v", i, tiers)
		}
	}
}

func TestListTiersHandler_MissingParams(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tiers?country=US", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListTiersHandler_UnknownProgram(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tiers?country=US&program=SFP", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body)
	}
}
