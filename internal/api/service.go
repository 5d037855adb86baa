// Package api provides the HTTP handlers for fee resolution and rate-table
// diagnostics, plus the WebSocket audit feed.
//
// All monetary values use shopspring/decimal — never float64 for money.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/engine"
	"github.com/sellerledger/fee-engine/internal/metrics"
	"github.com/sellerledger/fee-engine/internal/model"
	"github.com/sellerledger/fee-engine/internal/rates"
)

// Service handles fee-resolution requests. The engine and repository are
// injected; the hub is optional (nil disables the audit feed).
type Service struct {
	engine   *engine.Engine
	repo     rates.RateRepository
	hub      *AuditHub
	validate *validator.Validate
}

// NewService creates a new API service.
// Pass nil for hub if the audit feed is not needed.
func NewService(eng *engine.Engine, repo rates.RateRepository, hub *AuditHub) *Service {
	return &Service{
		engine:   eng,
		repo:     repo,
		hub:      hub,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// --- Request/Response types ---

// MarketplaceRequest identifies the rate tables to resolve against.
type MarketplaceRequest struct {
	CountryCode  string `json:"country_code" validate:"required,len=2,uppercase"`
	ProgramCode  string `json:"program_code" validate:"required"`
	CurrencyCode string `json:"currency_code" validate:"omitempty,len=3,uppercase"`
}

// ProductRequest describes the product being priced. Dimensional and price
// invariants (strictly positive) are enforced by the engine's context
// validation; structural constraints live here.
type ProductRequest struct {
	LengthCm    decimal.Decimal `json:"length_cm"`
	WidthCm     decimal.Decimal `json:"width_cm"`
	HeightCm    decimal.Decimal `json:"height_cm"`
	WeightGrams int64           `json:"weight_grams"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"required"`
	Subcategory *string         `json:"subcategory,omitempty"`
	IsApparel   bool            `json:"is_apparel"`
}

// OptionsRequest selects the optional resolvers.
type OptionsRequest struct {
	IncludeStorage   bool       `json:"include_storage"`
	StorageMonths    int        `json:"storage_months" validate:"gte=0,lte=36"`
	IsOversized      bool       `json:"is_oversized"`
	IncludeDiscount  bool       `json:"include_discount"`
	IncludeSurcharge bool       `json:"include_surcharge"`
	DaysOfSupply     int        `json:"days_of_supply" validate:"gte=0"`
	AsOf             *time.Time `json:"as_of,omitempty"`
}

// ResolveRequest is the JSON body for POST /api/v1/fees/resolve.
type ResolveRequest struct {
	Marketplace MarketplaceRequest `json:"marketplace" validate:"required"`
	Product     ProductRequest     `json:"product" validate:"required"`
	Options     OptionsRequest     `json:"options"`
}

// ResolveResponse is the JSON body returned from POST /api/v1/fees/resolve.
type ResolveResponse struct {
	ResolutionID string `json:"resolution_id"`
	ContextHash  string `json:"context_hash"`
	model.FeeBreakdown
}

func (req ResolveRequest) toContext() model.ProductContext {
	return model.ProductContext{
		Marketplace: model.Marketplace{
			CountryCode:  req.Marketplace.CountryCode,
			ProgramCode:  req.Marketplace.ProgramCode,
			CurrencyCode: req.Marketplace.CurrencyCode,
		},
		Product: model.Product{
			LengthCm:    req.Product.LengthCm,
			WidthCm:     req.Product.WidthCm,
			HeightCm:    req.Product.HeightCm,
			WeightGrams: req.Product.WeightGrams,
			Price:       req.Product.Price,
			Category:    req.Product.Category,
			Subcategory: req.Product.Subcategory,
			IsApparel:   req.Product.IsApparel,
		},
		Options: model.Options{
			IncludeStorage:   req.Options.IncludeStorage,
			StorageMonths:    req.Options.StorageMonths,
			IsOversized:      req.Options.IsOversized,
			IncludeDiscount:  req.Options.IncludeDiscount,
			IncludeSurcharge: req.Options.IncludeSurcharge,
			DaysOfSupply:     req.Options.DaysOfSupply,
			AsOf:             req.Options.AsOf,
		},
	}
}

// --- HTTP Handlers ---

// ResolveFees handles POST /api/v1/fees/resolve
func (s *Service) ResolveFees(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	pctx := req.toContext()
	resolutionID := uuid.New().String()
	start := time.Now()

	breakdown, err := s.engine.ResolveFees(r.Context(), pctx)
	duration := time.Since(start)
	metrics.ResolutionLatency.Observe(duration.Seconds())

	if err != nil {
		s.finishResolution(resolutionID, pctx, nil, err, duration)
		writeResolutionError(w, err)
		return
	}
	s.finishResolution(resolutionID, pctx, breakdown, nil, duration)

	slog.Info("fees resolved",
		"resolution_id", resolutionID,
		"country", pctx.Marketplace.CountryCode,
		"program", pctx.Marketplace.ProgramCode,
		"category", pctx.Product.Category,
		"size_tier", breakdown.Fulfillment.SizeTier,
		"total", breakdown.Total.Amount.String(),
		"duration_ms", duration.Milliseconds(),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ResolveResponse{
		ResolutionID: resolutionID,
		ContextHash:  pctx.Hash(),
		FeeBreakdown: *breakdown,
	})
}

// ListTiers handles GET /api/v1/tiers?country=US&program=STD&apparel=false
// Read-only pass-through for rate-table authors diagnosing gaps.
func (s *Service) ListTiers(w http.ResponseWriter, r *http.Request) {
	mkt := model.Marketplace{
		CountryCode: r.URL.Query().Get("country"),
		ProgramCode: r.URL.Query().Get("program"),
	}
	if mkt.CountryCode == "" || mkt.ProgramCode == "" {
		writeError(w, "country and program query parameters are required", http.StatusBadRequest)
		return
	}
	apparel := r.URL.Query().Get("apparel") == "true"

	tiers, err := s.repo.ListSizeTiers(r.Context(), mkt, apparel)
	if err != nil {
		if errors.Is(err, rates.ErrCountryNotFound) || errors.Is(err, rates.ErrProgramNotAvailable) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, "failed to list size tiers", http.StatusInternalServerError)
		return
	}
	if tiers == nil {
		tiers = []model.SizeTier{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tiers)
}

// finishResolution records metrics and broadcasts the audit event.
func (s *Service) finishResolution(id string, pctx model.ProductContext, breakdown *model.FeeBreakdown, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = errorKind(err)
	}
	metrics.ResolutionsTotal.WithLabelValues(
		pctx.Marketplace.CountryCode, pctx.Marketplace.ProgramCode, outcome).Inc()

	if s.hub == nil {
		return
	}
	ev := AuditEvent{
		ResolutionID: id,
		CountryCode:  pctx.Marketplace.CountryCode,
		ProgramCode:  pctx.Marketplace.ProgramCode,
		Category:     pctx.Product.Category,
		Outcome:      outcome,
		DurationMs:   duration.Milliseconds(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	if breakdown != nil {
		ev.TotalAmount = breakdown.Total.Amount.String()
		ev.CurrencyCode = breakdown.CurrencyCode
	}
	s.hub.Broadcast(ev)
}

func errorKind(err error) string {
	var resErr *engine.ResolutionError
	if errors.As(err, &resErr) {
		return resErr.Kind
	}
	return "internal_error"
}

// writeResolutionError maps the error taxonomy onto HTTP status codes and
// includes the structured diagnostic detail.
func writeResolutionError(w http.ResponseWriter, err error) {
	var resErr *engine.ResolutionError
	if !errors.As(err, &resErr) {
		writeError(w, "internal error", http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch resErr.Kind {
	case engine.KindInvalidContext:
		status = http.StatusBadRequest
	case engine.KindCountryNotFound, engine.KindProgramNotAvailable:
		status = http.StatusNotFound
	case engine.KindNoSizeTierMatch, engine.KindNoFulfillmentFee, engine.KindNoReferralFee:
		status = http.StatusUnprocessableEntity
	case engine.KindResolutionTimeout:
		status = http.StatusGatewayTimeout
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": resErr})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
