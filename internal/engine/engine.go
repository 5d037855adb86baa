// Package engine implements the tiered fee-resolution engine: given a
// product description and a rate-table snapshot it deterministically
// produces a fee breakdown (size/weight-tier fulfillment fee, category
// referral fee, seasonal storage fee, program discount, low-inventory
// surcharge).
//
// The engine is stateless and thread-safe: every resolver is a pure
// function of (ProductContext, RateRepository snapshot, evaluation instant)
// with no shared mutable state and no write side effects. The aggregator
// fans the resolvers out concurrently — they read independent rate tables
// with no ordering dependency — and joins them at a single barrier before
// the final summation, which is associative and commutative over the
// optional components.
//
// All monetary values use shopspring/decimal — never float64 for money.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/metrics"
	"github.com/sellerledger/fee-engine/internal/model"
	"github.com/sellerledger/fee-engine/internal/rates"
	"github.com/sellerledger/fee-engine/internal/tier"
)

var hundred = decimal.NewFromInt(100)

// Engine resolves marketplace fees against a rate repository. The
// repository is injected; wrap it in rates.CachedRepository for transparent
// read-through caching.
type Engine struct {
	repo rates.RateRepository
}

// New creates a fee engine over the given rate repository.
func New(repo rates.RateRepository) *Engine {
	return &Engine{repo: repo}
}

// ResolveFees validates the context, resolves every requested fee component
// concurrently, and returns the combined breakdown.
//
// Fulfillment and referral fees are mandatory: any failure there aborts the
// whole resolution (all-or-nothing). Storage, discount, and surcharge are
// optional: "not found" or a timeout degrades to an absent field. The
// caller's context deadline cancels all in-flight repository reads.
func (e *Engine) ResolveFees(ctx context.Context, pctx model.ProductContext) (*model.FeeBreakdown, error) {
	if err := validateContext(pctx); err != nil {
		return nil, err
	}

	asOf := time.Now().UTC()
	if pctx.Options.AsOf != nil {
		asOf = pctx.Options.AsOf.UTC()
	}

	mkt := pctx.Marketplace
	p := pctx.Product

	// Size-tier resolution is the one sequential pre-step: the fulfillment
	// resolver consumes its candidate list.
	tiers, err := e.repo.ListSizeTiers(ctx, mkt, p.IsApparel)
	if err != nil {
		return nil, classifyRepositoryError(ctx, err, mkt)
	}

	candidates := tier.Candidates(tiers, p)
	if len(candidates) == 0 {
		all := make([]string, 0, len(tiers))
		for _, t := range tiers {
			all = append(all, t.Name)
		}
		return nil, newResolutionError(KindNoSizeTierMatch, ErrNoSizeTierMatch,
			fmt.Sprintf("product %sx%sx%scm %dg exceeds every configured tier",
				p.LengthCm, p.WidthCm, p.HeightCm, p.WeightGrams), all...)
	}

	// Fan out: mandatory resolvers unconditionally, optional ones per the
	// options. Each goroutine owns its result slot; the WaitGroup is the
	// only join point.
	var (
		wg sync.WaitGroup

		fulfillment    *model.FulfillmentResult
		fulfillmentErr error
		referral       *model.ReferralResult
		referralErr    error
		storage        *model.StorageResult
		storageErr     error
		discount       *model.DiscountResult
		discountErr    error
		surcharge      *model.SurchargeResult
		surchargeErr   error
	)

	run := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			fn()
			metrics.ResolverLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}()
	}

	run("fulfillment", func() {
		fulfillment, fulfillmentErr = e.resolveFulfillment(ctx, mkt, p, candidates, asOf)
	})
	run("referral", func() {
		referral, referralErr = e.resolveReferral(ctx, mkt, p, asOf)
	})
	if pctx.Options.IncludeStorage {
		run("storage", func() {
			storage, storageErr = e.resolveStorage(ctx, mkt, p, pctx.Options, asOf)
		})
	}
	if pctx.Options.IncludeDiscount {
		run("discount", func() {
			discount, discountErr = e.resolveDiscount(ctx, mkt, p)
		})
	}
	if pctx.Options.IncludeSurcharge {
		run("surcharge", func() {
			surcharge, surchargeErr = e.resolveSurcharge(ctx, mkt, p, pctx.Options.DaysOfSupply)
		})
	}

	wg.Wait()

	// Mandatory failures abort the aggregation.
	if fulfillmentErr != nil {
		return nil, classifyRepositoryError(ctx, fulfillmentErr, mkt)
	}
	if referralErr != nil {
		return nil, classifyRepositoryError(ctx, referralErr, mkt)
	}

	// Optional failures degrade to absent fields.
	if storageErr != nil {
		slog.Warn("storage resolver failed, omitting component", "err", storageErr)
		storage = nil
	}
	if pctx.Options.IncludeStorage && storage == nil && storageErr == nil {
		slog.Warn("storage fee requested but no rate row applies",
			"country", mkt.CountryCode, "program", mkt.ProgramCode, "month", int(asOf.Month()))
	}
	if discountErr != nil {
		slog.Warn("discount resolver failed, omitting component", "err", discountErr)
		discount = nil
	}
	if surchargeErr != nil {
		slog.Warn("surcharge resolver failed, omitting component", "err", surchargeErr)
		surcharge = nil
	}

	// totalFees = fulfillment + referral + storage? - discount? + surcharge?
	amount := fulfillment.BaseFee.Add(referral.Fee)
	if storage != nil {
		amount = amount.Add(storage.TotalFee)
	}
	if discount != nil {
		amount = amount.Sub(discount.Discount)
	}
	if surcharge != nil {
		amount = amount.Add(surcharge.Fee)
	}

	return &model.FeeBreakdown{
		Fulfillment:  *fulfillment,
		Referral:     *referral,
		Storage:      storage,
		Discount:     discount,
		Surcharge:    surcharge,
		CurrencyCode: mkt.CurrencyCode,
		Total: model.TotalFees{
			Amount:            amount,
			PercentageOfPrice: amount.Div(p.Price).Mul(hundred).Round(2),
		},
	}, nil
}

// validateContext enforces the ProductContext invariants before any
// resolver runs.
func validateContext(pctx model.ProductContext) error {
	var problems []string

	p := pctx.Product
	if !p.LengthCm.IsPositive() {
		problems = append(problems, "length_cm must be positive")
	}
	if !p.WidthCm.IsPositive() {
		problems = append(problems, "width_cm must be positive")
	}
	if !p.HeightCm.IsPositive() {
		problems = append(problems, "height_cm must be positive")
	}
	if p.WeightGrams <= 0 {
		problems = append(problems, "weight_grams must be positive")
	}
	if !p.Price.IsPositive() {
		problems = append(problems, "price must be positive")
	}
	if p.Category == "" {
		problems = append(problems, "category is required")
	}
	if pctx.Marketplace.CountryCode == "" {
		problems = append(problems, "country_code is required")
	}
	if pctx.Marketplace.ProgramCode == "" {
		problems = append(problems, "program_code is required")
	}

	if len(problems) == 0 {
		return nil
	}
	return newResolutionError(KindInvalidContext, ErrInvalidContext, strings.Join(problems, "; "))
}

// classifyRepositoryError maps repository and context failures onto the
// error taxonomy. ResolutionErrors raised by resolvers pass through
// unchanged.
func classifyRepositoryError(ctx context.Context, err error, mkt model.Marketplace) error {
	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return resErr
	}
	if errors.Is(err, rates.ErrCountryNotFound) {
		return newResolutionError(KindCountryNotFound, rates.ErrCountryNotFound,
			fmt.Sprintf("no rate tables for country %q", mkt.CountryCode))
	}
	if errors.Is(err, rates.ErrProgramNotAvailable) {
		return newResolutionError(KindProgramNotAvailable, rates.ErrProgramNotAvailable,
			fmt.Sprintf("program %q not available in country %q", mkt.ProgramCode, mkt.CountryCode))
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return newResolutionError(KindResolutionTimeout, ErrResolutionTimeout,
			"mandatory resolver did not complete within the deadline")
	}
	return &ResolutionError{
		Kind:    KindRepositoryFailure,
		Message: err.Error(),
		err:     err,
	}
}
