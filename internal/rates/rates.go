// Package rates defines the read-only rate-table repository for the fee
// engine. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache decorator), and in-memory (for testing and local
// development).
package rates

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/model"
)

var (
	// ErrCountryNotFound is returned when no rate rows exist for the
	// requested country code.
	ErrCountryNotFound = errors.New("rates: country not found")

	// ErrProgramNotAvailable is returned when the country exists but the
	// requested program has no fulfillment-fee rows at all.
	ErrProgramNotAvailable = errors.New("rates: program not available")
)

// RateRepository is the read-only rate-table interface. PostgreSQL is the
// source of truth; the Redis decorator provides a read-through cache layer.
//
// Every lookup is scoped by marketplace and, where rows carry a temporal
// validity window, by the evaluation instant asOf. All methods are safe to
// call concurrently; the engine fans resolver lookups out in parallel.
type RateRepository interface {
	// ListSizeTiers returns the tiers for the marketplace, pre-sorted
	// ascending by SortOrder (most restrictive first), filtered by the
	// apparel flag. Returns ErrCountryNotFound or ErrProgramNotAvailable
	// when the marketplace pair has no rate rows at all.
	ListSizeTiers(ctx context.Context, mkt model.Marketplace, apparel bool) ([]model.SizeTier, error)

	// FindFulfillmentFee returns the fee row active at asOf for the given
	// tier, whose weight band (when present) contains weightGrams.
	FindFulfillmentFee(ctx context.Context, mkt model.Marketplace, tierID string, weightGrams int64, apparel bool, asOf time.Time) (model.FulfillmentFee, bool, error)

	// FindReferralFee returns the referral row active at asOf matching the
	// category and subcategory exactly (nil subcategory matches rows with
	// no subcategory).
	FindReferralFee(ctx context.Context, mkt model.Marketplace, category string, subcategory *string, asOf time.Time) (model.ReferralFee, bool, error)

	// FindStorageFee returns the storage row for the given calendar month
	// (1-12) active at asOf. MONTHLY rows whose window contains the month
	// take precedence over ANNUAL rows.
	FindStorageFee(ctx context.Context, mkt model.Marketplace, month int, asOf time.Time) (model.StorageFee, bool, error)

	// FindDiscount returns the discount row whose closed weight range
	// contains weightKg.
	FindDiscount(ctx context.Context, mkt model.Marketplace, weightKg decimal.Decimal) (model.Discount, bool, error)

	// FindLowInventorySurcharge returns the surcharge row with the
	// smallest weight limit >= weightKg whose days-of-supply bucket
	// contains daysOfSupply.
	FindLowInventorySurcharge(ctx context.Context, mkt model.Marketplace, weightKg decimal.Decimal, daysOfSupply int) (model.Surcharge, bool, error)
}
