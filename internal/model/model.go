// Package model defines the core domain types shared across the fee engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Marketplace identifies the country/program pair whose rate tables govern
// a resolution. CurrencyCode is passed through to the breakdown unmodified.
type Marketplace struct {
	CountryCode  string `json:"country_code" db:"country_code"`
	ProgramCode  string `json:"program_code" db:"program_code"`
	CurrencyCode string `json:"currency_code" db:"currency_code"`
}

// Product describes the physical item being priced.
type Product struct {
	LengthCm    decimal.Decimal `json:"length_cm"`
	WidthCm     decimal.Decimal `json:"width_cm"`
	HeightCm    decimal.Decimal `json:"height_cm"`
	WeightGrams int64           `json:"weight_grams"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Subcategory *string         `json:"subcategory,omitempty"`
	IsApparel   bool            `json:"is_apparel"`
}

// Options selects the optional resolvers and their inputs.
//
// AsOf overrides the evaluation instant for temporal-validity checks and the
// storage month, so historical resolutions can be reproduced exactly. Nil
// means "now".
type Options struct {
	IncludeStorage   bool       `json:"include_storage"`
	StorageMonths    int        `json:"storage_months"`
	IsOversized      bool       `json:"is_oversized"` // storage rate class, chosen by the caller
	IncludeDiscount  bool       `json:"include_discount"`
	IncludeSurcharge bool       `json:"include_surcharge"`
	DaysOfSupply     int        `json:"days_of_supply"`
	AsOf             *time.Time `json:"as_of,omitempty"`
}

// ProductContext is the immutable input to a fee resolution.
type ProductContext struct {
	Marketplace Marketplace `json:"marketplace"`
	Product     Product     `json:"product"`
	Options     Options     `json:"options"`
}

// Hash returns a stable digest of the context's resolution-relevant fields.
// Combined with a rate-table version it is a safe cache key for breakdowns:
// identical inputs against an unchanged snapshot yield identical output.
func (c ProductContext) Hash() string {
	var b strings.Builder
	sub := ""
	if c.Product.Subcategory != nil {
		sub = *c.Product.Subcategory
	}
	asOf := ""
	if c.Options.AsOf != nil {
		asOf = c.Options.AsOf.UTC().Format(time.RFC3339Nano)
	}
	fmt.Fprintf(&b, "%s|%s|%s|", c.Marketplace.CountryCode, c.Marketplace.ProgramCode, c.Marketplace.CurrencyCode)
	fmt.Fprintf(&b, "%s|%s|%s|%d|%s|%s|%s|%t|",
		c.Product.LengthCm.String(), c.Product.WidthCm.String(), c.Product.HeightCm.String(),
		c.Product.WeightGrams, c.Product.Price.String(), c.Product.Category, sub, c.Product.IsApparel)
	fmt.Fprintf(&b, "%t|%d|%t|%t|%t|%d|%s",
		c.Options.IncludeStorage, c.Options.StorageMonths, c.Options.IsOversized,
		c.Options.IncludeDiscount, c.Options.IncludeSurcharge, c.Options.DaysOfSupply, asOf)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Validity is the temporal window during which a rate row is authoritative.
// A row is active at instant t iff EffectiveDate <= t and (EndDate == nil or
// EndDate >= t).
type Validity struct {
	EffectiveDate time.Time  `json:"effective_date" db:"effective_date"`
	EndDate       *time.Time `json:"end_date,omitempty" db:"end_date"`
}

// ActiveAt reports whether the window contains t.
func (v Validity) ActiveAt(t time.Time) bool {
	if t.Before(v.EffectiveDate) {
		return false
	}
	return v.EndDate == nil || !v.EndDate.Before(t)
}

// SizeTier is a named bucket of dimensional/weight limits. Tiers are totally
// ordered by SortOrder, ascending = most restrictive (smallest/cheapest)
// first. Nil maxima mean "unbounded" for that axis.
//
// Non-oversized tiers compare every dimension independently; oversized tiers
// compare only the largest single dimension (against MaxDimensionSumCm) and
// weight.
type SizeTier struct {
	ID                string           `json:"id" db:"id"`
	Name              string           `json:"name" db:"name"`
	IsOversized       bool             `json:"is_oversized" db:"is_oversized"`
	MaxLengthCm       *decimal.Decimal `json:"max_length_cm,omitempty" db:"max_length_cm"`
	MaxWidthCm        *decimal.Decimal `json:"max_width_cm,omitempty" db:"max_width_cm"`
	MaxHeightCm       *decimal.Decimal `json:"max_height_cm,omitempty" db:"max_height_cm"`
	MaxDimensionSumCm *decimal.Decimal `json:"max_dimension_sum_cm,omitempty" db:"max_dimension_sum_cm"`
	MaxWeightGrams    *int64           `json:"max_weight_grams,omitempty" db:"max_weight_grams"`
	IsApparel         bool             `json:"is_apparel" db:"is_apparel"`
	SortOrder         int              `json:"sort_order" db:"sort_order"`
}

// WeightBand is a half-open weight interval [MinGrams, MaxGrams) refining
// the fee within a size tier. Nil MaxGrams means unbounded.
type WeightBand struct {
	MinGrams int64  `json:"min_grams" db:"min_grams"`
	MaxGrams *int64 `json:"max_grams,omitempty" db:"max_grams"`
}

// Contains reports whether w falls inside the band.
func (b WeightBand) Contains(w int64) bool {
	if w < b.MinGrams {
		return false
	}
	return b.MaxGrams == nil || w < *b.MaxGrams
}

// FulfillmentFee is a rate row pricing one size tier (and, for non-oversized
// tiers, one weight band within it).
//
// BaseFee covers weight up to BaseWeightGrams (or the band's lower bound when
// BaseWeightGrams is nil). When PerUnitFee and PerUnitWeightGrams are set,
// each started PerUnitWeightGrams increment above the covered weight adds
// PerUnitFee — linear extra-weight pricing.
type FulfillmentFee struct {
	SizeTierID         string           `json:"size_tier_id" db:"size_tier_id"`
	ProgramName        string           `json:"program_name" db:"program_name"`
	IsApparel          bool             `json:"is_apparel" db:"is_apparel"`
	Band               *WeightBand      `json:"band,omitempty"`
	BaseFee            decimal.Decimal  `json:"base_fee" db:"base_fee"`
	BaseWeightGrams    *int64           `json:"base_weight_grams,omitempty" db:"base_weight_grams"`
	PerUnitFee         *decimal.Decimal `json:"per_unit_fee,omitempty" db:"per_unit_fee"`
	PerUnitWeightGrams *int64           `json:"per_unit_weight_grams,omitempty" db:"per_unit_weight_grams"`
	Validity
}

// ReferralFee is a percentage-of-price rate row for a category (optionally a
// subcategory). Nil Subcategory rows back the category-level fallback step.
type ReferralFee struct {
	Category       string          `json:"category" db:"category"`
	Subcategory    *string         `json:"subcategory,omitempty" db:"subcategory"`
	FeePercentage  decimal.Decimal `json:"fee_percentage" db:"fee_percentage"`
	MinimumFee     decimal.Decimal `json:"minimum_fee" db:"minimum_fee"`
	PerItemMinimum decimal.Decimal `json:"per_item_minimum" db:"per_item_minimum"`
	Validity
}

// Storage fee period kinds.
const (
	StoragePeriodMonthly = "MONTHLY"
	StoragePeriodAnnual  = "ANNUAL"
)

// StorageFee is a per-cubic-foot, per-month rate row. MONTHLY rows apply only
// when the evaluation month falls in [MonthStart, MonthEnd] (peak-season
// rows); ANNUAL rows apply year-round and are checked second.
type StorageFee struct {
	Period          string          `json:"period" db:"period"`
	MonthStart      int             `json:"month_start" db:"month_start"` // 1-12, MONTHLY only
	MonthEnd        int             `json:"month_end" db:"month_end"`
	StandardSizeFee decimal.Decimal `json:"standard_size_fee" db:"standard_size_fee"`
	OversizeFee     decimal.Decimal `json:"oversize_fee" db:"oversize_fee"`
	Validity
}

// Discount is a program-specific flat fee reduction keyed by a closed weight
// range in kilograms.
type Discount struct {
	ProgramName        string          `json:"program_name" db:"program_name"`
	SizeTierName       string          `json:"size_tier_name" db:"size_tier_name"`
	WeightLowerBoundKg decimal.Decimal `json:"weight_lower_bound_kg" db:"weight_lower_bound_kg"`
	WeightUpperBoundKg decimal.Decimal `json:"weight_upper_bound_kg" db:"weight_upper_bound_kg"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
}

// Surcharge is a low-inventory surcharge row keyed by a weight-tier ceiling
// and a days-of-supply bucket. Rows are evaluated ascending by
// TierWeightLimitKg so the tightest-fitting weight tier wins.
type Surcharge struct {
	MarketplaceGroup  string          `json:"marketplace_group" db:"marketplace_group"`
	TierGroup         string          `json:"tier_group" db:"tier_group"`
	TierWeightLimitKg decimal.Decimal `json:"tier_weight_limit_kg" db:"tier_weight_limit_kg"`
	DaysOfSupplyLower int             `json:"days_of_supply_lower" db:"days_of_supply_lower"`
	DaysOfSupplyUpper int             `json:"days_of_supply_upper" db:"days_of_supply_upper"`
	Fee               decimal.Decimal `json:"fee" db:"fee"`
}

// --- Resolution output ---

// FulfillmentResult is the resolved base fulfillment fee.
type FulfillmentResult struct {
	BaseFee     decimal.Decimal `json:"base_fee"`
	SizeTier    string          `json:"size_tier"`
	ProgramName string          `json:"program_name,omitempty"`
	WeightBand  *WeightBand     `json:"weight_band,omitempty"`
}

// ReferralResult is the resolved percentage-of-price commission.
// Fee is never below max(MinimumFee, PerItemMinimum) for any positive price.
type ReferralResult struct {
	Fee            decimal.Decimal `json:"fee"`
	Percentage     decimal.Decimal `json:"percentage"`
	MinimumFee     decimal.Decimal `json:"minimum_fee"`
	PerItemMinimum decimal.Decimal `json:"per_item_minimum"`
	MatchedLevel   string          `json:"matched_level"` // "subcategory", "category", "catch-all"
}

// StorageResult is the resolved seasonal storage fee.
type StorageResult struct {
	MonthlyFee  decimal.Decimal `json:"monthly_fee"`
	TotalFee    decimal.Decimal `json:"total_fee"`
	FeePerUnit  decimal.Decimal `json:"fee_per_unit"` // per cubic foot per month
	Months      int             `json:"months"`
	IsOversized bool            `json:"is_oversized"`
}

// DiscountResult is the resolved program discount.
type DiscountResult struct {
	Discount decimal.Decimal `json:"discount"`
	SizeTier string          `json:"size_tier"`
	Program  string          `json:"program"`
}

// SurchargeResult is the resolved low-inventory surcharge.
type SurchargeResult struct {
	Fee          decimal.Decimal `json:"fee"`
	TierGroup    string          `json:"tier_group"`
	DaysOfSupply int             `json:"days_of_supply"`
}

// TotalFees sums every resolved component.
type TotalFees struct {
	Amount            decimal.Decimal `json:"amount"`
	PercentageOfPrice decimal.Decimal `json:"percentage_of_price"`
}

// FeeBreakdown is the immutable output of one resolution. Optional components
// are nil when not requested or not applicable, letting consumers distinguish
// "not requested", "requested but not applicable", and "resolved".
type FeeBreakdown struct {
	Fulfillment  FulfillmentResult `json:"fulfillment"`
	Referral     ReferralResult    `json:"referral"`
	Storage      *StorageResult    `json:"storage,omitempty"`
	Discount     *DiscountResult   `json:"discount,omitempty"`
	Surcharge    *SurchargeResult  `json:"surcharge,omitempty"`
	Total        TotalFees         `json:"total"`
	CurrencyCode string            `json:"currency_code,omitempty"`
}
