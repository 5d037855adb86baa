package rates

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/model"
)

// SeedDemoRates loads a small US/FBA rate snapshot into an in-memory
// repository. Used when the server runs without a database; production
// tables are populated by out-of-scope import tooling.
func SeedDemoRates(r *MemoryRepository) {
	us := model.Marketplace{CountryCode: "US", ProgramCode: "FBA", CurrencyCode: "USD"}
	effective := model.Validity{EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	dec := decimal.RequireFromString
	ptr := func(s string) *decimal.Decimal { d := dec(s); return &d }
	grams := func(g int64) *int64 { return &g }

	// --- Size tiers, ascending = smallest/cheapest first ---
	r.AddSizeTier(us, model.SizeTier{
		ID: "small-standard", Name: "Small Standard", SortOrder: 10,
		MaxLengthCm: ptr("38.1"), MaxWidthCm: ptr("30.48"), MaxHeightCm: ptr("1.91"),
		MaxWeightGrams: grams(453),
	})
	r.AddSizeTier(us, model.SizeTier{
		ID: "large-standard", Name: "Large Standard", SortOrder: 20,
		MaxLengthCm: ptr("45.72"), MaxWidthCm: ptr("35.56"), MaxHeightCm: ptr("20.32"),
		MaxWeightGrams: grams(9071),
	})
	r.AddSizeTier(us, model.SizeTier{
		ID: "small-oversize", Name: "Small Oversize", SortOrder: 30,
		IsOversized: true, MaxDimensionSumCm: ptr("152.4"), MaxWeightGrams: grams(31751),
	})
	r.AddSizeTier(us, model.SizeTier{
		ID: "large-oversize", Name: "Large Oversize", SortOrder: 40,
		IsOversized: true, MaxDimensionSumCm: ptr("274.32"), MaxWeightGrams: grams(68038),
	})
	r.AddSizeTier(us, model.SizeTier{
		ID: "apparel-standard", Name: "Apparel Standard", SortOrder: 20,
		IsApparel:   true,
		MaxLengthCm: ptr("45.72"), MaxWidthCm: ptr("35.56"), MaxHeightCm: ptr("20.32"),
		MaxWeightGrams: grams(9071),
	})

	// --- Fulfillment fees ---
	band := func(min int64, max *int64) *model.WeightBand {
		return &model.WeightBand{MinGrams: min, MaxGrams: max}
	}
	r.AddFulfillmentFee(us, model.FulfillmentFee{
		SizeTierID: "small-standard", ProgramName: "FBA",
		Band: band(0, grams(200)), BaseFee: dec("3.06"), Validity: effective,
	})
	r.AddFulfillmentFee(us, model.FulfillmentFee{
		SizeTierID: "small-standard", ProgramName: "FBA",
		Band: band(200, grams(454)), BaseFee: dec("3.31"), Validity: effective,
	})
	r.AddFulfillmentFee(us, model.FulfillmentFee{
		SizeTierID: "large-standard", ProgramName: "FBA",
		Band: band(0, grams(453)), BaseFee: dec("3.68"), Validity: effective,
	})
	r.AddFulfillmentFee(us, model.FulfillmentFee{
		SizeTierID: "large-standard", ProgramName: "FBA",
		Band: band(453, grams(1361)), BaseFee: dec("4.76"), Validity: effective,
	})
	r.AddFulfillmentFee(us, model.FulfillmentFee{
		SizeTierID: "large-standard", ProgramName: "FBA",
		Band: band(1361, nil), BaseFee: dec("5.79"),
		BaseWeightGrams: grams(1361), PerUnitFee: ptr("0.16"), PerUnitWeightGrams: grams(113),
		Validity: effective,
	})
	r.AddFulfillmentFee(us, model.FulfillmentFee{
		SizeTierID: "small-oversize", ProgramName: "FBA",
		BaseFee:         dec("9.61"),
		BaseWeightGrams: grams(454), PerUnitFee: ptr("0.38"), PerUnitWeightGrams: grams(454),
		Validity: effective,
	})
	r.AddFulfillmentFee(us, model.FulfillmentFee{
		SizeTierID: "large-oversize", ProgramName: "FBA",
		BaseFee:         dec("26.33"),
		BaseWeightGrams: grams(454), PerUnitFee: ptr("0.38"), PerUnitWeightGrams: grams(454),
		Validity: effective,
	})
	r.AddFulfillmentFee(us, model.FulfillmentFee{
		SizeTierID: "apparel-standard", ProgramName: "FBA", IsApparel: true,
		Band: band(0, nil), BaseFee: dec("4.24"), Validity: effective,
	})

	// --- Referral fees ---
	accessories := "Accessories"
	r.AddReferralFee(us, model.ReferralFee{
		Category: "Electronics", FeePercentage: dec("8"),
		MinimumFee: dec("0.30"), Validity: effective,
	})
	r.AddReferralFee(us, model.ReferralFee{
		Category: "Electronics", Subcategory: &accessories, FeePercentage: dec("15"),
		MinimumFee: dec("0.30"), Validity: effective,
	})
	r.AddReferralFee(us, model.ReferralFee{
		Category: "Home & Garden", FeePercentage: dec("15"),
		MinimumFee: dec("0.30"), Validity: effective,
	})
	r.AddReferralFee(us, model.ReferralFee{
		Category: "Clothing & Accessories", FeePercentage: dec("17"),
		MinimumFee: dec("0.30"), Validity: effective,
	})
	r.AddReferralFee(us, model.ReferralFee{
		Category: "Everything Else", FeePercentage: dec("15"),
		MinimumFee: dec("0.30"), Validity: effective,
	})

	// --- Storage fees: year-round baseline + Oct-Dec peak season ---
	r.AddStorageFee(us, model.StorageFee{
		Period:          model.StoragePeriodAnnual,
		StandardSizeFee: dec("0.87"), OversizeFee: dec("0.56"),
		Validity: effective,
	})
	r.AddStorageFee(us, model.StorageFee{
		Period:     model.StoragePeriodMonthly,
		MonthStart: 10, MonthEnd: 12,
		StandardSizeFee: dec("2.40"), OversizeFee: dec("1.40"),
		Validity: effective,
	})

	// --- SIPP discounts ---
	r.AddDiscount(us, model.Discount{
		ProgramName: "SIPP", SizeTierName: "Small Standard",
		WeightLowerBoundKg: dec("0"), WeightUpperBoundKg: dec("0.21"), Amount: dec("0.04"),
	})
	r.AddDiscount(us, model.Discount{
		ProgramName: "SIPP", SizeTierName: "Small Standard",
		WeightLowerBoundKg: dec("0.21"), WeightUpperBoundKg: dec("0.45"), Amount: dec("0.08"),
	})
	r.AddDiscount(us, model.Discount{
		ProgramName: "SIPP", SizeTierName: "Large Standard",
		WeightLowerBoundKg: dec("0.45"), WeightUpperBoundKg: dec("9.07"), Amount: dec("0.11"),
	})

	// --- Low-inventory surcharges, buckets by days of supply ---
	for _, s := range []model.Surcharge{
		{MarketplaceGroup: "US", TierGroup: "Standard <=1lb", TierWeightLimitKg: dec("0.45"), DaysOfSupplyLower: 0, DaysOfSupplyUpper: 13, Fee: dec("0.89")},
		{MarketplaceGroup: "US", TierGroup: "Standard <=1lb", TierWeightLimitKg: dec("0.45"), DaysOfSupplyLower: 14, DaysOfSupplyUpper: 20, Fee: dec("0.63")},
		{MarketplaceGroup: "US", TierGroup: "Standard <=1lb", TierWeightLimitKg: dec("0.45"), DaysOfSupplyLower: 21, DaysOfSupplyUpper: 27, Fee: dec("0.32")},
		{MarketplaceGroup: "US", TierGroup: "Standard >1lb", TierWeightLimitKg: dec("9.07"), DaysOfSupplyLower: 0, DaysOfSupplyUpper: 13, Fee: dec("0.97")},
		{MarketplaceGroup: "US", TierGroup: "Standard >1lb", TierWeightLimitKg: dec("9.07"), DaysOfSupplyLower: 14, DaysOfSupplyUpper: 20, Fee: dec("0.70")},
		{MarketplaceGroup: "US", TierGroup: "Standard >1lb", TierWeightLimitKg: dec("9.07"), DaysOfSupplyLower: 21, DaysOfSupplyUpper: 27, Fee: dec("0.36")},
	} {
		r.AddSurcharge(us, s)
	}
}
