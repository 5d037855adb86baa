package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/model"
)

var testMkt = model.Marketplace{CountryCode: "US", ProgramCode: "FBA"}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func window(effective string, end string) model.Validity {
	v := model.Validity{EffectiveDate: mustDate(effective)}
	if end != "" {
		e := mustDate(end)
		v.EndDate = &e
	}
	return v
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestListSizeTiers_SortedAndFiltered(t *testing.T) {
	r := NewMemoryRepository()
	r.AddSizeTier(testMkt, model.SizeTier{ID: "b", Name: "B", SortOrder: 20})
	r.AddSizeTier(testMkt, model.SizeTier{ID: "a", Name: "A", SortOrder: 10})
	r.AddSizeTier(testMkt, model.SizeTier{ID: "ap", Name: "Apparel", SortOrder: 15, IsApparel: true})

	tiers, err := r.ListSizeTiers(context.Background(), testMkt, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tiers) != 2 || tiers[0].ID != "a" || tiers[1].ID != "b" {
		t.Errorf("expected [a b] ascending by sort order, got %v", tiers)
	}

	apparel, err := r.ListSizeTiers(context.Background(), testMkt, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(apparel) != 1 || apparel[0].ID != "ap" {
		t.Errorf("expected apparel tier only, got %v", apparel)
	}
}

func TestListSizeTiers_CountryVsProgramErrors(t *testing.T) {
	r := NewMemoryRepository()
	r.AddSizeTier(testMkt, model.SizeTier{ID: "a", Name: "A", SortOrder: 10})

	_, err := r.ListSizeTiers(context.Background(), model.Marketplace{CountryCode: "DE", ProgramCode: "FBA"}, false)
	if !errors.Is(err, ErrCountryNotFound) {
		t.Errorf("unknown country: expected ErrCountryNotFound, got %v", err)
	}

	_, err = r.ListSizeTiers(context.Background(), model.Marketplace{CountryCode: "US", ProgramCode: "SFP"}, false)
	if !errors.Is(err, ErrProgramNotAvailable) {
		t.Errorf("known country, unknown program: expected ErrProgramNotAvailable, got %v", err)
	}
}

func TestFindFulfillmentFee_ValidityWindow(t *testing.T) {
	r := NewMemoryRepository()
	r.AddFulfillmentFee(testMkt, model.FulfillmentFee{
		SizeTierID: "a", BaseFee: dec("3.00"),
		Validity: window("2024-01-01", "2024-06-30"),
	})

	asOf := func(s string) time.Time { return mustDate(s) }

	if _, found, _ := r.FindFulfillmentFee(context.Background(), testMkt, "a", 100, false, asOf("2023-12-31")); found {
		t.Error("row must not apply before its effective date")
	}
	if _, found, _ := r.FindFulfillmentFee(context.Background(), testMkt, "a", 100, false, asOf("2024-03-15")); !found {
		t.Error("row must apply inside its window")
	}
	if _, found, _ := r.FindFulfillmentFee(context.Background(), testMkt, "a", 100, false, asOf("2024-06-30")); !found {
		t.Error("end date is inclusive")
	}
	if _, found, _ := r.FindFulfillmentFee(context.Background(), testMkt, "a", 100, false, asOf("2024-07-01")); found {
		t.Error("row must not apply after its end date")
	}
}

func TestFindFulfillmentFee_MostRecentEffectiveWins(t *testing.T) {
	r := NewMemoryRepository()
	r.AddFulfillmentFee(testMkt, model.FulfillmentFee{
		SizeTierID: "a", BaseFee: dec("3.00"), Validity: window("2024-01-01", ""),
	})
	// A later rate revision without an end date on the old row: both are
	// active, the newer effective date must win deterministically.
	r.AddFulfillmentFee(testMkt, model.FulfillmentFee{
		SizeTierID: "a", BaseFee: dec("3.25"), Validity: window("2024-06-01", ""),
	})

	fee, found, err := r.FindFulfillmentFee(context.Background(), testMkt, "a", 100, false, mustDate("2024-08-01"))
	if err != nil || !found {
		t.Fatalf("expected a row, got found=%v err=%v", found, err)
	}
	if !fee.BaseFee.Equal(dec("3.25")) {
		t.Errorf("expected the newer revision 3.25, got %s", fee.BaseFee)
	}
}

func TestFindFulfillmentFee_BandSelection(t *testing.T) {
	r := NewMemoryRepository()
	max200 := int64(200)
	r.AddFulfillmentFee(testMkt, model.FulfillmentFee{
		SizeTierID: "a", Band: &model.WeightBand{MinGrams: 0, MaxGrams: &max200},
		BaseFee: dec("3.06"), Validity: window("2024-01-01", ""),
	})
	r.AddFulfillmentFee(testMkt, model.FulfillmentFee{
		SizeTierID: "a", Band: &model.WeightBand{MinGrams: 200},
		BaseFee: dec("3.31"), Validity: window("2024-01-01", ""),
	})

	asOf := mustDate("2024-03-01")

	fee, found, _ := r.FindFulfillmentFee(context.Background(), testMkt, "a", 199, false, asOf)
	if !found || !fee.BaseFee.Equal(dec("3.06")) {
		t.Errorf("199g: expected lower band 3.06, got found=%v %s", found, fee.BaseFee)
	}
	// Upper bound is exclusive: 200g belongs to the next band.
	fee, found, _ = r.FindFulfillmentFee(context.Background(), testMkt, "a", 200, false, asOf)
	if !found || !fee.BaseFee.Equal(dec("3.31")) {
		t.Errorf("200g: expected upper band 3.31, got found=%v %s", found, fee.BaseFee)
	}
}

func TestFindReferralFee_SubcategoryExactMatch(t *testing.T) {
	r := NewMemoryRepository()
	acc := "Accessories"
	r.AddReferralFee(testMkt, model.ReferralFee{
		Category: "Electronics", FeePercentage: dec("8"), Validity: window("2024-01-01", ""),
	})
	r.AddReferralFee(testMkt, model.ReferralFee{
		Category: "Electronics", Subcategory: &acc, FeePercentage: dec("15"), Validity: window("2024-01-01", ""),
	})

	asOf := mustDate("2024-03-01")

	// Nil subcategory matches only the category-level row.
	fee, found, _ := r.FindReferralFee(context.Background(), testMkt, "Electronics", nil, asOf)
	if !found || !fee.FeePercentage.Equal(dec("8")) {
		t.Errorf("expected category-level 8%%, got found=%v %s", found, fee.FeePercentage)
	}

	fee, found, _ = r.FindReferralFee(context.Background(), testMkt, "Electronics", &acc, asOf)
	if !found || !fee.FeePercentage.Equal(dec("15")) {
		t.Errorf("expected subcategory 15%%, got found=%v %s", found, fee.FeePercentage)
	}

	// A subcategory without its own row does not fall back here; the
	// cascade lives in the engine, not the repository.
	cables := "Cables"
	if _, found, _ := r.FindReferralFee(context.Background(), testMkt, "Electronics", &cables, asOf); found {
		t.Error("expected no match for an unconfigured subcategory")
	}
}

func TestFindStorageFee_MonthlyBeatsAnnual(t *testing.T) {
	r := NewMemoryRepository()
	r.AddStorageFee(testMkt, model.StorageFee{
		Period:          model.StoragePeriodAnnual,
		StandardSizeFee: dec("0.87"), OversizeFee: dec("0.56"),
		Validity: window("2024-01-01", ""),
	})
	r.AddStorageFee(testMkt, model.StorageFee{
		Period:     model.StoragePeriodMonthly,
		MonthStart: 10, MonthEnd: 12,
		StandardSizeFee: dec("2.40"), OversizeFee: dec("1.40"),
		Validity: window("2024-01-01", ""),
	})

	asOf := mustDate("2024-06-15")

	fee, found, _ := r.FindStorageFee(context.Background(), testMkt, 6, asOf)
	if !found || fee.Period != model.StoragePeriodAnnual {
		t.Errorf("June: expected annual row, got found=%v %+v", found, fee)
	}

	fee, found, _ = r.FindStorageFee(context.Background(), testMkt, 11, asOf)
	if !found || fee.Period != model.StoragePeriodMonthly {
		t.Errorf("November: expected seasonal row to take precedence, got found=%v %+v", found, fee)
	}
	if !fee.StandardSizeFee.Equal(dec("2.40")) {
		t.Errorf("expected peak rate 2.40, got %s", fee.StandardSizeFee)
	}
}

func TestFindDiscount_ClosedWeightRange(t *testing.T) {
	r := NewMemoryRepository()
	r.AddDiscount(testMkt, model.Discount{
		ProgramName: "SIPP", WeightLowerBoundKg: dec("0"), WeightUpperBoundKg: dec("0.21"), Amount: dec("0.04"),
	})
	r.AddDiscount(testMkt, model.Discount{
		ProgramName: "SIPP", WeightLowerBoundKg: dec("0.21"), WeightUpperBoundKg: dec("0.45"), Amount: dec("0.08"),
	})

	d, found, _ := r.FindDiscount(context.Background(), testMkt, dec("0.05"))
	if !found || !d.Amount.Equal(dec("0.04")) {
		t.Errorf("0.05kg: expected 0.04, got found=%v %s", found, d.Amount)
	}
	// Boundary belongs to the first row containing it.
	d, found, _ = r.FindDiscount(context.Background(), testMkt, dec("0.21"))
	if !found || !d.Amount.Equal(dec("0.04")) {
		t.Errorf("0.21kg: expected first containing row 0.04, got found=%v %s", found, d.Amount)
	}
	if _, found, _ := r.FindDiscount(context.Background(), testMkt, dec("10")); found {
		t.Error("expected no discount above every range")
	}
}

func TestFindLowInventorySurcharge_TightestTierWins(t *testing.T) {
	r := NewMemoryRepository()
	// Inserted widest-first to prove the lookup sorts, not the caller.
	r.AddSurcharge(testMkt, model.Surcharge{
		TierGroup: "Standard >1lb", TierWeightLimitKg: dec("9.07"),
		DaysOfSupplyLower: 0, DaysOfSupplyUpper: 13, Fee: dec("0.97"),
	})
	r.AddSurcharge(testMkt, model.Surcharge{
		TierGroup: "Standard <=1lb", TierWeightLimitKg: dec("0.45"),
		DaysOfSupplyLower: 0, DaysOfSupplyUpper: 13, Fee: dec("0.89"),
	})

	s, found, _ := r.FindLowInventorySurcharge(context.Background(), testMkt, dec("0.3"), 5)
	if !found || s.TierGroup != "Standard <=1lb" {
		t.Errorf("0.3kg: expected tightest tier, got found=%v %+v", found, s)
	}

	s, found, _ = r.FindLowInventorySurcharge(context.Background(), testMkt, dec("5"), 5)
	if !found || s.TierGroup != "Standard >1lb" {
		t.Errorf("5kg: expected next tier up, got found=%v %+v", found, s)
	}

	if _, found, _ := r.FindLowInventorySurcharge(context.Background(), testMkt, dec("0.3"), 60); found {
		t.Error("expected no surcharge outside every days-of-supply bucket")
	}
}
