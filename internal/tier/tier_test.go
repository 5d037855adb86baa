package tier

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func dp(f float64) *decimal.Decimal {
	v := decimal.NewFromFloat(f)
	return &v
}

func gp(g int64) *int64 { return &g }

// testTiers is a four-tier table, ascending = smallest/cheapest first.
func testTiers() []model.SizeTier {
	return []model.SizeTier{
		{ID: "s", Name: "Small Standard", SortOrder: 10,
			MaxLengthCm: dp(38.1), MaxWidthCm: dp(30.48), MaxHeightCm: dp(1.91),
			MaxWeightGrams: gp(453)},
		{ID: "l", Name: "Large Standard", SortOrder: 20,
			MaxLengthCm: dp(45.72), MaxWidthCm: dp(35.56), MaxHeightCm: dp(20.32),
			MaxWeightGrams: gp(9071)},
		{ID: "so", Name: "Small Oversize", SortOrder: 30,
			IsOversized: true, MaxDimensionSumCm: dp(152.4), MaxWeightGrams: gp(31751)},
		{ID: "lo", Name: "Large Oversize", SortOrder: 40,
			IsOversized: true, MaxDimensionSumCm: dp(274.32), MaxWeightGrams: gp(68038)},
	}
}

func product(l, w, h float64, grams int64) model.Product {
	return model.Product{
		LengthCm:    d(l),
		WidthCm:     d(w),
		HeightCm:    d(h),
		WeightGrams: grams,
	}
}

func TestCandidates_SmallestTierFirst(t *testing.T) {
	// Phone case: fits every tier; the smallest must lead.
	cands := Candidates(testTiers(), product(15, 8, 1, 50))
	if len(cands) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(cands))
	}
	if cands[0].ID != "s" {
		t.Errorf("expected Small Standard first, got %s", cands[0].Name)
	}
	for i := 1; i < len(cands); i++ {
		if cands[i].SortOrder < cands[i-1].SortOrder {
			t.Errorf("candidates out of sort order at %d", i)
		}
	}
}

func TestCandidates_OversizedDimensionPath(t *testing.T) {
	// Garden tool set: 80cm length exceeds both standard tiers, but the
	// largest single dimension fits the oversize bound.
	cands := Candidates(testTiers(), product(80, 30, 15, 4500))
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if cands[0].ID != "so" {
		t.Errorf("expected Small Oversize first, got %s", cands[0].Name)
	}
}

func TestCandidates_NoMatch(t *testing.T) {
	// Exceeds every configured maximum.
	cands := Candidates(testTiers(), product(300, 300, 300, 100000))
	if len(cands) != 0 {
		t.Errorf("expected no candidates, got %d", len(cands))
	}
}

func TestCandidates_WeightPushesToLargerTier(t *testing.T) {
	// Small-standard dimensions, but too heavy for the small tier.
	cands := Candidates(testTiers(), product(15, 8, 1, 2000))
	if len(cands) == 0 || cands[0].ID != "l" {
		t.Fatalf("expected Large Standard first, got %v", cands)
	}
}

func TestMatches_NilMaximaUnbounded(t *testing.T) {
	catchAll := model.SizeTier{ID: "any", Name: "Catch All", SortOrder: 99}
	if !Matches(catchAll, product(1e6, 1e6, 1e6, 1<<40)) {
		t.Error("tier with no declared maxima should match anything")
	}
}

func TestMatches_OversizedIgnoresPerAxisLimits(t *testing.T) {
	// Oversized tiers compare only the largest single dimension; per-axis
	// maxima, if present in the row, are not consulted.
	over := model.SizeTier{
		ID: "o", Name: "Oversize", SortOrder: 30, IsOversized: true,
		MaxLengthCm: dp(10), MaxDimensionSumCm: dp(100), MaxWeightGrams: gp(10000),
	}
	if !Matches(over, product(90, 20, 20, 5000)) {
		t.Error("expected oversized match via largest-dimension rule")
	}
}

func TestCandidates_WeightMonotonicity(t *testing.T) {
	// Increasing only the weight never shrinks the resolved tier.
	tiers := testTiers()
	p := product(15, 8, 1, 1)

	prevSort := -1
	for _, grams := range []int64{1, 100, 453, 454, 2000, 9071, 9072, 20000, 31751, 31752, 68038} {
		p.WeightGrams = grams
		cands := Candidates(tiers, p)
		if len(cands) == 0 {
			t.Fatalf("no candidates at %dg", grams)
		}
		if cands[0].SortOrder < prevSort {
			t.Errorf("tier shrank at %dg: sort %d < %d", grams, cands[0].SortOrder, prevSort)
		}
		prevSort = cands[0].SortOrder
	}
}

func TestLongestDimension(t *testing.T) {
	tests := []struct {
		l, w, h float64
		want    float64
	}{
		{10, 5, 1, 10},
		{5, 10, 1, 10},
		{1, 5, 10, 10},
		{7, 7, 7, 7},
	}
	for _, tt := range tests {
		got := LongestDimension(product(tt.l, tt.w, tt.h, 1))
		if !got.Equal(d(tt.want)) {
			t.Errorf("LongestDimension(%v,%v,%v) = %s, want %v", tt.l, tt.w, tt.h, got, tt.want)
		}
	}
}
