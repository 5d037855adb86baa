// Package tier implements size-tier matching: mapping a product's physical
// dimensions and weight to the ordered list of candidate size tiers.
//
// Tiers arrive pre-sorted ascending by SortOrder, which encodes
// "smallest/cheapest first" — the first matching tier is therefore the
// cheapest tier the product physically fits, and that ordering is the
// tie-break rule. Callers keep the full candidate list because a tier can
// match dimensionally yet have no fee row configured for the product's
// weight band; pricing then spills over to the next larger candidate.
//
// The package is pure: no repository access, no clock, no mutable state.
package tier

import (
	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/model"
)

// Matches reports whether the product satisfies every declared maximum of
// the tier. Nil maxima are unbounded.
//
// Non-oversized tiers compare length, width, height, and weight
// independently. Oversized tiers compare only the largest single dimension
// (against MaxDimensionSumCm) and weight.
func Matches(t model.SizeTier, p model.Product) bool {
	if t.MaxWeightGrams != nil && p.WeightGrams > *t.MaxWeightGrams {
		return false
	}

	if t.IsOversized {
		if t.MaxDimensionSumCm != nil && LongestDimension(p).GreaterThan(*t.MaxDimensionSumCm) {
			return false
		}
		return true
	}

	if t.MaxLengthCm != nil && p.LengthCm.GreaterThan(*t.MaxLengthCm) {
		return false
	}
	if t.MaxWidthCm != nil && p.WidthCm.GreaterThan(*t.MaxWidthCm) {
		return false
	}
	if t.MaxHeightCm != nil && p.HeightCm.GreaterThan(*t.MaxHeightCm) {
		return false
	}
	return true
}

// Candidates filters the pre-sorted tier list down to the tiers the product
// fits, preserving order. An empty result is a representable outcome — a
// correctly configured table carries a catch-all tier, but the resolver must
// not assume one exists.
func Candidates(tiers []model.SizeTier, p model.Product) []model.SizeTier {
	var candidates []model.SizeTier
	for _, t := range tiers {
		if Matches(t, p) {
			candidates = append(candidates, t)
		}
	}
	return candidates
}

// LongestDimension returns the largest of the product's three dimensions.
func LongestDimension(p model.Product) decimal.Decimal {
	longest := p.LengthCm
	if p.WidthCm.GreaterThan(longest) {
		longest = p.WidthCm
	}
	if p.HeightCm.GreaterThan(longest) {
		longest = p.HeightCm
	}
	return longest
}
