package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sellerledger/fee-engine/internal/model"
)

// CatchAllCategory is the referral-fee category used as the final fallback
// step when neither the subcategory nor the category has a configured row.
const CatchAllCategory = "Everything Else"

// Cascade match levels reported in ReferralResult.MatchedLevel.
const (
	MatchSubcategory = "subcategory"
	MatchCategory    = "category"
	MatchCatchAll    = "catch-all"
)

// resolveReferral runs the three-step category fallback cascade and computes
// the percentage-of-price fee with the minimum-fee floor. The floor
// guarantees the marketplace never earns less than a fixed minimum per
// transaction even on very low-priced items.
func (e *Engine) resolveReferral(ctx context.Context, mkt model.Marketplace, p model.Product, asOf time.Time) (*model.ReferralResult, error) {
	type step struct {
		level       string
		category    string
		subcategory *string
	}

	steps := make([]step, 0, 3)
	if p.Subcategory != nil && *p.Subcategory != "" {
		steps = append(steps, step{MatchSubcategory, p.Category, p.Subcategory})
	}
	steps = append(steps,
		step{MatchCategory, p.Category, nil},
		step{MatchCatchAll, CatchAllCategory, nil},
	)

	tried := make([]string, 0, len(steps))
	for _, s := range steps {
		fee, found, err := e.repo.FindReferralFee(ctx, mkt, s.category, s.subcategory, asOf)
		if err != nil {
			return nil, fmt.Errorf("referral lookup %s %q: %w", s.level, s.category, err)
		}
		if !found {
			if s.subcategory != nil {
				tried = append(tried, fmt.Sprintf("%s %q/%q", s.level, s.category, *s.subcategory))
			} else {
				tried = append(tried, fmt.Sprintf("%s %q", s.level, s.category))
			}
			continue
		}

		percentageFee := p.Price.Mul(fee.FeePercentage).Div(hundred)

		// Floor: max(percentageFee, minimumFee, perItemMinimum).
		final := percentageFee
		if fee.MinimumFee.GreaterThan(final) {
			final = fee.MinimumFee
		}
		if fee.PerItemMinimum.GreaterThan(final) {
			final = fee.PerItemMinimum
		}

		return &model.ReferralResult{
			Fee:            final.Round(2),
			Percentage:     fee.FeePercentage,
			MinimumFee:     fee.MinimumFee,
			PerItemMinimum: fee.PerItemMinimum,
			MatchedLevel:   s.level,
		}, nil
	}

	return nil, newResolutionError(KindNoReferralFee, ErrNoReferralFeeMatch,
		fmt.Sprintf("no referral fee row for category %q", p.Category), tried...)
}
