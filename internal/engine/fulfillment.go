package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/model"
)

// resolveFulfillment walks the candidate tiers in order and returns the fee
// for the first tier that has a configured fee row. That tier is not
// necessarily the first size-matching tier: a table may omit fee rows for
// every weight band of a tier, in which case the product spills over to the
// next larger candidate.
func (e *Engine) resolveFulfillment(ctx context.Context, mkt model.Marketplace, p model.Product, candidates []model.SizeTier, asOf time.Time) (*model.FulfillmentResult, error) {
	tried := make([]string, 0, len(candidates))

	for _, t := range candidates {
		fee, found, err := e.repo.FindFulfillmentFee(ctx, mkt, t.ID, p.WeightGrams, p.IsApparel, asOf)
		if err != nil {
			return nil, fmt.Errorf("fulfillment lookup for tier %s: %w", t.Name, err)
		}
		if !found {
			tried = append(tried, t.Name)
			continue
		}

		return &model.FulfillmentResult{
			BaseFee:     fulfillmentAmount(fee, p.WeightGrams),
			SizeTier:    t.Name,
			ProgramName: fee.ProgramName,
			WeightBand:  fee.Band,
		}, nil
	}

	return nil, newResolutionError(KindNoFulfillmentFee, ErrNoFulfillmentFeeMatch,
		fmt.Sprintf("no fee row for weight %dg in any candidate tier", p.WeightGrams), tried...)
}

// fulfillmentAmount prices a fee row for the given weight: the base fee plus
// linear extra-weight pricing when the row declares per-unit multipliers.
// Each started PerUnitWeightGrams increment above the covered weight adds
// PerUnitFee.
func fulfillmentAmount(fee model.FulfillmentFee, weightGrams int64) decimal.Decimal {
	amount := fee.BaseFee

	if fee.PerUnitFee != nil && fee.PerUnitWeightGrams != nil && *fee.PerUnitWeightGrams > 0 {
		covered := int64(0)
		switch {
		case fee.BaseWeightGrams != nil:
			covered = *fee.BaseWeightGrams
		case fee.Band != nil:
			covered = fee.Band.MinGrams
		}
		if excess := weightGrams - covered; excess > 0 {
			units := (excess + *fee.PerUnitWeightGrams - 1) / *fee.PerUnitWeightGrams
			amount = amount.Add(fee.PerUnitFee.Mul(decimal.NewFromInt(units)))
		}
	}

	return amount.Round(2)
}
