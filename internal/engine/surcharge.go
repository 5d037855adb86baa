package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/model"
)

// resolveSurcharge looks up the low-inventory surcharge for the product's
// weight tier and days-of-supply bucket. The repository evaluates rows
// ascending by weight limit, so the tightest-fitting tier wins. Nil result
// means no surcharge applies — non-fatal.
func (e *Engine) resolveSurcharge(ctx context.Context, mkt model.Marketplace, p model.Product, daysOfSupply int) (*model.SurchargeResult, error) {
	weightKg := decimal.NewFromInt(p.WeightGrams).Div(gramsPerKg)

	s, found, err := e.repo.FindLowInventorySurcharge(ctx, mkt, weightKg, daysOfSupply)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	return &model.SurchargeResult{
		Fee:          s.Fee.Round(2),
		TierGroup:    s.TierGroup,
		DaysOfSupply: daysOfSupply,
	}, nil
}
