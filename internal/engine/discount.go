package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/model"
)

var gramsPerKg = decimal.NewFromInt(1000)

// resolveDiscount looks up the program discount (e.g. SIPP) for the
// product's weight. Nil result means the program does not apply to this
// weight — non-fatal.
func (e *Engine) resolveDiscount(ctx context.Context, mkt model.Marketplace, p model.Product) (*model.DiscountResult, error) {
	weightKg := decimal.NewFromInt(p.WeightGrams).Div(gramsPerKg)

	d, found, err := e.repo.FindDiscount(ctx, mkt, weightKg)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	return &model.DiscountResult{
		Discount: d.Amount.Round(2),
		SizeTier: d.SizeTierName,
		Program:  d.ProgramName,
	}, nil
}
