package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/model"
)

// cubicCmPerCubicFoot converts product volume from cm³ to ft³.
var cubicCmPerCubicFoot = decimal.NewFromFloat(28316.8)

// resolveStorage computes the seasonal per-volume storage fee for the
// evaluation month. The oversize rate class comes from the caller's
// IsOversized option, not from the resolved size tier — the caller decides.
//
// "Not found" is non-fatal: storage is optional, so the resolver returns
// nil and the aggregator surfaces it as an absent field.
func (e *Engine) resolveStorage(ctx context.Context, mkt model.Marketplace, p model.Product, opts model.Options, asOf time.Time) (*model.StorageResult, error) {
	fee, found, err := e.repo.FindStorageFee(ctx, mkt, int(asOf.Month()), asOf)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	feePerUnit := fee.StandardSizeFee
	if opts.IsOversized {
		feePerUnit = fee.OversizeFee
	}

	months := opts.StorageMonths
	if months < 1 {
		months = 1
	}

	volumeCubicFeet := p.LengthCm.Mul(p.WidthCm).Mul(p.HeightCm).Div(cubicCmPerCubicFoot)
	monthlyFee := volumeCubicFeet.Mul(feePerUnit).Round(2)

	return &model.StorageResult{
		MonthlyFee:  monthlyFee,
		TotalFee:    monthlyFee.Mul(decimal.NewFromInt(int64(months))),
		FeePerUnit:  feePerUnit,
		Months:      months,
		IsOversized: opts.IsOversized,
	}, nil
}
