package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/model"
)

// PostgresRepository implements RateRepository over PostgreSQL. All monetary
// rates are stored as NUMERIC for exact decimal precision and scanned as
// TEXT into shopspring decimals.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgreSQL-backed rate repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) ListSizeTiers(ctx context.Context, mkt model.Marketplace, apparel bool) ([]model.SizeTier, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, is_oversized,
		        max_length_cm::TEXT, max_width_cm::TEXT, max_height_cm::TEXT,
		        max_dimension_sum_cm::TEXT, max_weight_grams,
		        is_apparel, sort_order
		 FROM size_tiers
		 WHERE country_code = $1 AND program_code = $2 AND is_apparel = $3
		 ORDER BY sort_order`,
		mkt.CountryCode, mkt.ProgramCode, apparel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []model.SizeTier
	for rows.Next() {
		var t model.SizeTier
		var maxL, maxW, maxH, maxSum *string
		if err := rows.Scan(&t.ID, &t.Name, &t.IsOversized,
			&maxL, &maxW, &maxH, &maxSum, &t.MaxWeightGrams,
			&t.IsApparel, &t.SortOrder); err != nil {
			return nil, err
		}
		t.MaxLengthCm = parseOptDecimal(maxL)
		t.MaxWidthCm = parseOptDecimal(maxW)
		t.MaxHeightCm = parseOptDecimal(maxH)
		t.MaxDimensionSumCm = parseOptDecimal(maxSum)
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(tiers) == 0 {
		return nil, r.classifyEmptyMarketplace(ctx, mkt)
	}
	return tiers, nil
}

// classifyEmptyMarketplace distinguishes an unknown country from a known
// country missing the requested program.
func (r *PostgresRepository) classifyEmptyMarketplace(ctx context.Context, mkt model.Marketplace) error {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM size_tiers WHERE country_code = $1`,
		mkt.CountryCode).Scan(&n)
	if err != nil {
		return fmt.Errorf("classify marketplace %s/%s: %w", mkt.CountryCode, mkt.ProgramCode, err)
	}
	if n == 0 {
		return ErrCountryNotFound
	}
	return ErrProgramNotAvailable
}

func (r *PostgresRepository) FindFulfillmentFee(ctx context.Context, mkt model.Marketplace, tierID string, weightGrams int64, apparel bool, asOf time.Time) (model.FulfillmentFee, bool, error) {
	var f model.FulfillmentFee
	var baseFee string
	var perUnitFee *string
	var bandMin *int64
	var bandMax *int64

	// Most recent effective row wins when validity windows overlap.
	err := r.pool.QueryRow(ctx,
		`SELECT f.size_tier_id, f.program_name, f.is_apparel,
		        b.min_grams, b.max_grams,
		        f.base_fee::TEXT, f.base_weight_grams,
		        f.per_unit_fee::TEXT, f.per_unit_weight_grams,
		        f.effective_date, f.end_date
		 FROM fulfillment_fees f
		 LEFT JOIN weight_bands b ON b.fee_id = f.id
		 WHERE f.country_code = $1 AND f.program_code = $2
		   AND f.size_tier_id = $3 AND f.is_apparel = $4
		   AND f.effective_date <= $5
		   AND (f.end_date IS NULL OR f.end_date >= $5)
		   AND (b.fee_id IS NULL OR (b.min_grams <= $6 AND (b.max_grams IS NULL OR b.max_grams > $6)))
		 ORDER BY f.effective_date DESC
		 LIMIT 1`,
		mkt.CountryCode, mkt.ProgramCode, tierID, apparel, asOf, weightGrams).
		Scan(&f.SizeTierID, &f.ProgramName, &f.IsApparel,
			&bandMin, &bandMax,
			&baseFee, &f.BaseWeightGrams,
			&perUnitFee, &f.PerUnitWeightGrams,
			&f.EffectiveDate, &f.EndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.FulfillmentFee{}, false, nil
	}
	if err != nil {
		return model.FulfillmentFee{}, false, fmt.Errorf("find fulfillment fee tier %s: %w", tierID, err)
	}

	if bandMin != nil {
		f.Band = &model.WeightBand{MinGrams: *bandMin, MaxGrams: bandMax}
	}
	f.BaseFee, _ = decimal.NewFromString(baseFee)
	f.PerUnitFee = parseOptDecimal(perUnitFee)
	return f, true, nil
}

func (r *PostgresRepository) FindReferralFee(ctx context.Context, mkt model.Marketplace, category string, subcategory *string, asOf time.Time) (model.ReferralFee, bool, error) {
	var f model.ReferralFee
	var pct, minFee, perItem string

	err := r.pool.QueryRow(ctx,
		`SELECT category, subcategory,
		        fee_percentage::TEXT, minimum_fee::TEXT, per_item_minimum::TEXT,
		        effective_date, end_date
		 FROM referral_fees
		 WHERE country_code = $1 AND program_code = $2 AND category = $3
		   AND (($4::TEXT IS NULL AND subcategory IS NULL) OR subcategory = $4)
		   AND effective_date <= $5
		   AND (end_date IS NULL OR end_date >= $5)
		 ORDER BY effective_date DESC
		 LIMIT 1`,
		mkt.CountryCode, mkt.ProgramCode, category, subcategory, asOf).
		Scan(&f.Category, &f.Subcategory, &pct, &minFee, &perItem,
			&f.EffectiveDate, &f.EndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ReferralFee{}, false, nil
	}
	if err != nil {
		return model.ReferralFee{}, false, fmt.Errorf("find referral fee %s: %w", category, err)
	}

	f.FeePercentage, _ = decimal.NewFromString(pct)
	f.MinimumFee, _ = decimal.NewFromString(minFee)
	f.PerItemMinimum, _ = decimal.NewFromString(perItem)
	return f, true, nil
}

func (r *PostgresRepository) FindStorageFee(ctx context.Context, mkt model.Marketplace, month int, asOf time.Time) (model.StorageFee, bool, error) {
	var f model.StorageFee
	var std, over string

	// MONTHLY rows containing the month sort ahead of ANNUAL rows.
	err := r.pool.QueryRow(ctx,
		`SELECT period, month_start, month_end,
		        standard_size_fee::TEXT, oversize_fee::TEXT,
		        effective_date, end_date
		 FROM storage_fees
		 WHERE country_code = $1 AND program_code = $2
		   AND effective_date <= $3
		   AND (end_date IS NULL OR end_date >= $3)
		   AND (period = 'ANNUAL' OR (period = 'MONTHLY' AND month_start <= $4 AND month_end >= $4))
		 ORDER BY (period = 'MONTHLY') DESC, effective_date DESC
		 LIMIT 1`,
		mkt.CountryCode, mkt.ProgramCode, asOf, month).
		Scan(&f.Period, &f.MonthStart, &f.MonthEnd, &std, &over,
			&f.EffectiveDate, &f.EndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.StorageFee{}, false, nil
	}
	if err != nil {
		return model.StorageFee{}, false, fmt.Errorf("find storage fee month %d: %w", month, err)
	}

	f.StandardSizeFee, _ = decimal.NewFromString(std)
	f.OversizeFee, _ = decimal.NewFromString(over)
	return f, true, nil
}

func (r *PostgresRepository) FindDiscount(ctx context.Context, mkt model.Marketplace, weightKg decimal.Decimal) (model.Discount, bool, error) {
	var d model.Discount
	var lower, upper, amount string

	err := r.pool.QueryRow(ctx,
		`SELECT program_name, size_tier_name,
		        weight_lower_bound_kg::TEXT, weight_upper_bound_kg::TEXT, amount::TEXT
		 FROM discounts
		 WHERE country_code = $1 AND program_code = $2
		   AND weight_lower_bound_kg <= $3::NUMERIC
		   AND weight_upper_bound_kg >= $3::NUMERIC
		 ORDER BY weight_lower_bound_kg
		 LIMIT 1`,
		mkt.CountryCode, mkt.ProgramCode, weightKg.String()).
		Scan(&d.ProgramName, &d.SizeTierName, &lower, &upper, &amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Discount{}, false, nil
	}
	if err != nil {
		return model.Discount{}, false, fmt.Errorf("find discount: %w", err)
	}

	d.WeightLowerBoundKg, _ = decimal.NewFromString(lower)
	d.WeightUpperBoundKg, _ = decimal.NewFromString(upper)
	d.Amount, _ = decimal.NewFromString(amount)
	return d, true, nil
}

func (r *PostgresRepository) FindLowInventorySurcharge(ctx context.Context, mkt model.Marketplace, weightKg decimal.Decimal, daysOfSupply int) (model.Surcharge, bool, error) {
	var s model.Surcharge
	var limit, fee string

	// Ascending weight limit: the tightest-fitting weight tier wins.
	err := r.pool.QueryRow(ctx,
		`SELECT marketplace_group, tier_group,
		        tier_weight_limit_kg::TEXT,
		        days_of_supply_lower, days_of_supply_upper,
		        fee::TEXT
		 FROM low_inventory_surcharges
		 WHERE country_code = $1 AND program_code = $2
		   AND tier_weight_limit_kg >= $3::NUMERIC
		   AND days_of_supply_lower <= $4 AND days_of_supply_upper >= $4
		 ORDER BY tier_weight_limit_kg
		 LIMIT 1`,
		mkt.CountryCode, mkt.ProgramCode, weightKg.String(), daysOfSupply).
		Scan(&s.MarketplaceGroup, &s.TierGroup, &limit,
			&s.DaysOfSupplyLower, &s.DaysOfSupplyUpper, &fee)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Surcharge{}, false, nil
	}
	if err != nil {
		return model.Surcharge{}, false, fmt.Errorf("find low-inventory surcharge: %w", err)
	}

	s.TierWeightLimitKg, _ = decimal.NewFromString(limit)
	s.Fee, _ = decimal.NewFromString(fee)
	return s, true, nil
}

// parseOptDecimal converts a nullable NUMERIC::TEXT column.
func parseOptDecimal(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil
	}
	return &d
}
