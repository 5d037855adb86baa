package rates

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/model"
)

// MemoryRepository implements RateRepository with in-memory tables. Used for
// testing and development. Not suitable for production (no persistence).
type MemoryRepository struct {
	mu          sync.RWMutex
	tiers       map[string][]model.SizeTier
	fulfillment map[string][]model.FulfillmentFee
	referral    map[string][]model.ReferralFee
	storage     map[string][]model.StorageFee
	discounts   map[string][]model.Discount
	surcharges  map[string][]model.Surcharge
}

// NewMemoryRepository creates an empty in-memory rate repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tiers:       make(map[string][]model.SizeTier),
		fulfillment: make(map[string][]model.FulfillmentFee),
		referral:    make(map[string][]model.ReferralFee),
		storage:     make(map[string][]model.StorageFee),
		discounts:   make(map[string][]model.Discount),
		surcharges:  make(map[string][]model.Surcharge),
	}
}

func mktKey(mkt model.Marketplace) string {
	return mkt.CountryCode + "|" + mkt.ProgramCode
}

// --- Table population (test/dev seeding; production tables are loaded by
// out-of-scope import tooling) ---

func (r *MemoryRepository) AddSizeTier(mkt model.Marketplace, t model.SizeTier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tiers[mktKey(mkt)] = append(r.tiers[mktKey(mkt)], t)
}

func (r *MemoryRepository) AddFulfillmentFee(mkt model.Marketplace, f model.FulfillmentFee) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fulfillment[mktKey(mkt)] = append(r.fulfillment[mktKey(mkt)], f)
}

func (r *MemoryRepository) AddReferralFee(mkt model.Marketplace, f model.ReferralFee) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.referral[mktKey(mkt)] = append(r.referral[mktKey(mkt)], f)
}

func (r *MemoryRepository) AddStorageFee(mkt model.Marketplace, f model.StorageFee) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[mktKey(mkt)] = append(r.storage[mktKey(mkt)], f)
}

func (r *MemoryRepository) AddDiscount(mkt model.Marketplace, d model.Discount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discounts[mktKey(mkt)] = append(r.discounts[mktKey(mkt)], d)
}

func (r *MemoryRepository) AddSurcharge(mkt model.Marketplace, s model.Surcharge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surcharges[mktKey(mkt)] = append(r.surcharges[mktKey(mkt)], s)
}

// --- Lookups ---

func (r *MemoryRepository) ListSizeTiers(_ context.Context, mkt model.Marketplace, apparel bool) ([]model.SizeTier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := mktKey(mkt)
	all, ok := r.tiers[key]
	if !ok {
		if !r.countryKnown(mkt.CountryCode) {
			return nil, ErrCountryNotFound
		}
		return nil, ErrProgramNotAvailable
	}

	var tiers []model.SizeTier
	for _, t := range all {
		if t.IsApparel == apparel {
			tiers = append(tiers, t)
		}
	}
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].SortOrder < tiers[j].SortOrder })
	return tiers, nil
}

// countryKnown reports whether any table references the country.
// Caller must hold the read lock.
func (r *MemoryRepository) countryKnown(countryCode string) bool {
	prefix := countryCode + "|"
	for key := range r.tiers {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	for key := range r.fulfillment {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) FindFulfillmentFee(_ context.Context, mkt model.Marketplace, tierID string, weightGrams int64, apparel bool, asOf time.Time) (model.FulfillmentFee, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *model.FulfillmentFee
	for i := range r.fulfillment[mktKey(mkt)] {
		f := r.fulfillment[mktKey(mkt)][i]
		if f.SizeTierID != tierID || f.IsApparel != apparel || !f.ActiveAt(asOf) {
			continue
		}
		if f.Band != nil && !f.Band.Contains(weightGrams) {
			continue
		}
		// Overlapping validity rows with the same key: most recent
		// effective date wins, deterministically.
		if best == nil || f.EffectiveDate.After(best.EffectiveDate) {
			best = &f
		}
	}
	if best == nil {
		return model.FulfillmentFee{}, false, nil
	}
	return *best, true, nil
}

func (r *MemoryRepository) FindReferralFee(_ context.Context, mkt model.Marketplace, category string, subcategory *string, asOf time.Time) (model.ReferralFee, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *model.ReferralFee
	for i := range r.referral[mktKey(mkt)] {
		f := r.referral[mktKey(mkt)][i]
		if f.Category != category || !f.ActiveAt(asOf) {
			continue
		}
		if (f.Subcategory == nil) != (subcategory == nil) {
			continue
		}
		if subcategory != nil && *f.Subcategory != *subcategory {
			continue
		}
		if best == nil || f.EffectiveDate.After(best.EffectiveDate) {
			best = &f
		}
	}
	if best == nil {
		return model.ReferralFee{}, false, nil
	}
	return *best, true, nil
}

func (r *MemoryRepository) FindStorageFee(_ context.Context, mkt model.Marketplace, month int, asOf time.Time) (model.StorageFee, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// MONTHLY (seasonal) rows take precedence over ANNUAL ones.
	var monthly, annual *model.StorageFee
	for i := range r.storage[mktKey(mkt)] {
		f := r.storage[mktKey(mkt)][i]
		if !f.ActiveAt(asOf) {
			continue
		}
		switch f.Period {
		case model.StoragePeriodMonthly:
			if month >= f.MonthStart && month <= f.MonthEnd {
				if monthly == nil || f.EffectiveDate.After(monthly.EffectiveDate) {
					monthly = &f
				}
			}
		case model.StoragePeriodAnnual:
			if annual == nil || f.EffectiveDate.After(annual.EffectiveDate) {
				annual = &f
			}
		}
	}
	if monthly != nil {
		return *monthly, true, nil
	}
	if annual != nil {
		return *annual, true, nil
	}
	return model.StorageFee{}, false, nil
}

func (r *MemoryRepository) FindDiscount(_ context.Context, mkt model.Marketplace, weightKg decimal.Decimal) (model.Discount, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.discounts[mktKey(mkt)] {
		if weightKg.GreaterThanOrEqual(d.WeightLowerBoundKg) && weightKg.LessThanOrEqual(d.WeightUpperBoundKg) {
			return d, true, nil
		}
	}
	return model.Discount{}, false, nil
}

func (r *MemoryRepository) FindLowInventorySurcharge(_ context.Context, mkt model.Marketplace, weightKg decimal.Decimal, daysOfSupply int) (model.Surcharge, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := make([]model.Surcharge, len(r.surcharges[mktKey(mkt)]))
	copy(rows, r.surcharges[mktKey(mkt)])
	// Ascending weight limit: the tightest-fitting weight tier wins.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TierWeightLimitKg.LessThan(rows[j].TierWeightLimitKg)
	})

	for _, s := range rows {
		if weightKg.LessThanOrEqual(s.TierWeightLimitKg) &&
			daysOfSupply >= s.DaysOfSupplyLower && daysOfSupply <= s.DaysOfSupplyUpper {
			return s, true, nil
		}
	}
	return model.Surcharge{}, false, nil
}
