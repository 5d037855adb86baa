package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/sellerledger/fee-engine/internal/metrics"
	"github.com/sellerledger/fee-engine/internal/model"
)

// CachedRepository wraps a primary RateRepository with a Redis read-through
// cache. Rate tables are read-only from the engine's point of view, so there
// is no invalidation path here — entries simply expire after the TTL, which
// bounds staleness after out-of-scope import tooling rewrites a table.
//
// Temporal lookups are keyed by the asOf calendar day: validity windows are
// effective-dated at day granularity, so finer keys would only fragment the
// cache.
type CachedRepository struct {
	primary RateRepository
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedRepository creates a cached wrapper around a primary repository.
func NewCachedRepository(primary RateRepository, rdb *redis.Client, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (r *CachedRepository) ListSizeTiers(ctx context.Context, mkt model.Marketplace, apparel bool) ([]model.SizeTier, error) {
	key := fmt.Sprintf("tiers:%s:%s:%t", mkt.CountryCode, mkt.ProgramCode, apparel)

	data, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var tiers []model.SizeTier
		if json.Unmarshal(data, &tiers) == nil {
			metrics.CacheLookups.WithLabelValues("size_tiers", "hit").Inc()
			return tiers, nil
		}
	}
	metrics.CacheLookups.WithLabelValues("size_tiers", "miss").Inc()

	tiers, err := r.primary.ListSizeTiers(ctx, mkt, apparel)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(tiers); err == nil {
		r.rdb.Set(ctx, key, data, r.ttl)
	}
	return tiers, nil
}

func (r *CachedRepository) FindFulfillmentFee(ctx context.Context, mkt model.Marketplace, tierID string, weightGrams int64, apparel bool, asOf time.Time) (model.FulfillmentFee, bool, error) {
	key := fmt.Sprintf("ffee:%s:%s:%s:%d:%t:%s",
		mkt.CountryCode, mkt.ProgramCode, tierID, weightGrams, apparel, dayKey(asOf))

	data, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var f model.FulfillmentFee
		if json.Unmarshal(data, &f) == nil {
			metrics.CacheLookups.WithLabelValues("fulfillment_fee", "hit").Inc()
			return f, true, nil
		}
	}
	metrics.CacheLookups.WithLabelValues("fulfillment_fee", "miss").Inc()

	f, found, err := r.primary.FindFulfillmentFee(ctx, mkt, tierID, weightGrams, apparel, asOf)
	if err != nil || !found {
		return f, found, err
	}
	if data, err := json.Marshal(f); err == nil {
		r.rdb.Set(ctx, key, data, r.ttl)
	}
	return f, true, nil
}

func (r *CachedRepository) FindReferralFee(ctx context.Context, mkt model.Marketplace, category string, subcategory *string, asOf time.Time) (model.ReferralFee, bool, error) {
	sub := ""
	if subcategory != nil {
		sub = *subcategory
	}
	key := fmt.Sprintf("rfee:%s:%s:%s:%s:%s",
		mkt.CountryCode, mkt.ProgramCode, category, sub, dayKey(asOf))

	data, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var f model.ReferralFee
		if json.Unmarshal(data, &f) == nil {
			metrics.CacheLookups.WithLabelValues("referral_fee", "hit").Inc()
			return f, true, nil
		}
	}
	metrics.CacheLookups.WithLabelValues("referral_fee", "miss").Inc()

	f, found, err := r.primary.FindReferralFee(ctx, mkt, category, subcategory, asOf)
	if err != nil || !found {
		return f, found, err
	}
	if data, err := json.Marshal(f); err == nil {
		r.rdb.Set(ctx, key, data, r.ttl)
	}
	return f, true, nil
}

// --- Passthrough (small tables, lookups already cheap) ---

func (r *CachedRepository) FindStorageFee(ctx context.Context, mkt model.Marketplace, month int, asOf time.Time) (model.StorageFee, bool, error) {
	return r.primary.FindStorageFee(ctx, mkt, month, asOf)
}

func (r *CachedRepository) FindDiscount(ctx context.Context, mkt model.Marketplace, weightKg decimal.Decimal) (model.Discount, bool, error) {
	return r.primary.FindDiscount(ctx, mkt, weightKg)
}

func (r *CachedRepository) FindLowInventorySurcharge(ctx context.Context, mkt model.Marketplace, weightKg decimal.Decimal, daysOfSupply int) (model.Surcharge, bool, error) {
	return r.primary.FindLowInventorySurcharge(ctx, mkt, weightKg, daysOfSupply)
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
