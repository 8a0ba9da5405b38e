package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/casebros/case-engine/internal/errs"
	"github.com/casebros/case-engine/internal/model"
)

// PriceRepo implements PriceCacheRepository using PostgreSQL.
type PriceRepo struct{ db *DB }

// NewPriceRepo constructs a price cache repository.
func NewPriceRepo(db *DB) *PriceRepo { return &PriceRepo{db: db} }

// Get loads one cache entry or errs.ErrNotFound.
func (r *PriceRepo) Get(ctx context.Context, key string, currency int) (*model.PriceEntry, error) {
	const q = `
SELECT market_hash_name, currency, price_cents, lowest_price, median_price, volume, icon_url, updated_at
FROM price_cache WHERE market_hash_name=$1 AND currency=$2`
	var e model.PriceEntry
	err := r.db.Pool.QueryRow(ctx, q, key, currency).Scan(
		&e.MarketHashName, &e.Currency, &e.PriceCents, &e.LowestPrice, &e.MedianPrice, &e.Volume, &e.IconURL, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Upsert inserts or merges one entry. Every value column COALESCEs with the
// existing row so a partial refresh only fills fields, never blanks them.
func (r *PriceRepo) Upsert(ctx context.Context, e *model.PriceEntry) error {
	const q = `
INSERT INTO price_cache (market_hash_name, currency, price_cents, lowest_price, median_price, volume, icon_url, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (market_hash_name, currency) DO UPDATE SET
  price_cents  = COALESCE(EXCLUDED.price_cents, price_cache.price_cents),
  lowest_price = COALESCE(EXCLUDED.lowest_price, price_cache.lowest_price),
  median_price = COALESCE(EXCLUDED.median_price, price_cache.median_price),
  volume       = COALESCE(EXCLUDED.volume, price_cache.volume),
  icon_url     = COALESCE(EXCLUDED.icon_url, price_cache.icon_url),
  updated_at   = EXCLUDED.updated_at`
	ts := e.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := r.db.Pool.Exec(ctx, q,
		e.MarketHashName, e.Currency, e.PriceCents, e.LowestPrice, e.MedianPrice, e.Volume, e.IconURL, ts)
	return err
}

// PromoRepo implements PromoRepository using PostgreSQL.
type PromoRepo struct{ db *DB }

// NewPromoRepo constructs a promo event repository.
func NewPromoRepo(db *DB) *PromoRepo { return &PromoRepo{db: db} }

// ActivePayload returns the payload of the newest event of a kind whose
// window contains now.
func (r *PromoRepo) ActivePayload(ctx context.Context, kind string, now time.Time) ([]byte, error) {
	const q = `
SELECT payload FROM promo_events
WHERE kind=$1 AND starts_at<=$2 AND ends_at>$2
ORDER BY starts_at DESC LIMIT 1`
	var payload []byte
	if err := r.db.Pool.QueryRow(ctx, q, kind, now).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}
