package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/casebros/case-engine/internal/errs"
	"github.com/casebros/case-engine/internal/model"
)

// CatalogRepo implements CatalogRepository using PostgreSQL.
type CatalogRepo struct{ db *DB }

// NewCatalogRepo constructs a catalog repository.
func NewCatalogRepo(db *DB) *CatalogRepo { return &CatalogRepo{db: db} }

// ListActiveCases returns all purchasable cases ordered by id.
func (r *CatalogRepo) ListActiveCases(ctx context.Context) ([]model.Case, error) {
	const q = `
SELECT id, slug, name, price_cents, key_price_cents, market_hash_name, active
FROM cases WHERE active ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Case
	for rows.Next() {
		var c model.Case
		if err = rows.Scan(&c.ID, &c.Slug, &c.Name, &c.PriceCents, &c.KeyPriceCents, &c.MarketHashName, &c.Active); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCaseBySlug loads one case; inactive cases are returned so callers can
// report inactive distinctly from unknown.
func (r *CatalogRepo) GetCaseBySlug(ctx context.Context, slug string) (*model.Case, error) {
	const q = `
SELECT id, slug, name, price_cents, key_price_cents, market_hash_name, active
FROM cases WHERE slug=$1`
	var c model.Case
	err := r.db.Pool.QueryRow(ctx, q, slug).Scan(&c.ID, &c.Slug, &c.Name, &c.PriceCents, &c.KeyPriceCents, &c.MarketHashName, &c.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListCaseItems returns the weighted drop table of a case.
func (r *CatalogRepo) ListCaseItems(ctx context.Context, caseID int64) ([]model.CaseItem, error) {
	const q = `
SELECT i.id, i.name, i.rarity, i.price_cents, i.market_hash_name_base, i.image_url, i.min_float, i.max_float, ci.weight
FROM case_items ci
JOIN items i ON i.id = ci.item_id
WHERE ci.case_id=$1
ORDER BY i.id`
	rows, err := r.db.Pool.Query(ctx, q, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CaseItem
	for rows.Next() {
		var ci model.CaseItem
		if err = rows.Scan(&ci.ID, &ci.Name, &ci.Rarity, &ci.PriceCents, &ci.MarketHashNameBase, &ci.ImageURL, &ci.MinFloat, &ci.MaxFloat, &ci.Weight); err != nil {
			return nil, err
		}
		out = append(out, ci)
	}
	return out, rows.Err()
}
