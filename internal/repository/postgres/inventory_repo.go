package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/casebros/case-engine/internal/errs"
	"github.com/casebros/case-engine/internal/model"
	"github.com/casebros/case-engine/internal/repository"
)

// InventoryRepo implements InventoryRepository using PostgreSQL.
type InventoryRepo struct{ db *DB }

// NewInventoryRepo constructs an inventory repository.
func NewInventoryRepo(db *DB) *InventoryRepo { return &InventoryRepo{db: db} }

// ListByUser returns all inventory entries for a user, newest first.
func (r *InventoryRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.InventoryItem, error) {
	const q = `
SELECT inv.id, inv.user_id, inv.item_id, inv.open_id, i.name, i.rarity,
inv.wear_tier, inv.wear_float, inv.market_hash_name, inv.image_url, inv.value_cents,
inv.sold, inv.sold_at, inv.sold_for_cents, inv.obtained_at
FROM inventory inv
JOIN items i ON i.id = inv.item_id
WHERE inv.user_id=$1
ORDER BY inv.obtained_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.InventoryItem
	for rows.Next() {
		var it model.InventoryItem
		if err = rows.Scan(&it.ID, &it.UserID, &it.ItemID, &it.OpenID, &it.ItemName, &it.Rarity,
			&it.WearTier, &it.WearFloat, &it.MarketHashName, &it.ImageURL, &it.ValueCents,
			&it.Sold, &it.SoldAt, &it.SoldForCents, &it.ObtainedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Sell converts one unsold entry into currency at the given rate, floored.
// The entry row is locked so a double disposal always fails the second time.
func (r *InventoryRepo) Sell(ctx context.Context, userID, inventoryID uuid.UUID, rate float64, now time.Time) (res *repository.SellResult, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `
SELECT value_cents, sold, market_hash_name FROM inventory
WHERE id=$1 AND user_id=$2 FOR UPDATE`
	var (
		valueCents int64
		sold       bool
		hashName   string
	)
	if err = tx.QueryRow(ctx, sel, inventoryID, userID).Scan(&valueCents, &sold, &hashName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = errs.ErrNotFound
		}
		return nil, err
	}
	if sold {
		return nil, errs.ErrAlreadySold
	}

	soldFor := int64(float64(valueCents) * rate)

	const updUser = `UPDATE users SET gems_cents = gems_cents + $2 WHERE id=$1 RETURNING gems_cents`
	var balance int64
	if err = tx.QueryRow(ctx, updUser, userID, soldFor).Scan(&balance); err != nil {
		return nil, err
	}

	const updInv = `UPDATE inventory SET sold=true, sold_at=$2, sold_for_cents=$3 WHERE id=$1`
	if _, err = tx.Exec(ctx, updInv, inventoryID, now, soldFor); err != nil {
		return nil, err
	}

	meta, _ := json.Marshal(map[string]any{"inventory_id": inventoryID.String(), "item": hashName})
	const led = `INSERT INTO ledger (user_id, kind, amount_cents, meta) VALUES ($1, 'inventory_sell', $2, $3)`
	if _, err = tx.Exec(ctx, led, userID, soldFor, meta); err != nil {
		return nil, err
	}

	return &repository.SellResult{SoldForCents: soldFor, NewBalanceCents: balance}, nil
}
