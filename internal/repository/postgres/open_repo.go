package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/casebros/case-engine/internal/errs"
	"github.com/casebros/case-engine/internal/model"
	"github.com/casebros/case-engine/internal/repository"
)

// Opens SQL is declared at package level so tests can hold the column lists
// against the embedded migration.
const (
	insOpenSQL = `
INSERT INTO opens (id, user_id, case_id, item_id, spent_cents, earned_cents,
server_seed_hash, server_seed, nonce, event_time_ms, roll, wear_tier, wear_float, modifiers)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	selOpenSQL = `
SELECT id, user_id, case_id, item_id, spent_cents, earned_cents,
server_seed_hash, server_seed, nonce, event_time_ms, roll, wear_tier, wear_float, modifiers, created_at
FROM opens WHERE id=$1 AND user_id=$2`
)

// OpenRepo implements OpenRepository using PostgreSQL.
type OpenRepo struct{ db *DB }

// NewOpenRepo constructs an open repository.
func NewOpenRepo(db *DB) *OpenRepo { return &OpenRepo{db: db} }

// PerformOpen executes one reward event as a single transaction. The user row
// is locked for the whole read-decide-write sequence, so concurrent opens by
// the same user serialize and can never spend the same balance or reuse a
// nonce/seed.
func (r *OpenRepo) PerformOpen(
	ctx context.Context, userID uuid.UUID, caseID int64,
	provision, next repository.SeedPair, decide repository.DecideFunc,
) (u *model.User, d *repository.OpenDecision, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, err
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
SELECT id, username, gems_cents, server_seed, server_seed_hash, nonce, daily_earned_cents, daily_earned_date
FROM users WHERE id=$1 FOR UPDATE`
	var user model.User
	err = tx.QueryRow(ctx, sel, userID).Scan(
		&user.ID, &user.Username, &user.GemsCents, &user.ServerSeed, &user.ServerSeedHash,
		&user.Nonce, &user.DailyEarnedCents, &user.DailyEarnedDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = errs.ErrNotFound
		}
		return nil, nil, err
	}

	// Lazy seed provisioning: a first open finds no committed seed yet.
	if user.ServerSeed == "" {
		const prov = `UPDATE users SET server_seed=$2, server_seed_hash=$3 WHERE id=$1`
		if _, err = tx.Exec(ctx, prov, userID, provision.Seed, provision.Commitment); err != nil {
			return nil, nil, err
		}
		user.ServerSeed = provision.Seed
		user.ServerSeedHash = provision.Commitment
	}

	var m model.Mastery
	m.UserID = userID
	m.CaseID = caseID
	const selM = `SELECT xp, level FROM mastery WHERE user_id=$1 AND case_id=$2`
	if err = tx.QueryRow(ctx, selM, userID, caseID).Scan(&m.XP, &m.Level); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, err
		}
		err = nil
	}

	if d, err = decide(&user, &m); err != nil {
		return nil, nil, err
	}

	newBalance := user.GemsCents - d.SpentCents + d.EarnedCents
	const updUser = `
UPDATE users SET gems_cents=$2, nonce=$3, daily_earned_cents=$4, daily_earned_date=$5,
server_seed=$6, server_seed_hash=$7 WHERE id=$1`
	if _, err = tx.Exec(ctx, updUser, userID, newBalance, d.Nonce,
		d.DailyEarnedCents, d.DailyEarnedDate, next.Seed, next.Commitment); err != nil {
		return nil, nil, err
	}

	const updMastery = `
INSERT INTO mastery (user_id, case_id, xp, level)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, case_id) DO UPDATE SET xp=EXCLUDED.xp, level=EXCLUDED.level`
	if _, err = tx.Exec(ctx, updMastery, userID, caseID, d.MasteryXP, d.MasteryLevel); err != nil {
		return nil, nil, err
	}

	if _, err = tx.Exec(ctx, insOpenSQL, d.OpenID, userID, caseID, d.ItemID, d.SpentCents, d.EarnedCents,
		user.ServerSeedHash, user.ServerSeed, d.Nonce, d.EventTimeMs, int64(d.Roll),
		d.WearTier, d.WearFloat, d.Modifiers); err != nil {
		return nil, nil, err
	}

	const insInv = `
INSERT INTO inventory (id, user_id, item_id, open_id, wear_tier, wear_float, market_hash_name, image_url, value_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err = tx.Exec(ctx, insInv, d.InventoryID, userID, d.ItemID, d.OpenID,
		d.WearTier, d.WearFloat, d.MarketHashName, d.ImageURL, d.ValueCents); err != nil {
		return nil, nil, err
	}

	const insLedger = `INSERT INTO ledger (user_id, kind, amount_cents, meta) VALUES ($1, $2, $3, $4)`
	if _, err = tx.Exec(ctx, insLedger, userID, "case_open_spend", -d.SpentCents, d.SpendMeta); err != nil {
		return nil, nil, err
	}
	if _, err = tx.Exec(ctx, insLedger, userID, "case_open_earn", d.EarnedCents, d.EarnMeta); err != nil {
		return nil, nil, err
	}

	user.GemsCents = newBalance
	user.Nonce = d.Nonce
	user.DailyEarnedCents = d.DailyEarnedCents
	user.DailyEarnedDate = d.DailyEarnedDate
	return &user, d, nil
}

// GetOpen loads one open record owned by the user.
func (r *OpenRepo) GetOpen(ctx context.Context, userID, openID uuid.UUID) (*model.Open, error) {
	var o model.Open
	var roll int64
	err := r.db.Pool.QueryRow(ctx, selOpenSQL, openID, userID).Scan(
		&o.ID, &o.UserID, &o.CaseID, &o.ItemID, &o.SpentCents, &o.EarnedCents,
		&o.ServerSeedHash, &o.ServerSeed, &o.Nonce, &o.EventTimeMs, &roll,
		&o.WearTier, &o.WearFloat, &o.Modifiers, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	o.Roll = uint64(roll)
	return &o, nil
}
