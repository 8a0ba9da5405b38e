package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/casebros/case-engine/internal/errs"
	"github.com/casebros/case-engine/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, username, pwd_hash, salt_auth, gems_cents, server_seed, server_seed_hash,
nonce, daily_earned_cents, daily_earned_date, last_bonus_claim_at, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.PwdHash, &u.SaltAuth, &u.GemsCents,
		&u.ServerSeed, &u.ServerSeedHash, &u.Nonce,
		&u.DailyEarnedCents, &u.DailyEarnedDate, &u.LastBonusClaimAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user and their starting-balance ledger line in one
// transaction.
func (r *UserRepo) Create(ctx context.Context, u *model.User, startMeta []byte) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
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

	const ins = `
INSERT INTO users (id, username, pwd_hash, salt_auth, gems_cents, server_seed, server_seed_hash, nonce)
VALUES ($1, $2, $3, $4, $5, $6, $7, 0)`
	if _, err = tx.Exec(ctx, ins, u.ID, u.Username, u.PwdHash, u.SaltAuth, u.GemsCents, u.ServerSeed, u.ServerSeedHash); err != nil {
		if isUniqueViolation(err) {
			err = errs.ErrAlreadyExists
		}
		return err
	}
	if u.GemsCents > 0 {
		const led = `INSERT INTO ledger (user_id, kind, amount_cents, meta) VALUES ($1, 'starting_balance', $2, $3)`
		if _, err = tx.Exec(ctx, led, u.ID, u.GemsCents, startMeta); err != nil {
			return err
		}
	}
	return nil
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	return scanUser(row)
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
	return scanUser(row)
}

// ClaimBonus credits a timed bonus. The cooldown is re-checked against the
// locked row so concurrent claims cannot both pass.
func (r *UserRepo) ClaimBonus(ctx context.Context, id uuid.UUID, amountCents int64, cooldown time.Duration, now time.Time, meta []byte) (balance int64, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
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

	const sel = `SELECT gems_cents, last_bonus_claim_at FROM users WHERE id=$1 FOR UPDATE`
	var gems int64
	var lastClaim *time.Time
	if err = tx.QueryRow(ctx, sel, id).Scan(&gems, &lastClaim); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = errs.ErrNotFound
		}
		return 0, err
	}
	if lastClaim != nil && now.Sub(*lastClaim) < cooldown {
		return 0, errs.ErrCooldown
	}

	balance = gems + amountCents
	const upd = `UPDATE users SET gems_cents=$2, last_bonus_claim_at=$3 WHERE id=$1`
	if _, err = tx.Exec(ctx, upd, id, balance, now); err != nil {
		return 0, err
	}
	const led = `INSERT INTO ledger (user_id, kind, amount_cents, meta) VALUES ($1, 'bonus_claim', $2, $3)`
	if _, err = tx.Exec(ctx, led, id, amountCents, meta); err != nil {
		return 0, err
	}
	return balance, nil
}
