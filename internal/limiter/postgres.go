package limiter

import (
	"context"
	"crypto/sha256"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres-backed limiter: a failure counter that resets when
// attempts are spaced wider than the window, and a lockout timestamp once the
// counter reaches the threshold.
type Store struct {
	db        querier
	window    time.Duration
	threshold int
	lockout   time.Duration
}

// New constructs a limiter over a live pool.
func New(pool *pgxpool.Pool, window time.Duration, threshold int, lockout time.Duration) *Store {
	return &Store{db: pool, window: window, threshold: threshold, lockout: lockout}
}

// NewWithQuerier constructs a limiter over any querier, for tests.
func NewWithQuerier(q querier, window time.Duration, threshold int, lockout time.Duration) *Store {
	return &Store{db: q, window: window, threshold: threshold, lockout: lockout}
}

// HashIP derives a stable digest of a peer address so raw addresses are never
// stored.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}

// Allow checks the lockout timestamp for the pair.
func (s *Store) Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until, updated_at FROM auth_limiter WHERE username=$1 AND ip_hash=$2`
	var blockedUntil, updatedAt time.Time
	err := s.db.QueryRow(ctx, q, username, ipHash).Scan(&blockedUntil, &updatedAt)
	switch err {
	case nil:
		if blockedUntil.After(time.Now()) {
			return false, time.Until(blockedUntil), nil
		}
		return true, 0, nil
	case pgx.ErrNoRows:
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// Success zeroes the counter and clears any lockout.
func (s *Store) Success(ctx context.Context, username string, ipHash []byte) error {
	const q = `
INSERT INTO auth_limiter (username, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1,$2,0,'epoch',now())
ON CONFLICT (username, ip_hash)
DO UPDATE SET fail_count=0, blocked_until='epoch', updated_at=now()`
	_, err := s.db.Exec(ctx, q, username, ipHash)
	return err
}

// Failure bumps the counter, restarting it when the previous attempt is older
// than the window, and installs the lockout at the threshold.
func (s *Store) Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	const q = `
INSERT INTO auth_limiter (username, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1,$2,1,'epoch',now())
ON CONFLICT (username, ip_hash) DO UPDATE
SET
  fail_count = CASE WHEN EXCLUDED.updated_at - auth_limiter.updated_at > $3::interval THEN 1 ELSE auth_limiter.fail_count + 1 END,
  updated_at = now()
RETURNING fail_count`
	var fails int
	if err := s.db.QueryRow(ctx, q, username, ipHash, s.window).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails >= s.threshold {
		const upd = `UPDATE auth_limiter SET blocked_until=$3 WHERE username=$1 AND ip_hash=$2`
		if _, err := s.db.Exec(ctx, upd, username, ipHash, time.Now().Add(s.lockout)); err != nil {
			return false, 0, err
		}
		return true, s.lockout, nil
	}
	return false, 0, nil
}
