// Package limiter throttles credential-guessing against accounts. Balances
// here are spendable, so login abuse is treated as an economy attack surface:
// attempts are counted per (username, hashed peer address) and a threshold
// places a temporary lockout.
package limiter

import (
	"context"
	"time"
)

// Limiter gates login attempts for one (username, peer) pair.
type Limiter interface {
	// Allow reports whether a login attempt may proceed, with a retry-after
	// hint when it may not.
	Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
	// Success clears the failure counter after a correct login.
	Success(ctx context.Context, username string, ipHash []byte) error
	// Failure records a wrong attempt and reports whether the pair just
	// crossed into a lockout.
	Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
}
