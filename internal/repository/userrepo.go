// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/casebros/case-engine/internal/model"
)

// UserRepository provides account access and the small balance mutations that
// live outside the open transaction.
type UserRepository interface {
	// Create inserts a new user with a starting balance and ledger line.
	Create(ctx context.Context, u *model.User, startMeta []byte) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByUsername loads a user by username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// ClaimBonus credits a timed bonus atomically: the cooldown is re-checked
	// under a row lock so two concurrent claims cannot both pass. Returns the
	// new balance.
	ClaimBonus(ctx context.Context, id uuid.UUID, amountCents int64, cooldown time.Duration, now time.Time, meta []byte) (int64, error)
}
