package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/casebros/case-engine/internal/model"
)

// SeedPair is a fresh fairness secret with its published commitment.
type SeedPair struct {
	Seed       string
	Commitment string
}

// OpenDecision is everything one reward event writes, computed by the
// service's decide callback against the locked user row.
type OpenDecision struct {
	OpenID           uuid.UUID
	InventoryID      uuid.UUID
	ItemID           int64
	ItemName         string
	SpentCents       int64
	EarnedCents      int64
	Nonce            int64
	EventTimeMs      int64
	Roll             uint64
	WearTier         string
	WearFloat        float64
	MarketHashName   string
	ImageURL         string
	ValueCents       int64
	Modifiers        []byte
	MasteryXP        int64
	MasteryLevel     int
	DailyEarnedCents int64
	DailyEarnedDate  string
	SpendMeta        []byte
	EarnMeta         []byte
}

// DecideFunc computes an open against the authoritative user and mastery
// state. It runs inside the open transaction; any error rolls everything back.
type DecideFunc func(u *model.User, m *model.Mastery) (*OpenDecision, error)

// OpenRepository executes reward events and serves their audit records.
type OpenRepository interface {
	// PerformOpen runs one reward event as a single transaction scoped to the
	// user's row: lock, lazy seed provisioning (provision), decide, then all
	// writes including seed rotation (next). Returns the updated user.
	PerformOpen(ctx context.Context, userID uuid.UUID, caseID int64, provision, next SeedPair, decide DecideFunc) (*model.User, *OpenDecision, error)

	// GetOpen loads one immutable open record owned by the user.
	GetOpen(ctx context.Context, userID, openID uuid.UUID) (*model.Open, error)
}
