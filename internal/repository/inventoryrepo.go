package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/casebros/case-engine/internal/model"
)

// SellResult reports a completed disposal.
type SellResult struct {
	SoldForCents    int64
	NewBalanceCents int64
}

// InventoryRepository provides obtained-item snapshots and their one-shot
// sell-back.
type InventoryRepository interface {
	// ListByUser returns all inventory entries, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.InventoryItem, error)
	// Sell marks an unsold entry sold and credits the user in one
	// transaction. A second sale of the same entry fails with ErrAlreadySold
	// and changes nothing.
	Sell(ctx context.Context, userID, inventoryID uuid.UUID, rate float64, now time.Time) (*SellResult, error)
}
