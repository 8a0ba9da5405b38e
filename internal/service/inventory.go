package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/casebros/case-engine/internal/errs"
	"github.com/casebros/case-engine/internal/model"
	"github.com/casebros/case-engine/internal/repository"
)

// defaultSellRate is the fraction of an item's recorded value returned on
// sell-back.
const defaultSellRate = 0.60

// InventoryService exposes obtained items and their disposal.
type InventoryService interface {
	// List returns the user's inventory, newest first, sold entries included.
	List(ctx context.Context, userID uuid.UUID) ([]model.InventoryItem, error)
	// Sell disposes one unsold entry for gems at the configured rate.
	Sell(ctx context.Context, userID, inventoryID uuid.UUID) (*repository.SellResult, error)
}

type InventoryServiceImpl struct {
	repo repository.InventoryRepository
	rate float64
	log  *zap.Logger
}

// NewInventoryService constructs the inventory service. A non-positive rate
// falls back to the default 60%.
func NewInventoryService(repo repository.InventoryRepository, rate float64, log *zap.Logger) *InventoryServiceImpl {
	if rate <= 0 || rate > 1 {
		rate = defaultSellRate
	}
	return &InventoryServiceImpl{repo: repo, rate: rate, log: log}
}

func (s *InventoryServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.InventoryItem, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrNotFound
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *InventoryServiceImpl) Sell(ctx context.Context, userID, inventoryID uuid.UUID) (*repository.SellResult, error) {
	if userID == uuid.Nil || inventoryID == uuid.Nil {
		return nil, errs.ErrNotFound
	}
	res, err := s.repo.Sell(ctx, userID, inventoryID, s.rate, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.log.Info("inventory sold",
		zap.String("user_id", userID.String()),
		zap.String("inventory_id", inventoryID.String()),
		zap.Int64("sold_for_cents", res.SoldForCents))
	return res, nil
}
