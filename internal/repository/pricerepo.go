package repository

import (
	"context"
	"time"

	"github.com/casebros/case-engine/internal/model"
)

// PriceCacheRepository persists external market quotes keyed by
// (lookup key, currency). Upsert merges per column: a null never replaces a
// previously known value.
type PriceCacheRepository interface {
	Get(ctx context.Context, key string, currency int) (*model.PriceEntry, error)
	Upsert(ctx context.Context, e *model.PriceEntry) error
}

// PromoRepository reads time-windowed promotional events; the engine only
// consumes their payloads, it never schedules them.
type PromoRepository interface {
	// ActivePayload returns the payload of the newest event of the given kind
	// whose window contains now, or errs.ErrNotFound.
	ActivePayload(ctx context.Context, kind string, now time.Time) ([]byte, error)
}
