package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/casebros/case-engine/internal/errs"
	"github.com/casebros/case-engine/internal/model"
)

// Behavior selects how a resolution treats a missing or expired cache entry.
type Behavior int

const (
	// Await blocks on an external refresh (bounded retries), then falls back
	// to stale cache, then reports unavailable.
	Await Behavior = iota
	// StaleWhileRevalidate returns any cached value immediately and refreshes
	// in the background; with an empty cache it degrades to Await.
	StaleWhileRevalidate
)

// Store persists cache entries. Upsert must merge per column so a null from a
// partial refresh never clobbers a known value.
type Store interface {
	// Get returns the entry or errs.ErrNotFound.
	Get(ctx context.Context, key string, currency int) (*model.PriceEntry, error)
	// Upsert inserts or merges the entry, keyed by (key, currency).
	Upsert(ctx context.Context, e *model.PriceEntry) error
}

// Info is one resolved lookup. Source is "cache", "live" or "stale_cache";
// Err carries the refresh failure when a stale value had to be served.
type Info struct {
	MarketHashName string
	Currency       int
	PriceCents     *int64
	LowestPrice    *string
	MedianPrice    *string
	Volume         *int64
	IconURL        *string
	UpdatedAt      time.Time
	Source         string
	Err            error
}

// Config tunes the resolver. Zero values fall back to defaults.
type Config struct {
	Currency       int
	TTL            time.Duration
	Attempts       int           // external refresh attempts per Await resolution
	Backoff        time.Duration // delay between attempts
	BatchLimit     int           // max in-flight external lookups for GetBatch
	RefreshTimeout time.Duration // budget for one detached background refresh
}

// Resolver is the multi-tier price cache: fresh rows short-circuit, expired
// rows are refreshed with a bounded retry budget, and refresh failures
// degrade to the last known value instead of failing the caller.
type Resolver struct {
	fetch Fetcher
	store Store
	log   *zap.Logger
	cfg   Config
}

// NewResolver constructs a resolver over a fetcher and a cache store.
func NewResolver(fetch Fetcher, store Store, log *zap.Logger, cfg Config) *Resolver {
	if cfg.TTL <= 0 {
		cfg.TTL = 3 * time.Hour
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 250 * time.Millisecond
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 4
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 15 * time.Second
	}
	if cfg.Currency == 0 {
		cfg.Currency = 1 // USD
	}
	return &Resolver{fetch: fetch, store: store, log: log, cfg: cfg}
}

func (r *Resolver) fresh(e *model.PriceEntry) bool {
	return time.Since(e.UpdatedAt) < r.cfg.TTL
}

func fromEntry(e *model.PriceEntry, source string) *Info {
	return &Info{
		MarketHashName: e.MarketHashName,
		Currency:       e.Currency,
		PriceCents:     e.PriceCents,
		LowestPrice:    e.LowestPrice,
		MedianPrice:    e.MedianPrice,
		Volume:         e.Volume,
		IconURL:        e.IconURL,
		UpdatedAt:      e.UpdatedAt,
		Source:         source,
	}
}

// Get resolves one lookup key. It returns errs.ErrPriceUnavailable when
// neither the external source nor the cache can produce a value; the caller
// supplies its own fallback in that case.
func (r *Resolver) Get(ctx context.Context, key string, behavior Behavior) (*Info, error) {
	if key == "" {
		return nil, errs.ErrPriceUnavailable
	}

	cached, err := r.store.Get(ctx, key, r.cfg.Currency)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	if cached != nil && r.fresh(cached) {
		return fromEntry(cached, "cache"), nil
	}

	if behavior == StaleWhileRevalidate && cached != nil {
		go r.backgroundRefresh(key)
		return fromEntry(cached, "stale_cache"), nil
	}

	var lastErr error
	b := retry.WithMaxRetries(uint64(r.cfg.Attempts-1), retry.NewConstant(r.cfg.Backoff))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		if rerr := r.refresh(ctx, key); rerr != nil {
			lastErr = rerr
			return retry.RetryableError(rerr)
		}
		return nil
	})
	if err == nil {
		row, gerr := r.store.Get(ctx, key, r.cfg.Currency)
		if gerr == nil {
			return fromEntry(row, "live"), nil
		}
		err = gerr
	}
	if lastErr == nil {
		lastErr = err
	}

	if cached != nil {
		out := fromEntry(cached, "stale_cache")
		out.Err = lastErr
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s: %v", errs.ErrPriceUnavailable, key, lastErr)
}

// refresh runs the two independent sub-lookups concurrently and merges the
// results. The merged row is only written when at least one sub-lookup
// produced a non-null value, so a bad refresh cannot blank a good entry.
func (r *Resolver) refresh(ctx context.Context, key string) error {
	var (
		wg    sync.WaitGroup
		quote *Quote
		icon  *string
		qErr  error
		iErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		quote, qErr = r.fetch.PriceOverview(ctx, key)
	}()
	go func() {
		defer wg.Done()
		icon, iErr = r.fetch.ListingImage(ctx, key)
	}()
	wg.Wait()

	merged := &model.PriceEntry{
		MarketHashName: key,
		Currency:       r.cfg.Currency,
		IconURL:        icon,
		UpdatedAt:      time.Now().UTC(),
	}
	if quote != nil {
		merged.PriceCents = quote.PriceCents
		merged.LowestPrice = quote.LowestPrice
		merged.MedianPrice = quote.MedianPrice
		merged.Volume = quote.Volume
	}

	if merged.PriceCents == nil && merged.IconURL == nil {
		if qErr != nil {
			return fmt.Errorf("market refresh %q: %w", key, qErr)
		}
		if iErr != nil {
			return fmt.Errorf("market refresh %q: %w", key, iErr)
		}
		return fmt.Errorf("market refresh %q: empty result", key)
	}
	return r.store.Upsert(ctx, merged)
}

// backgroundRefresh is the fire-and-forget half of stale-while-revalidate.
// It is detached from the triggering request; failure is logged and dropped.
func (r *Resolver) backgroundRefresh(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RefreshTimeout)
	defer cancel()
	if err := r.refresh(ctx, key); err != nil {
		r.log.Warn("background price refresh failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// GetBatch resolves many keys with at most BatchLimit external lookups in
// flight. Results are positionally aligned with keys; unavailable lookups
// yield nil entries.
func (r *Resolver) GetBatch(ctx context.Context, keys []string, behavior Behavior) []*Info {
	out := make([]*Info, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.BatchLimit)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			info, err := r.Get(gctx, key, behavior)
			if err != nil {
				return nil // unavailable entries stay nil
			}
			out[i] = info
			return nil
		})
	}
	_ = g.Wait()
	return out
}
