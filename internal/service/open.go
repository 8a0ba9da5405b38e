// Package service contains application services: the case-opening economy
// controller, inventory disposal, the timed bonus and authentication.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/casebros/case-engine/internal/droptable"
	"github.com/casebros/case-engine/internal/errs"
	"github.com/casebros/case-engine/internal/fairness"
	"github.com/casebros/case-engine/internal/market"
	"github.com/casebros/case-engine/internal/model"
	"github.com/casebros/case-engine/internal/repository"
	"github.com/casebros/case-engine/internal/wear"
)

// PriceResolver is the slice of the market resolver the open flow needs.
type PriceResolver interface {
	Get(ctx context.Context, key string, behavior market.Behavior) (*market.Info, error)
}

// ModifierProvider supplies the promotional modifiers applying at a moment.
type ModifierProvider interface {
	Active(ctx context.Context, now time.Time) model.Modifiers
}

// OpenReceipt is the caller-facing result of one reward event.
type OpenReceipt struct {
	OpenID         uuid.UUID
	InventoryID    uuid.UUID
	CaseSlug       string
	CaseName       string
	CasePriceCents int64
	KeyPriceCents  int64
	ItemID         int64
	ItemName       string
	Rarity         string
	WearTier       string
	WearShort      string
	WearFloat      float64
	StatTrak       bool
	MarketHashName string
	ImageURL       string
	ValueCents     int64
	SpentCents     int64
	EarnedCents    int64
	BalanceCents   int64
	MasteryXP      int64
	MasteryLevel   int
}

// OpenConfig carries the tunable economy knobs for opens.
type OpenConfig struct {
	EarnRate        float64 // fraction of item value converted to gems
	PerOpenCapCents int64
	DailyCapCents   int64
	StatTrakChance  float64
	PriceBehavior   market.Behavior
}

// OpenService orchestrates reward events.
type OpenService interface {
	// Open performs one reward event end-to-end.
	Open(ctx context.Context, userID uuid.UUID, slug string) (*OpenReceipt, error)
	// Audit returns the immutable fairness record of a completed open.
	Audit(ctx context.Context, userID, openID uuid.UUID) (*model.Open, error)
}

type OpenServiceImpl struct {
	catalog repository.CatalogRepository
	opens   repository.OpenRepository
	prices  PriceResolver
	promos  ModifierProvider
	cfg     OpenConfig
	log     *zap.Logger
}

// NewOpenService constructs the economy controller.
func NewOpenService(
	catalog repository.CatalogRepository,
	opens repository.OpenRepository,
	prices PriceResolver,
	promos ModifierProvider,
	cfg OpenConfig,
	log *zap.Logger,
) *OpenServiceImpl {
	if cfg.EarnRate <= 0 {
		cfg.EarnRate = 0.25
	}
	if cfg.PerOpenCapCents <= 0 {
		cfg.PerOpenCapCents = 5000
	}
	if cfg.DailyCapCents <= 0 {
		cfg.DailyCapCents = 25000
	}
	return &OpenServiceImpl{catalog: catalog, opens: opens, prices: prices, promos: promos, cfg: cfg, log: log}
}

var glovesRe = regexp.MustCompile(`(?i)\bgloves\b`)

// appliedModifiers is the audit payload recorded with every open.
type appliedModifiers struct {
	StatTrak bool                   `json:"stattrak"`
	Wear     appliedWear            `json:"wear"`
	Market   appliedMarket          `json:"market"`
	Broken   *model.BrokenCaseBoost `json:"broken,omitempty"`
	Boost    *model.GlobalBoost     `json:"boost,omitempty"`
}

type appliedWear struct {
	Tier  string  `json:"tier"`
	Short string  `json:"short"`
	Float float64 `json:"float"`
}

type appliedMarket struct {
	MarketHashName string `json:"market_hash_name"`
	PriceCents     *int64 `json:"price_cents"`
	Source         string `json:"source,omitempty"`
}

// Open performs one reward event: cost and discount resolution, the fairness
// roll, weighted selection, wear simulation, value resolution and the capped
// earn, all committed atomically against the user's row.
func (s *OpenServiceImpl) Open(ctx context.Context, userID uuid.UUID, slug string) (*OpenReceipt, error) {
	if userID == uuid.Nil || slug == "" {
		return nil, fmt.Errorf("validation: empty userID/slug: %w", errs.ErrNotFound)
	}

	c, err := s.catalog.GetCaseBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return nil, errs.ErrSourceInactive
	}
	rows, err := s.catalog.ListCaseItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.ErrNoOutcomes
	}

	now := time.Now().UTC()
	mods := s.promos.Active(ctx, now)
	broken := mods.Broken
	if broken != nil && broken.CaseID != c.ID {
		broken = nil // scoped to a different case
	}

	var discount float64
	rareMult := 1.0
	if broken != nil {
		discount += broken.Discount
		if broken.RareWeightMult > 0 {
			rareMult = broken.RareWeightMult
		}
	}
	if mods.Boost != nil {
		discount += mods.Boost.Discount
	}
	discount = clampFloat(discount, 0, maxDiscount)

	casePrice := s.resolveCasePrice(ctx, c)
	cost := int64(float64(casePrice+c.KeyPriceCents) * (1 - discount))
	if cost < 0 {
		cost = 0
	}

	entries := droptable.Normalize(rows, rareMult)

	provision, err := newSeedPair()
	if err != nil {
		return nil, err
	}
	next, err := newSeedPair()
	if err != nil {
		return nil, err
	}
	openID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	invID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	eventMs := now.UnixMilli()
	today := now.Format("2006-01-02")

	decide := func(u *model.User, m *model.Mastery) (*repository.OpenDecision, error) {
		if u.GemsCents < cost {
			return nil, errs.ErrInsufficientBalance
		}

		nonce := u.Nonce + 1
		roll := fairness.Roll(u.ServerSeed, fairness.Message(nonce, c.ID, eventMs))
		chosen, perr := droptable.Pick(entries, roll)
		if perr != nil {
			return nil, errs.ErrNoOutcomes
		}

		w, werr := wear.Roll(chosen.MinFloat, chosen.MaxFloat)
		if werr != nil {
			return nil, werr
		}
		statTrak := false
		if s.cfg.StatTrakChance > 0 && !glovesRe.MatchString(chosen.Name) {
			draw, derr := wear.Rand01()
			if derr != nil {
				return nil, derr
			}
			statTrak = draw < s.cfg.StatTrakChance
		}

		base := chosen.MarketHashNameBase
		if base == "" {
			base = chosen.Name
		}
		hashName := wear.MarketHashName(base, w.Name, statTrak)

		// External value, falling back to the wear-scaled static price.
		valueCents := int64(float64(chosen.PriceCents)*w.FallbackMult + 0.5)
		imageURL := chosen.ImageURL
		priceSource := ""
		var quoted *int64
		if info, merr := s.prices.Get(ctx, hashName, s.cfg.PriceBehavior); merr == nil && info != nil {
			priceSource = info.Source
			if info.PriceCents != nil {
				valueCents = *info.PriceCents
				quoted = info.PriceCents
			}
			if info.IconURL != nil && *info.IconURL != "" {
				imageURL = *info.IconURL
			}
		}

		xp := m.XP + 1
		level := MasteryLevelFromXP(xp)
		boostEarnMult := 1.0
		if mods.Boost != nil && mods.Boost.EarnMult > 0 {
			boostEarnMult = mods.Boost.EarnMult
		}

		baseEarn := int64(float64(valueCents) * s.cfg.EarnRate)
		boosted := int64(float64(baseEarn) * MasteryGemBonusMult(level) * boostEarnMult)
		capped := clampInt64(boosted, 0, s.cfg.PerOpenCapCents)

		dayEarned := int64(0)
		if u.DailyEarnedDate == today {
			dayEarned = u.DailyEarnedCents
		}
		room := s.cfg.DailyCapCents - dayEarned
		if room < 0 {
			room = 0
		}
		earned := capped
		if earned > room {
			earned = room
		}
		dayEarned += earned

		// The audit record is only complete with these payloads, so a failed
		// encode aborts the open instead of committing a blank.
		modPayload, jerr := json.Marshal(appliedModifiers{
			StatTrak: statTrak,
			Wear:     appliedWear{Tier: w.Name, Short: w.Short, Float: w.Float},
			Market:   appliedMarket{MarketHashName: hashName, PriceCents: quoted, Source: priceSource},
			Broken:   broken,
			Boost:    mods.Boost,
		})
		if jerr != nil {
			return nil, fmt.Errorf("encode modifiers: %w", jerr)
		}
		spendMeta, jerr := json.Marshal(map[string]string{"case": c.Slug})
		if jerr != nil {
			return nil, fmt.Errorf("encode spend meta: %w", jerr)
		}
		earnMeta, jerr := json.Marshal(map[string]string{"item": chosen.Name})
		if jerr != nil {
			return nil, fmt.Errorf("encode earn meta: %w", jerr)
		}

		return &repository.OpenDecision{
			OpenID:           openID,
			InventoryID:      invID,
			ItemID:           chosen.ID,
			ItemName:         chosen.Name,
			SpentCents:       cost,
			EarnedCents:      earned,
			Nonce:            nonce,
			EventTimeMs:      eventMs,
			Roll:             roll,
			WearTier:         w.Name,
			WearFloat:        w.Float,
			MarketHashName:   hashName,
			ImageURL:         imageURL,
			ValueCents:       valueCents,
			Modifiers:        modPayload,
			MasteryXP:        xp,
			MasteryLevel:     level,
			DailyEarnedCents: dayEarned,
			DailyEarnedDate:  today,
			SpendMeta:        spendMeta,
			EarnMeta:         earnMeta,
		}, nil
	}

	u, d, err := s.opens.PerformOpen(ctx, userID, c.ID, provision, next, decide)
	if err != nil {
		return nil, err
	}

	// Best-effort decode of the committed payload; it only fills receipt
	// display fields, the transaction is already durable.
	var applied appliedModifiers
	_ = json.Unmarshal(d.Modifiers, &applied)

	return &OpenReceipt{
		OpenID:         d.OpenID,
		InventoryID:    d.InventoryID,
		CaseSlug:       c.Slug,
		CaseName:       c.Name,
		CasePriceCents: casePrice,
		KeyPriceCents:  c.KeyPriceCents,
		ItemID:         d.ItemID,
		ItemName:       d.ItemName,
		Rarity:         rarityOf(rows, d.ItemID),
		WearTier:       d.WearTier,
		WearShort:      applied.Wear.Short,
		WearFloat:      d.WearFloat,
		StatTrak:       applied.StatTrak,
		MarketHashName: d.MarketHashName,
		ImageURL:       d.ImageURL,
		ValueCents:     d.ValueCents,
		SpentCents:     d.SpentCents,
		EarnedCents:    d.EarnedCents,
		BalanceCents:   u.GemsCents,
		MasteryXP:      d.MasteryXP,
		MasteryLevel:   d.MasteryLevel,
	}, nil
}

// Audit returns the open record; everything a third party needs to recompute
// the roll is on it.
func (s *OpenServiceImpl) Audit(ctx context.Context, userID, openID uuid.UUID) (*model.Open, error) {
	if userID == uuid.Nil || openID == uuid.Nil {
		return nil, errs.ErrNotFound
	}
	return s.opens.GetOpen(ctx, userID, openID)
}

// resolveCasePrice prefers a live market quote for the case itself and falls
// back to the configured static price.
func (s *OpenServiceImpl) resolveCasePrice(ctx context.Context, c *model.Case) int64 {
	key := c.MarketHashName
	if key == "" {
		key = c.Name
	}
	info, err := s.prices.Get(ctx, key, s.cfg.PriceBehavior)
	if err != nil {
		if !errors.Is(err, errs.ErrPriceUnavailable) {
			s.log.Warn("case price lookup failed", zap.String("case", c.Slug), zap.Error(err))
		}
		return c.PriceCents
	}
	if info == nil || info.PriceCents == nil {
		return c.PriceCents
	}
	return *info.PriceCents
}

func newSeedPair() (repository.SeedPair, error) {
	seed, err := fairness.NewSeed()
	if err != nil {
		return repository.SeedPair{}, err
	}
	return repository.SeedPair{Seed: seed, Commitment: fairness.Commitment(seed)}, nil
}

func rarityOf(rows []model.CaseItem, itemID int64) string {
	for _, r := range rows {
		if r.ID == itemID {
			return r.Rarity
		}
	}
	return ""
}
