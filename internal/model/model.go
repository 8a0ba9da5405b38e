// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// User is a player account. Balances are integer cents of the virtual
// currency ("gems"); the fairness seed pair lives on the row and is only
// mutated inside the open transaction.
type User struct {
	ID               uuid.UUID // PK
	Username         string    // unique
	PwdHash          []byte    // Argon2id(password, SaltAuth)
	SaltAuth         []byte    // per-user auth salt
	GemsCents        int64     // balance, never negative
	ServerSeed       string    // current secret seed (hex), revealed after rotation
	ServerSeedHash   string    // sha256 commitment published before use
	Nonce            int64     // strictly increasing per open
	DailyEarnedCents int64     // running total for DailyEarnedDate
	DailyEarnedDate  string    // UTC calendar day "2006-01-02"
	LastBonusClaimAt *time.Time
	CreatedAt        time.Time
}

// Case is a purchasable reward source yielding one random item.
type Case struct {
	ID             int64
	Slug           string
	Name           string
	PriceCents     int64  // static fallback when the market has no quote
	KeyPriceCents  int64  // auxiliary fixed cost per open
	MarketHashName string // external price-lookup key
	Active         bool
}

// Rarity tiers, ordered from common to rare.
const (
	RarityConsumer      = "Consumer"
	RarityIndustrial    = "Industrial"
	RarityMilSpec       = "Mil-Spec"
	RarityRestricted    = "Restricted"
	RarityClassified    = "Classified"
	RarityCovert        = "Covert"
	RarityExtraordinary = "Extraordinary"
)

// Item is a possible outcome of opening a case.
type Item struct {
	ID                 int64
	Name               string
	Rarity             string
	PriceCents         int64  // base fallback value
	MarketHashNameBase string // lookup key before the wear suffix is applied
	ImageURL           string
	MinFloat           *float64 // optional valid wear sub-range
	MaxFloat           *float64
}

// CaseItem is one drop-table row: an item inside a case with an integer weight >= 1.
type CaseItem struct {
	Item
	Weight int64
}

// Open is the immutable audit record of one reward event. It captures every
// fairness input so a third party can recompute the roll after seed reveal.
type Open struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	CaseID         int64
	ItemID         int64
	SpentCents     int64
	EarnedCents    int64
	ServerSeedHash string
	ServerSeed     string
	Nonce          int64
	EventTimeMs    int64 // part of the HMAC message
	Roll           uint64
	WearTier       string
	WearFloat      float64
	Modifiers      []byte // JSON payload of applied modifiers
	CreatedAt      time.Time
}

// InventoryItem is a snapshot of one obtained item, priced at open time so a
// later sale pays out against the same value the user saw.
type InventoryItem struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	ItemID         int64
	OpenID         uuid.UUID
	ItemName       string
	Rarity         string
	WearTier       string
	WearFloat      float64
	MarketHashName string
	ImageURL       string
	ValueCents     int64
	Sold           bool
	SoldAt         *time.Time
	SoldForCents   *int64
	ObtainedAt     time.Time
}

// Mastery tracks per (user, case) progression. Level is a pure monotone
// function of XP.
type Mastery struct {
	UserID uuid.UUID
	CaseID int64
	XP     int64
	Level  int
}

// PriceEntry is one cached external market quote keyed by (hash name, currency).
type PriceEntry struct {
	MarketHashName string
	Currency       int
	PriceCents     *int64
	LowestPrice    *string
	MedianPrice    *string
	Volume         *int64
	IconURL        *string
	UpdatedAt      time.Time
}

// LedgerEntry is one signed balance movement.
type LedgerEntry struct {
	ID          int64
	UserID      uuid.UUID
	Kind        string // "case_open_spend", "case_open_earn", "inventory_sell", "bonus_claim", "starting_balance"
	AmountCents int64
	Meta        []byte // JSON
	CreatedAt   time.Time
}

// BrokenCaseBoost is a promotional modifier scoped to one case: rare-tier
// weights are multiplied and the open is discounted.
type BrokenCaseBoost struct {
	CaseID         int64   `json:"case_id"`
	RareWeightMult float64 `json:"rare_weight_mult"`
	Discount       float64 `json:"discount"`
}

// GlobalBoost is a site-wide promotional modifier: earnings are multiplied
// and opens are discounted.
type GlobalBoost struct {
	EarnMult float64 `json:"gem_earn_mult"`
	Discount float64 `json:"discount"`
}

// Modifiers carries at most one active modifier of each kind for one open.
type Modifiers struct {
	Broken *BrokenCaseBoost
	Boost  *GlobalBoost
}

// Tokens is an issued access token and its expiry.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}
