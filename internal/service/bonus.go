package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/casebros/case-engine/internal/errs"
	"github.com/casebros/case-engine/internal/repository"
)

// BonusConfig tunes the timed free-gems claim.
type BonusConfig struct {
	MinCents int64
	MaxCents int64
	Cooldown time.Duration
}

// BonusState reports whether a claim is currently possible.
type BonusState struct {
	CanClaim    bool       `json:"can_claim"`
	NextClaimAt *time.Time `json:"next_claim_at,omitempty"`
}

// BonusClaim is the result of a successful claim.
type BonusClaim struct {
	AmountCents     int64     `json:"amount_cents"`
	NewBalanceCents int64     `json:"new_balance_cents"`
	NextClaimAt     time.Time `json:"next_claim_at"`
}

// BonusService hands out a small random gem grant on a cooldown.
type BonusService interface {
	State(ctx context.Context, userID uuid.UUID) (*BonusState, error)
	Claim(ctx context.Context, userID uuid.UUID) (*BonusClaim, error)
}

type BonusServiceImpl struct {
	users repository.UserRepository
	cfg   BonusConfig
	log   *zap.Logger
}

// NewBonusService constructs the bonus service with sane defaults: 100 to 500
// gem cents every 6 hours.
func NewBonusService(users repository.UserRepository, cfg BonusConfig, log *zap.Logger) *BonusServiceImpl {
	if cfg.MinCents <= 0 {
		cfg.MinCents = 100
	}
	if cfg.MaxCents < cfg.MinCents {
		cfg.MaxCents = cfg.MinCents
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 6 * time.Hour
	}
	return &BonusServiceImpl{users: users, cfg: cfg, log: log}
}

func (s *BonusServiceImpl) State(ctx context.Context, userID uuid.UUID) (*BonusState, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrNotFound
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.LastBonusClaimAt == nil {
		return &BonusState{CanClaim: true}, nil
	}
	next := u.LastBonusClaimAt.Add(s.cfg.Cooldown)
	if time.Now().UTC().Before(next) {
		return &BonusState{CanClaim: false, NextClaimAt: &next}, nil
	}
	return &BonusState{CanClaim: true}, nil
}

func (s *BonusServiceImpl) Claim(ctx context.Context, userID uuid.UUID) (*BonusClaim, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrNotFound
	}
	amount := s.drawAmount()
	now := time.Now().UTC()
	meta, _ := json.Marshal(map[string]string{"type": "bro_bonus"})
	balance, err := s.users.ClaimBonus(ctx, userID, amount, s.cfg.Cooldown, now, meta)
	if err != nil {
		return nil, err
	}
	s.log.Info("bonus claimed",
		zap.String("user_id", userID.String()),
		zap.Int64("amount_cents", amount))
	return &BonusClaim{
		AmountCents:     amount,
		NewBalanceCents: balance,
		NextClaimAt:     now.Add(s.cfg.Cooldown),
	}, nil
}

// drawAmount picks uniformly in [MinCents, MaxCents].
func (s *BonusServiceImpl) drawAmount() int64 {
	span := s.cfg.MaxCents - s.cfg.MinCents
	if span <= 0 {
		return s.cfg.MinCents
	}
	n, err := rand.Int(rand.Reader, big.NewInt(span+1))
	if err != nil {
		return s.cfg.MinCents
	}
	return s.cfg.MinCents + n.Int64()
}
