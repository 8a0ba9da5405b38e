// Package promo decodes active promotional event payloads into the typed
// modifiers the economy consumes. The engine never schedules events; it only
// reads whatever window currently applies.
package promo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/casebros/case-engine/internal/errs"
	"github.com/casebros/case-engine/internal/model"
	"github.com/casebros/case-engine/internal/repository"
)

// Event kinds stored in promo_events.
const (
	KindBrokenCase = "broken_case"
	KindGemBoost   = "gem_boost"
)

// Provider reads at most one active modifier of each kind.
type Provider struct {
	repo repository.PromoRepository
	log  *zap.Logger
}

// NewProvider constructs a modifier provider.
func NewProvider(repo repository.PromoRepository, log *zap.Logger) *Provider {
	return &Provider{repo: repo, log: log}
}

// Active returns the modifiers applying at now. A missing event of either
// kind is normal; a malformed payload is logged and skipped so a bad content
// row cannot break opens.
func (p *Provider) Active(ctx context.Context, now time.Time) model.Modifiers {
	var out model.Modifiers

	if payload, err := p.repo.ActivePayload(ctx, KindBrokenCase, now); err == nil {
		var b model.BrokenCaseBoost
		if jerr := json.Unmarshal(payload, &b); jerr != nil {
			p.log.Warn("malformed broken_case payload", zap.Error(jerr))
		} else {
			out.Broken = &b
		}
	} else if !errors.Is(err, errs.ErrNotFound) {
		p.log.Warn("broken_case lookup failed", zap.Error(err))
	}

	if payload, err := p.repo.ActivePayload(ctx, KindGemBoost, now); err == nil {
		var g model.GlobalBoost
		if jerr := json.Unmarshal(payload, &g); jerr != nil {
			p.log.Warn("malformed gem_boost payload", zap.Error(jerr))
		} else {
			out.Boost = &g
		}
	} else if !errors.Is(err, errs.ErrNotFound) {
		p.log.Warn("gem_boost lookup failed", zap.Error(err))
	}

	return out
}
