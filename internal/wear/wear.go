// Package wear simulates the cosmetic quality of an obtained item: a
// continuous float in [0,1) mapped onto five ordered bands. The draw is
// cosmetic flavor, not part of the fairness-audit chain, so it uses an
// independent CSPRNG rather than the committed seed.
package wear

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// Band is one wear tier with its inclusive upper bound and the price
// multiplier used when no external quote is available.
type Band struct {
	Name         string
	Short        string
	Max          float64
	FallbackMult float64
}

// Bands are typical CS wear ranges; individual skins may declare narrower ones.
var Bands = []Band{
	{Name: "Factory New", Short: "FN", Max: 0.07, FallbackMult: 1.35},
	{Name: "Minimal Wear", Short: "MW", Max: 0.15, FallbackMult: 1.15},
	{Name: "Field-Tested", Short: "FT", Max: 0.38, FallbackMult: 1.00},
	{Name: "Well-Worn", Short: "WW", Max: 0.45, FallbackMult: 0.80},
	{Name: "Battle-Scarred", Short: "BS", Max: 1.00, FallbackMult: 0.65},
}

// Result is a drawn wear: band plus the concrete float.
type Result struct {
	Band
	Float float64
}

// Rand01 draws uniformly from {0, 0.0001, ..., 0.9999} using crypto/rand.
// An entropy failure is returned rather than mapped to any float: every
// candidate default lands in some band, and 0 would be the most valuable one.
func Rand01() (float64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return 0, fmt.Errorf("draw wear float: %w", err)
	}
	return float64(v.Int64()) / 10000, nil
}

// FromFloat maps a float to its band, clamping input to [0, 0.9999].
// Boundary values are inclusive to the lower band (exactly 0.07 is FN).
func FromFloat(f float64) Result {
	x := f
	if x < 0 {
		x = 0
	}
	if x > 0.9999 {
		x = 0.9999
	}
	for _, b := range Bands {
		if x <= b.Max {
			return Result{Band: b, Float: x}
		}
	}
	return Result{Band: Bands[len(Bands)-1], Float: x}
}

func clamp01(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	n := *p
	if n < 0 {
		n = 0
	}
	if n > 1 {
		n = 1
	}
	return n, true
}

// Roll draws a wear float, scaled into the item's declared sub-range when one
// exists so the result is valid for that skin.
func Roll(minFloat, maxFloat *float64) (Result, error) {
	f, err := Rand01()
	if err != nil {
		return Result{}, err
	}
	lo, okLo := clamp01(minFloat)
	hi, okHi := clamp01(maxFloat)
	if okLo || okHi {
		if !okHi {
			hi = 1
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return FromFloat(lo + (hi-lo)*f), nil
	}
	return FromFloat(f), nil
}

// DefaultTier is used when composing a lookup name without a drawn wear.
const DefaultTier = "Field-Tested"

// noWearRe matches item classes listed on the market without a wear suffix.
var noWearRe = regexp.MustCompile(`^(?i:Sticker|Patch|Music Kit|Sealed Graffiti|Collectible|Pin|Case Key|Operation|Souvenir|Storage|Viewer Pass)`)

// MarketHashName composes the external lookup key for an item at a given
// wear: most skins are listed as "Name (Field-Tested)", StatTrak variants
// carry the trademark prefix, and sticker-like classes plus vanilla knives
// ("★ Bayonet" without a finish) have no wear variant at all.
func MarketHashName(base, tier string, statTrak bool) string {
	b := strings.TrimSpace(base)
	if b == "" {
		return ""
	}
	prefix := ""
	if statTrak {
		prefix = "StatTrak™ "
	}
	vanilla := strings.HasPrefix(b, "★") && !strings.Contains(b, "|")
	if noWearRe.MatchString(b) || vanilla {
		return prefix + b
	}
	if tier == "" {
		tier = DefaultTier
	}
	return prefix + b + " (" + tier + ")"
}
