// Package droptable selects one item from a weighted table given a fairness
// roll. Selection is inverse-CDF sampling over integer weights: reproducible
// from the same roll and exact proportional odds in expectation.
package droptable

import (
	"errors"

	"github.com/casebros/case-engine/internal/model"
)

// ErrEmpty is returned for a case with no drop-table rows.
var ErrEmpty = errors.New("empty drop table")

// rareRarities are the tiers a broken-case event boosts.
var rareRarities = map[string]bool{
	model.RarityClassified:    true,
	model.RarityCovert:        true,
	model.RarityExtraordinary: true,
}

// Entry is one weighted candidate after boost application.
type Entry struct {
	Item      model.CaseItem
	EffWeight int64
}

// Normalize applies the rare-tier weight multiplier and floors every
// effective weight to >= 1 so no item can be boosted out of existence.
func Normalize(rows []model.CaseItem, rareMult float64) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		w := r.Weight
		if w < 1 {
			w = 1
		}
		if rareMult != 1.0 && rareRarities[r.Rarity] {
			w = int64(float64(w) * rareMult)
			if w < 1 {
				w = 1
			}
		}
		out = append(out, Entry{Item: r, EffWeight: w})
	}
	return out
}

// Pick reduces the roll modulo the total weight and walks the cumulative
// distribution; the first entry whose cumulative weight exceeds the reduced
// roll wins.
func Pick(entries []Entry, roll uint64) (model.CaseItem, error) {
	if len(entries) == 0 {
		return model.CaseItem{}, ErrEmpty
	}
	var total int64
	for _, e := range entries {
		total += e.EffWeight
	}
	target := int64(roll % uint64(total))
	var acc int64
	for _, e := range entries {
		acc += e.EffWeight
		if target < acc {
			return e.Item, nil
		}
	}
	return entries[len(entries)-1].Item, nil
}
