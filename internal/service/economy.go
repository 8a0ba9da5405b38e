package service

// Mastery progression and earn-shaping arithmetic. All functions are pure and
// monotone so progression can never regress.

// masteryLevelStep is the XP required per mastery level.
const masteryLevelStep = 10

// masteryBonusPerLevel and masteryBonusLevelCap bound the gem bonus at +25%.
const (
	masteryBonusPerLevel = 0.01
	masteryBonusLevelCap = 25
	maxDiscount          = 0.95
)

// MasteryLevelFromXP derives the level for a total experience count.
func MasteryLevelFromXP(xp int64) int {
	if xp < 0 {
		return 0
	}
	return int(xp / masteryLevelStep)
}

// MasteryGemBonusMult derives the earn multiplier for a mastery level.
func MasteryGemBonusMult(level int) float64 {
	if level < 0 {
		level = 0
	}
	if level > masteryBonusLevelCap {
		level = masteryBonusLevelCap
	}
	return 1 + float64(level)*masteryBonusPerLevel
}

func clampInt64(n, lo, hi int64) int64 {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func clampFloat(n, lo, hi float64) float64 {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
