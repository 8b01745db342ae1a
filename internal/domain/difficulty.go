package domain

import "strings"

// DifficultyTier bundles the timing, hinting, and scoring parameters of one
// difficulty preset. Exactly four tiers exist; the table is immutable.
type DifficultyTier struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	TimeLimitSeconds   int `json:"timeLimitSeconds"`
	TimeBonusPerSecond int `json:"timeBonusPerSecond"`

	MaxHints           int  `json:"maxHints"`
	HintPenaltySeconds int  `json:"hintPenaltySeconds"`
	HintsEnabled       bool `json:"hintsEnabled"`

	PointsCorrect int `json:"pointsCorrect"`
	PointsWrong   int `json:"pointsWrong"`
	PointsTimeout int `json:"pointsTimeout"`

	AutoFillSearch      bool `json:"autoFillSearch"`
	ShowSearchOperators bool `json:"showSearchOperators"`
}

var tierOrder = []string{"simple", "medium", "hard", "expert"}

var tiers = map[string]DifficultyTier{
	"simple": {
		ID:                  "simple",
		Name:                "Simple",
		Description:         "Easy challenge for beginners",
		TimeLimitSeconds:    60,
		TimeBonusPerSecond:  5,
		MaxHints:            2,
		HintPenaltySeconds:  10,
		HintsEnabled:        true,
		PointsCorrect:       10,
		PointsWrong:         -2,
		PointsTimeout:       -5,
		AutoFillSearch:      true,
		ShowSearchOperators: true,
	},
	"medium": {
		ID:                  "medium",
		Name:                "Medium",
		Description:         "Requires searching to find the answer",
		TimeLimitSeconds:    120,
		TimeBonusPerSecond:  3,
		MaxHints:            3,
		HintPenaltySeconds:  15,
		HintsEnabled:        true,
		PointsCorrect:       20,
		PointsWrong:         -5,
		PointsTimeout:       -10,
		AutoFillSearch:      false,
		ShowSearchOperators: true,
	},
	"hard": {
		ID:                  "hard",
		Name:                "Hard",
		Description:         "Multi-step research required",
		TimeLimitSeconds:    180,
		TimeBonusPerSecond:  2,
		MaxHints:            5,
		HintPenaltySeconds:  20,
		HintsEnabled:        true,
		PointsCorrect:       50,
		PointsWrong:         -10,
		PointsTimeout:       -20,
		AutoFillSearch:      false,
		ShowSearchOperators: false,
	},
	"expert": {
		ID:                  "expert",
		Name:                "Expert",
		Description:         "Custom creator challenge - extremely difficult",
		TimeLimitSeconds:    300,
		TimeBonusPerSecond:  1,
		MaxHints:            10,
		HintPenaltySeconds:  30,
		HintsEnabled:        true,
		PointsCorrect:       100,
		PointsWrong:         -20,
		PointsTimeout:       -50,
		AutoFillSearch:      false,
		ShowSearchOperators: false,
	},
}

// LookupTier resolves a difficulty id, case-insensitively. Unknown or
// malformed ids resolve to medium; the second return value reports whether a
// substitution happened so callers can log it.
func LookupTier(id string) (DifficultyTier, bool) {
	if tier, ok := tiers[strings.ToLower(id)]; ok {
		return tier, false
	}
	return tiers["medium"], true
}

// AllTiers returns all tiers in fixed simple..expert order.
func AllTiers() []DifficultyTier {
	out := make([]DifficultyTier, 0, len(tierOrder))
	for _, id := range tierOrder {
		out = append(out, tiers[id])
	}
	return out
}

// ValidTier reports whether the id names a known tier.
func ValidTier(id string) bool {
	_, ok := tiers[strings.ToLower(id)]
	return ok
}
