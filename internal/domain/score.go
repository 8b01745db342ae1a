package domain

// Breakdown itemizes how a final score was reached.
type Breakdown struct {
	BasePoints  int `json:"basePoints"`
	TimeBonus   int `json:"timeBonus"`
	HintPenalty int `json:"hintPenalty"`
	Total       int `json:"total"`
}

// Score converts a run's performance into points. Wrong answers earn the
// tier's wrong-answer value with no bonus or penalty. Correct answers earn
// the tier base plus the time bonus, minus 20% of the base per hint used
// (rounded down). The total never goes below zero.
func Score(tier DifficultyTier, timeRemaining float64, hintsUsed int, correct bool) Breakdown {
	b := Breakdown{}
	if correct {
		b.BasePoints = tier.PointsCorrect
		b.TimeBonus = int(timeRemaining * float64(tier.TimeBonusPerSecond))
		b.HintPenalty = -(hintsUsed * (tier.PointsCorrect / 5))
	} else {
		b.BasePoints = tier.PointsWrong
	}

	b.Total = b.BasePoints + b.TimeBonus + b.HintPenalty
	if b.Total < 0 {
		b.Total = 0
	}
	return b
}
