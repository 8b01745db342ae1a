package domain

import "time"

// Outcome is the terminal state of a game session. A session starts pending
// and moves to exactly one of the other values, never back.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeAbandoned Outcome = "abandoned"
)

// Terminal reports whether the outcome is absorbing.
func (o Outcome) Terminal() bool {
	return o == OutcomeCompleted || o == OutcomeFailed || o == OutcomeTimeout || o == OutcomeAbandoned
}

// Challenge is a single guess-the-destination game instance, identified by its
// short code. The record itself is owned by the shortener; the engine reads it
// and writes back the denormalized aggregates.
type Challenge struct {
	ShortCode        string     `json:"shortCode"`
	LongURL          string     `json:"longUrl"`
	Difficulty       string     `json:"difficulty"`
	ChallengeText    string     `json:"challengeText,omitempty"`
	TimeLimitSeconds int        `json:"timeLimitSeconds"`
	Banned           bool       `json:"banned"`
	CreatedAt        time.Time  `json:"createdAt"`
	Aggregates       Aggregates `json:"aggregates"`
}

// Aggregates are the denormalized per-challenge counters, recomputed by a
// full session rescan on every terminal transition.
type Aggregates struct {
	TotalViews        int     `json:"totalViews"`
	TotalCompletions  int     `json:"totalCompletions"`
	TotalFailures     int     `json:"totalFailures"`
	TotalTimeouts     int     `json:"totalTimeouts"`
	AvgCompletionTime float64 `json:"avgCompletionTime"`
}

// CompletionRate is completions over views as a percentage.
func (a Aggregates) CompletionRate() float64 {
	if a.TotalViews == 0 {
		return 0
	}
	return float64(a.TotalCompletions) / float64(a.TotalViews) * 100
}

// Session is one player's attempt at a challenge. All fields other than the
// ad counters are frozen once Outcome turns terminal.
type Session struct {
	ID             string    `json:"id"`
	ShortCode      string    `json:"shortCode"`
	StartedAt      time.Time `json:"startedAt"`
	EndedAt        time.Time `json:"endedAt,omitempty"`
	Outcome        Outcome   `json:"outcome"`
	HintsUsed      int       `json:"hintsUsed"`
	Attempts       int       `json:"attempts"`
	CompletionTime float64   `json:"completionTime,omitempty"`
	Score          int       `json:"score"`

	// Ad events can straggle in after the terminal transition, so these
	// stay mutable for the session's whole lifetime.
	AdsShown         int     `json:"adsShown"`
	AdsClicked       int     `json:"adsClicked"`
	EstimatedRevenue float64 `json:"estimatedRevenue"`
}

// LeaderboardEntry is one completed, opted-in run. Rank and Percentile are a
// cache of the (score desc, time asc) order and are rederivable from the
// entry set alone.
type LeaderboardEntry struct {
	ID             string    `json:"id"`
	ShortCode      string    `json:"shortCode"`
	Nickname       string    `json:"nickname"`
	Country        string    `json:"country,omitempty"`
	CompletionTime float64   `json:"completionTime"`
	HintsUsed      int       `json:"hintsUsed"`
	Score          int       `json:"score"`
	Difficulty     string    `json:"difficulty"`
	Rank           int       `json:"rank"`
	Percentile     float64   `json:"percentile"`
	CompletedAt    time.Time `json:"completedAt"`
}

// TimeWindow restricts a global leaderboard query.
type TimeWindow string

const (
	WindowToday TimeWindow = "today"
	WindowWeek  TimeWindow = "week"
	WindowAll   TimeWindow = "all"
)

// Valid reports whether the window is one of the fixed filters.
func (w TimeWindow) Valid() bool {
	return w == WindowToday || w == WindowWeek || w == WindowAll
}

// CutOff returns the earliest CompletedAt admitted by the window, relative to
// now in UTC. The zero time means unrestricted.
func (w TimeWindow) CutOff(now time.Time) time.Time {
	switch w {
	case WindowToday:
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case WindowWeek:
		return now.UTC().Add(-7 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}
