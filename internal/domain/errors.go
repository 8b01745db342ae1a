package domain

import "errors"

var (
	// ErrChallengeNotFound is returned when a short code does not resolve.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeBanned is returned when a banned challenge refuses new sessions.
	ErrChallengeBanned = errors.New("challenge is banned")
	// ErrSessionNotFound is returned when a session id does not resolve.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAlreadyTerminal rejects a second terminal transition on the same session.
	ErrAlreadyTerminal = errors.New("session already reached a terminal outcome")
	// ErrHintLimitExceeded rejects hint levels beyond the tier's maximum.
	ErrHintLimitExceeded = errors.New("maximum hints exceeded")
	// ErrEntryNotFound indicates a leaderboard entry id is unknown.
	ErrEntryNotFound = errors.New("leaderboard entry not found")
)
