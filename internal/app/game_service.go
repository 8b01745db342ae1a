package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"linkhunt-service/internal/domain"
	"linkhunt-service/internal/hub"
)

// ChallengeRepository resolves challenge records and writes back their
// denormalized aggregates (in-memory, Redis-cached, Postgres, etc).
// UpdateAggregates covers the outcome counters and average time only;
// TotalViews is owned by IncrementViews and must survive the write.
type ChallengeRepository interface {
	FindChallenge(ctx context.Context, shortCode string) (domain.Challenge, error)
	IncrementViews(ctx context.Context, shortCode string) error
	UpdateAggregates(ctx context.Context, shortCode string, agg domain.Aggregates) error
}

// SessionRepository stores game sessions. Sessions are never deleted; the
// full per-challenge set backs aggregate recomputation.
type SessionRepository interface {
	PersistSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	LoadSessions(ctx context.Context, shortCode string) ([]domain.Session, error)
}

// ErrAggregateRefresh marks a terminal transition whose aggregate rescan
// failed. The transition itself stands; RefreshAggregates can be retried.
var ErrAggregateRefresh = errors.New("aggregate refresh failed")

// EventSink stages events for asynchronous fan-out to a challenge's room.
type EventSink interface {
	Enqueue(shortCode string, ev hub.Event)
}

// Presence reports how many observers currently watch a challenge.
type Presence interface {
	ActiveObservers(shortCode string) int
}

// GameService is the session state machine: it owns the pending → terminal
// lifecycle of one play attempt and the aggregate rescan each terminal
// transition triggers.
type GameService struct {
	challenges ChallengeRepository
	sessions   SessionRepository
	events     EventSink
	presence   Presence
	log        zerolog.Logger
	now        func() time.Time

	terminal keyedMutex
}

func NewGameService(challenges ChallengeRepository, sessions SessionRepository, events EventSink, presence Presence, log zerolog.Logger) *GameService {
	return &GameService{
		challenges: challenges,
		sessions:   sessions,
		events:     events,
		presence:   presence,
		log:        log,
		now:        time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *GameService) WithClock(now func() time.Time) *GameService {
	s.now = now
	return s
}

// Start opens a session against a challenge: the challenge's view counter is
// bumped, a pending session is persisted, and the room hears game_start.
func (s *GameService) Start(ctx context.Context, shortCode string) (domain.Session, error) {
	challenge, err := s.challenges.FindChallenge(ctx, shortCode)
	if err != nil {
		return domain.Session{}, err
	}
	if challenge.Banned {
		return domain.Session{}, domain.ErrChallengeBanned
	}

	session := domain.Session{
		ID:        uuid.NewString(),
		ShortCode: shortCode,
		StartedAt: s.now(),
		Outcome:   domain.OutcomePending,
	}
	if err := s.sessions.PersistSession(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("persist session: %w", err)
	}
	if err := s.challenges.IncrementViews(ctx, shortCode); err != nil {
		s.log.Warn().Str("short_code", shortCode).Err(err).Msg("view counter increment failed")
	}

	s.events.Enqueue(shortCode, hub.GameStartEvent{
		SessionID:     session.ID,
		ActivePlayers: s.presence.ActiveObservers(shortCode),
	})
	return session, nil
}

// Hint records a hint request at the given level and returns the hint text.
// Valid only while pending; the level is capped by the tier, and hints_used
// only ever increases. The read-mutate-persist runs under the per-session
// guard so a racing terminal transition cannot be overwritten with the stale
// pending state.
func (s *GameService) Hint(ctx context.Context, sessionID string, level int) (string, domain.Session, error) {
	unlock := s.terminal.lock(sessionID)
	defer unlock()

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return "", domain.Session{}, err
	}
	if session.Outcome.Terminal() {
		return "", domain.Session{}, domain.ErrAlreadyTerminal
	}

	challenge, err := s.challenges.FindChallenge(ctx, session.ShortCode)
	if err != nil {
		return "", domain.Session{}, err
	}
	tier := s.tierFor(challenge)
	if level > tier.MaxHints {
		return "", domain.Session{}, domain.ErrHintLimitExceeded
	}

	if level > session.HintsUsed {
		session.HintsUsed = level
		if err := s.sessions.PersistSession(ctx, session); err != nil {
			return "", domain.Session{}, fmt.Errorf("persist session: %w", err)
		}
	}

	hint := domain.HintFor(tier, domain.AnalyzeURL(challenge.LongURL), level)
	return hint, session, nil
}

// RecordAdImpression accumulates an ad view. Valid in any state; ad events
// may land after the terminal transition.
func (s *GameService) RecordAdImpression(ctx context.Context, sessionID, placement string) error {
	return s.mutateAdCounters(ctx, sessionID, placement, func(session *domain.Session) {
		session.AdsShown++
	})
}

// RecordAdClick accumulates an ad click and its revenue estimate.
func (s *GameService) RecordAdClick(ctx context.Context, sessionID, placement string, revenue float64) error {
	return s.mutateAdCounters(ctx, sessionID, placement, func(session *domain.Session) {
		session.AdsClicked++
		session.EstimatedRevenue += revenue
	})
}

func (s *GameService) mutateAdCounters(ctx context.Context, sessionID, placement string, mutate func(*domain.Session)) error {
	unlock := s.terminal.lock(sessionID)
	defer unlock()

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	mutate(&session)
	s.log.Debug().Str("session_id", sessionID).Str("placement", placement).Msg("ad event recorded")
	return s.sessions.PersistSession(ctx, session)
}

// Complete transitions pending → completed with the run's results.
func (s *GameService) Complete(ctx context.Context, sessionID string, completionTime float64, hintsUsed, attempts, score int) error {
	return s.terminalize(ctx, sessionID, func(session *domain.Session) {
		session.Outcome = domain.OutcomeCompleted
		session.CompletionTime = completionTime
		session.HintsUsed = hintsUsed
		session.Attempts = attempts
		session.Score = score
	})
}

// Fail transitions pending → failed.
func (s *GameService) Fail(ctx context.Context, sessionID string, attempts, hintsUsed, score int) error {
	return s.terminalize(ctx, sessionID, func(session *domain.Session) {
		session.Outcome = domain.OutcomeFailed
		session.Attempts = attempts
		session.HintsUsed = hintsUsed
		session.Score = score
	})
}

// Timeout transitions pending → timeout.
func (s *GameService) Timeout(ctx context.Context, sessionID string, attempts, hintsUsed, score int) error {
	return s.terminalize(ctx, sessionID, func(session *domain.Session) {
		session.Outcome = domain.OutcomeTimeout
		session.Attempts = attempts
		session.HintsUsed = hintsUsed
		session.Score = score
	})
}

// Abandon transitions pending → abandoned. Unlike the other terminal calls
// it carries no payload and tolerates racing a normal completion: a session
// that is already terminal is left untouched and no error is returned.
func (s *GameService) Abandon(ctx context.Context, sessionID string) error {
	unlock := s.terminal.lock(sessionID)
	defer unlock()

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Outcome.Terminal() {
		return nil
	}

	session.Outcome = domain.OutcomeAbandoned
	session.EndedAt = s.now()
	if err := s.sessions.PersistSession(ctx, session); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	s.events.Enqueue(session.ShortCode, hub.GameCompleteEvent{Outcome: domain.OutcomeAbandoned})
	return s.refreshAfterTerminal(ctx, session.ShortCode)
}

// terminalize applies a single terminal transition under the per-session
// guard: exactly one terminal call wins, later ones get ErrAlreadyTerminal.
func (s *GameService) terminalize(ctx context.Context, sessionID string, apply func(*domain.Session)) error {
	unlock := s.terminal.lock(sessionID)
	defer unlock()

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Outcome.Terminal() {
		return domain.ErrAlreadyTerminal
	}

	apply(&session)
	session.EndedAt = s.now()
	if err := s.sessions.PersistSession(ctx, session); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	s.events.Enqueue(session.ShortCode, hub.GameCompleteEvent{
		Outcome: session.Outcome,
		Score:   session.Score,
	})
	return s.refreshAfterTerminal(ctx, session.ShortCode)
}

// refreshAfterTerminal rescans the challenge's sessions and writes the
// aggregates back. A failure here is reported but the terminal state stands;
// RefreshAggregates can be re-run safely.
func (s *GameService) refreshAfterTerminal(ctx context.Context, shortCode string) error {
	if err := s.RefreshAggregates(ctx, shortCode); err != nil {
		s.log.Error().Str("short_code", shortCode).Err(err).Msg("aggregate recompute failed after terminal transition")
		return errors.Join(ErrAggregateRefresh, err)
	}
	return nil
}

// RefreshAggregates recomputes a challenge's denormalized counters from the
// full session set. Idempotent: it is a rescan, not an incremental patch.
// The average completion time spans every session carrying a completion
// time, not only completed ones.
func (s *GameService) RefreshAggregates(ctx context.Context, shortCode string) error {
	sessions, err := s.sessions.LoadSessions(ctx, shortCode)
	if err != nil {
		return err
	}

	agg := domain.Aggregates{}
	timed := 0
	var totalTime float64
	for _, session := range sessions {
		switch session.Outcome {
		case domain.OutcomeCompleted:
			agg.TotalCompletions++
		case domain.OutcomeFailed:
			agg.TotalFailures++
		case domain.OutcomeTimeout:
			agg.TotalTimeouts++
		}
		if session.CompletionTime > 0 {
			timed++
			totalTime += session.CompletionTime
		}
	}
	if timed > 0 {
		agg.AvgCompletionTime = totalTime / float64(timed)
	}

	return s.challenges.UpdateAggregates(ctx, shortCode, agg)
}

// Challenge resolves a challenge record for the request layer.
func (s *GameService) Challenge(ctx context.Context, shortCode string) (domain.Challenge, error) {
	return s.challenges.FindChallenge(ctx, shortCode)
}

// Session resolves a session record for the request layer.
func (s *GameService) Session(ctx context.Context, id string) (domain.Session, error) {
	return s.sessions.GetSession(ctx, id)
}

// Summary returns the challenge's current aggregate view.
func (s *GameService) Summary(ctx context.Context, shortCode string) (domain.Aggregates, error) {
	challenge, err := s.challenges.FindChallenge(ctx, shortCode)
	if err != nil {
		return domain.Aggregates{}, err
	}
	return challenge.Aggregates, nil
}

// Tier resolves a challenge's difficulty tier, logging the medium fallback
// when the stored id is unknown.
func (s *GameService) Tier(challenge domain.Challenge) domain.DifficultyTier {
	return s.tierFor(challenge)
}

func (s *GameService) tierFor(challenge domain.Challenge) domain.DifficultyTier {
	tier, substituted := domain.LookupTier(challenge.Difficulty)
	if substituted {
		s.log.Warn().Str("short_code", challenge.ShortCode).Str("difficulty", challenge.Difficulty).Msg("unknown difficulty id, using medium")
	}
	return tier
}
