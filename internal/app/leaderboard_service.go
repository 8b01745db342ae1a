package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"linkhunt-service/internal/domain"
	"linkhunt-service/internal/hub"
)

// LeaderboardRepository stores completed-run entries. LoadEntries with an
// empty short code spans all challenges; the window restricts CompletedAt.
// Implementations must return entries in insertion order so tie-breaking
// stays stable across recomputes.
type LeaderboardRepository interface {
	PersistEntry(ctx context.Context, entry domain.LeaderboardEntry) error
	LoadEntries(ctx context.Context, shortCode string, window domain.TimeWindow) ([]domain.LeaderboardEntry, error)
	UpdateRanks(ctx context.Context, entries []domain.LeaderboardEntry) error
}

// LeaderboardService orders and ranks submitted scores. Rank assignment is
// always a full recompute over the challenge's entry set, serialized per
// challenge; different challenges recompute independently.
type LeaderboardService struct {
	entries LeaderboardRepository
	events  EventSink
	log     zerolog.Logger
	now     func() time.Time

	ranks keyedMutex
}

// TopBroadcastLimit is how many entries ride a leaderboard_update event.
const TopBroadcastLimit = 10

func NewLeaderboardService(entries LeaderboardRepository, events EventSink, log zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		entries: entries,
		events:  events,
		log:     log,
		now:     time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *LeaderboardService) WithClock(now func() time.Time) *LeaderboardService {
	s.now = now
	return s
}

// Submit appends a completed run to a challenge's leaderboard, recomputes
// every rank for that challenge, and pushes new_score plus the refreshed
// top-N to the room.
func (s *LeaderboardService) Submit(ctx context.Context, shortCode, nickname string, completionTime float64, hintsUsed, score int, tierID, country string) (string, error) {
	tier, substituted := domain.LookupTier(tierID)
	if substituted {
		s.log.Warn().Str("short_code", shortCode).Str("difficulty", tierID).Msg("unknown difficulty id on submission, using medium")
	}
	if nickname == "" {
		nickname = "Anonymous"
	}

	entry := domain.LeaderboardEntry{
		ID:             uuid.NewString(),
		ShortCode:      shortCode,
		Nickname:       nickname,
		Country:        country,
		CompletionTime: completionTime,
		HintsUsed:      hintsUsed,
		Score:          score,
		Difficulty:     tier.ID,
		CompletedAt:    s.now(),
	}

	unlock := s.ranks.lock(shortCode)
	defer unlock()

	if err := s.entries.PersistEntry(ctx, entry); err != nil {
		return "", fmt.Errorf("persist entry: %w", err)
	}
	if err := s.recomputeLocked(ctx, shortCode); err != nil {
		return "", err
	}

	s.events.Enqueue(shortCode, hub.NewScoreEvent{
		Nickname:       entry.Nickname,
		Score:          entry.Score,
		CompletionTime: entry.CompletionTime,
		HintsUsed:      entry.HintsUsed,
		Difficulty:     entry.Difficulty,
		EntryID:        entry.ID,
	})
	if top, err := s.topLocked(ctx, shortCode, TopBroadcastLimit); err == nil {
		s.events.Enqueue(shortCode, hub.LeaderboardUpdateEvent{Entries: top})
	}

	return entry.ID, nil
}

// RecomputeRanks rebuilds dense 1..N ranks and percentiles for a challenge
// from its current entry set. Idempotent: rerunning on an unchanged set
// yields identical results.
func (s *LeaderboardService) RecomputeRanks(ctx context.Context, shortCode string) error {
	unlock := s.ranks.lock(shortCode)
	defer unlock()
	return s.recomputeLocked(ctx, shortCode)
}

func (s *LeaderboardService) recomputeLocked(ctx context.Context, shortCode string) error {
	entries, err := s.entries.LoadEntries(ctx, shortCode, domain.WindowAll)
	if err != nil {
		return err
	}

	orderEntries(entries)
	total := len(entries)
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].Percentile = float64(i+1) / float64(total) * 100
	}

	if err := s.entries.UpdateRanks(ctx, entries); err != nil {
		return fmt.Errorf("update ranks: %w", err)
	}
	return nil
}

// Top returns the challenge's best entries in (score desc, time asc) order.
// The order is derived fresh, not read from the cached rank field.
func (s *LeaderboardService) Top(ctx context.Context, shortCode string, limit int) ([]domain.LeaderboardEntry, error) {
	unlock := s.ranks.lock(shortCode)
	defer unlock()
	return s.topLocked(ctx, shortCode, limit)
}

func (s *LeaderboardService) topLocked(ctx context.Context, shortCode string, limit int) ([]domain.LeaderboardEntry, error) {
	entries, err := s.entries.LoadEntries(ctx, shortCode, domain.WindowAll)
	if err != nil {
		return nil, err
	}
	orderEntries(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// GlobalTop returns the best entries across all challenges within the time
// window. Rank in the result is the 1-based page position, not the stored
// per-challenge rank.
func (s *LeaderboardService) GlobalTop(ctx context.Context, window domain.TimeWindow, limit int) ([]domain.LeaderboardEntry, error) {
	if !window.Valid() {
		window = domain.WindowAll
	}
	entries, err := s.entries.LoadEntries(ctx, "", window)
	if err != nil {
		return nil, err
	}
	orderEntries(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// orderEntries sorts by score descending, ties broken by ascending
// completion time; remaining ties keep input order.
func orderEntries(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].CompletionTime < entries[j].CompletionTime
	})
}
