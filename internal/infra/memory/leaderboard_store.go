package memory

import (
	"context"
	"sync"
	"time"

	"linkhunt-service/internal/domain"
)

// LeaderboardStore is an in-memory implementation of
// app.LeaderboardRepository preserving insertion order.
type LeaderboardStore struct {
	clock func() time.Time

	mu      sync.RWMutex
	order   []string
	entries map[string]domain.LeaderboardEntry
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{
		clock:   time.Now,
		entries: make(map[string]domain.LeaderboardEntry),
	}
}

func (s *LeaderboardStore) PersistEntry(_ context.Context, entry domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.ID]; !ok {
		s.order = append(s.order, entry.ID)
	}
	s.entries[entry.ID] = entry
	return nil
}

func (s *LeaderboardStore) LoadEntries(_ context.Context, shortCode string, window domain.TimeWindow) ([]domain.LeaderboardEntry, error) {
	cutoff := window.CutOff(s.clock())

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LeaderboardEntry, 0, len(s.order))
	for _, id := range s.order {
		entry := s.entries[id]
		if shortCode != "" && entry.ShortCode != shortCode {
			continue
		}
		if !cutoff.IsZero() && entry.CompletedAt.Before(cutoff) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *LeaderboardStore) UpdateRanks(_ context.Context, entries []domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		stored, ok := s.entries[entry.ID]
		if !ok {
			return domain.ErrEntryNotFound
		}
		stored.Rank = entry.Rank
		stored.Percentile = entry.Percentile
		s.entries[entry.ID] = stored
	}
	return nil
}
