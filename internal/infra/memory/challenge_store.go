package memory

import (
	"context"
	"sync"

	"linkhunt-service/internal/domain"
)

// ChallengeStore is an in-memory challenge repository, seeded from a map.
// Useful for demos and tests, and as the authoritative backing behind the
// cache layers.
type ChallengeStore struct {
	mu         sync.RWMutex
	challenges map[string]domain.Challenge
}

func NewChallengeStore(seed map[string]domain.Challenge) *ChallengeStore {
	challenges := make(map[string]domain.Challenge, len(seed))
	for code, challenge := range seed {
		challenges[code] = challenge
	}
	return &ChallengeStore{challenges: challenges}
}

func (s *ChallengeStore) FindChallenge(_ context.Context, shortCode string) (domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	challenge, ok := s.challenges[shortCode]
	if !ok {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	return challenge, nil
}

func (s *ChallengeStore) IncrementViews(_ context.Context, shortCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.challenges[shortCode]
	if !ok {
		return domain.ErrChallengeNotFound
	}
	challenge.Aggregates.TotalViews++
	s.challenges[shortCode] = challenge
	return nil
}

func (s *ChallengeStore) UpdateAggregates(_ context.Context, shortCode string, agg domain.Aggregates) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.challenges[shortCode]
	if !ok {
		return domain.ErrChallengeNotFound
	}
	// Views are owned by IncrementViews, not the rescan.
	agg.TotalViews = challenge.Aggregates.TotalViews
	challenge.Aggregates = agg
	s.challenges[shortCode] = challenge
	return nil
}

// Put inserts or replaces a challenge record.
func (s *ChallengeStore) Put(challenge domain.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challenge.ShortCode] = challenge
}
