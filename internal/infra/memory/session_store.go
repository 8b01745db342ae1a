package memory

import (
	"context"
	"sync"

	"linkhunt-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Sessions are kept forever (the aggregate rescan needs the full set) and
// per-challenge order is insertion order.
type SessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]domain.Session
	byChallenge map[string][]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]domain.Session),
		byChallenge: make(map[string][]string),
	}
}

func (s *SessionStore) PersistSession(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		s.byChallenge[session.ShortCode] = append(s.byChallenge[session.ShortCode], session.ID)
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *SessionStore) GetSession(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) LoadSessions(_ context.Context, shortCode string) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byChallenge[shortCode]
	out := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.sessions[id])
	}
	return out, nil
}
