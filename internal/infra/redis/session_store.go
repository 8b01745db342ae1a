package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"linkhunt-service/internal/domain"
)

// SessionStore is a Redis-backed implementation of app.SessionRepository.
// Sessions live as JSON values keyed by id, with a per-challenge list
// preserving insertion order for the aggregate rescan. No TTL: sessions are
// retained for recomputation and audit.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) PersistSession(ctx context.Context, session domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	key := s.sessionKey(session.ID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, raw, 0)
	if exists == 0 {
		pipe.RPush(ctx, s.challengeKey(session.ShortCode), session.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (domain.Session, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if err == redis.Nil {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) LoadSessions(ctx context.Context, shortCode string) ([]domain.Session, error) {
	ids, err := s.client.LRange(ctx, s.challengeKey(shortCode), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	out := make([]domain.Session, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var session domain.Session
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			continue
		}
		out = append(out, session)
	}
	return out, nil
}

func (s *SessionStore) sessionKey(id string) string {
	return "game:session:" + id
}

func (s *SessionStore) challengeKey(shortCode string) string {
	return "game:sessions:" + shortCode
}
