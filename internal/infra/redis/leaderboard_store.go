package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"linkhunt-service/internal/domain"
)

// LeaderboardStore is a Redis-backed implementation of
// app.LeaderboardRepository. Entries are JSON values in one hash; two lists
// (global and per challenge) preserve insertion order so tie-breaking is
// stable across recomputes.
type LeaderboardStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewLeaderboardStore(client *redis.Client) *LeaderboardStore {
	return &LeaderboardStore{client: client, clock: time.Now}
}

func (s *LeaderboardStore) PersistEntry(ctx context.Context, entry domain.LeaderboardEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	known, err := s.client.HExists(ctx, s.entriesKey(), entry.ID).Result()
	if err != nil {
		return fmt.Errorf("persist entry: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.entriesKey(), entry.ID, raw)
	if !known {
		pipe.RPush(ctx, s.orderKey(""), entry.ID)
		pipe.RPush(ctx, s.orderKey(entry.ShortCode), entry.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persist entry: %w", err)
	}
	return nil
}

func (s *LeaderboardStore) LoadEntries(ctx context.Context, shortCode string, window domain.TimeWindow) ([]domain.LeaderboardEntry, error) {
	ids, err := s.client.LRange(ctx, s.orderKey(shortCode), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := s.client.HMGet(ctx, s.entriesKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	cutoff := window.CutOff(s.clock())
	out := make([]domain.LeaderboardEntry, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var entry domain.LeaderboardEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if !cutoff.IsZero() && entry.CompletedAt.Before(cutoff) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *LeaderboardStore) UpdateRanks(ctx context.Context, entries []domain.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, entry := range entries {
		raw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		pipe.HSet(ctx, s.entriesKey(), entry.ID, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update ranks: %w", err)
	}
	return nil
}

func (s *LeaderboardStore) entriesKey() string {
	return "leaderboard:entries"
}

func (s *LeaderboardStore) orderKey(shortCode string) string {
	if shortCode == "" {
		return "leaderboard:order:all"
	}
	return "leaderboard:order:" + shortCode
}
