package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"linkhunt-service/internal/domain"
)

// countingRepo wraps a ChallengeStore and counts backing reads.
type countingRepo struct {
	*ChallengeStore
	mu    sync.Mutex
	finds int
}

func (r *countingRepo) FindChallenge(ctx context.Context, shortCode string) (domain.Challenge, error) {
	r.mu.Lock()
	r.finds++
	r.mu.Unlock()
	return r.ChallengeStore.FindChallenge(ctx, shortCode)
}

func (r *countingRepo) findCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finds
}

func newCountingRepo() *countingRepo {
	return &countingRepo{ChallengeStore: NewChallengeStore(map[string]domain.Challenge{
		"go4it": {ShortCode: "go4it", LongURL: "https://golang.org", Difficulty: "medium"},
	})}
}

func TestChallengeCacheServesRepeatReadsFromCache(t *testing.T) {
	backing := newCountingRepo()
	cache := NewChallengeCache(backing, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c, err := cache.FindChallenge(ctx, "go4it")
		if err != nil {
			t.Fatalf("FindChallenge: %v", err)
		}
		if c.ShortCode != "go4it" {
			t.Fatalf("got %+v", c)
		}
	}
	if got := backing.findCount(); got != 1 {
		t.Fatalf("backing reads = %d, want 1", got)
	}
}

func TestChallengeCacheExpires(t *testing.T) {
	backing := newCountingRepo()
	cache := NewChallengeCache(backing, time.Minute)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }
	ctx := context.Background()

	if _, err := cache.FindChallenge(ctx, "go4it"); err != nil {
		t.Fatalf("FindChallenge: %v", err)
	}
	// Past TTL plus the jitter ceiling.
	now = now.Add(2 * time.Minute)
	if _, err := cache.FindChallenge(ctx, "go4it"); err != nil {
		t.Fatalf("FindChallenge: %v", err)
	}
	if got := backing.findCount(); got != 2 {
		t.Fatalf("backing reads = %d, want 2 after expiry", got)
	}
}

func TestChallengeCacheWriteThroughInvalidates(t *testing.T) {
	backing := newCountingRepo()
	cache := NewChallengeCache(backing, time.Minute)
	ctx := context.Background()

	if _, err := cache.FindChallenge(ctx, "go4it"); err != nil {
		t.Fatalf("FindChallenge: %v", err)
	}
	if err := cache.IncrementViews(ctx, "go4it"); err != nil {
		t.Fatalf("IncrementViews: %v", err)
	}

	c, err := cache.FindChallenge(ctx, "go4it")
	if err != nil {
		t.Fatalf("FindChallenge after write: %v", err)
	}
	if c.Aggregates.TotalViews != 1 {
		t.Fatalf("stale read after write-through: %+v", c.Aggregates)
	}

	agg := domain.Aggregates{TotalCompletions: 4}
	if err := cache.UpdateAggregates(ctx, "go4it", agg); err != nil {
		t.Fatalf("UpdateAggregates: %v", err)
	}
	c, _ = cache.FindChallenge(ctx, "go4it")
	if c.Aggregates.TotalCompletions != 4 || c.Aggregates.TotalViews != 1 {
		t.Fatalf("aggregate write not visible: %+v", c.Aggregates)
	}
}

func TestChallengeCacheMissPassesErrorThrough(t *testing.T) {
	backing := newCountingRepo()
	cache := NewChallengeCache(backing, time.Minute)

	if _, err := cache.FindChallenge(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for unknown challenge")
	}
}
