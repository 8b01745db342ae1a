package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"linkhunt-service/internal/app"
	"linkhunt-service/internal/domain"
)

// ChallengeCache caches challenge reads with a TTL to avoid repeated hits on
// the backing repository. Writes pass through and invalidate the cached
// record so the next read sees fresh aggregates.
type ChallengeCache struct {
	backing app.ChallengeRepository
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedChallenge
}

type cachedChallenge struct {
	challenge domain.Challenge
	expiresAt time.Time
}

func NewChallengeCache(backing app.ChallengeRepository, ttl time.Duration) *ChallengeCache {
	return &ChallengeCache{
		backing: backing,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedChallenge),
	}
}

func (c *ChallengeCache) FindChallenge(ctx context.Context, shortCode string) (domain.Challenge, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[shortCode]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.challenge, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(shortCode, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[shortCode]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.challenge, nil
		}
		c.mu.RUnlock()

		challenge, err := c.backing.FindChallenge(ctx, shortCode)
		if err != nil {
			return domain.Challenge{}, err
		}

		c.mu.Lock()
		c.cache[shortCode] = cachedChallenge{
			challenge: challenge,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return challenge, nil
	})
	if err != nil {
		return domain.Challenge{}, err
	}
	return result.(domain.Challenge), nil
}

func (c *ChallengeCache) IncrementViews(ctx context.Context, shortCode string) error {
	if err := c.backing.IncrementViews(ctx, shortCode); err != nil {
		return err
	}
	c.invalidate(shortCode)
	return nil
}

func (c *ChallengeCache) UpdateAggregates(ctx context.Context, shortCode string, agg domain.Aggregates) error {
	if err := c.backing.UpdateAggregates(ctx, shortCode, agg); err != nil {
		return err
	}
	c.invalidate(shortCode)
	return nil
}

func (c *ChallengeCache) invalidate(shortCode string) {
	c.mu.Lock()
	delete(c.cache, shortCode)
	c.mu.Unlock()
}

func (c *ChallengeCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
