package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"linkhunt-service/internal/app"
	"linkhunt-service/internal/domain"
)

// ChallengeCache caches challenge records in Redis (one JSON value per short
// code, with TTL) in front of a backing repository. Writes pass through to
// the backing store and drop the cached value.
type ChallengeCache struct {
	client  *redis.Client
	backing app.ChallengeRepository
	ttl     time.Duration
	sf      singleflight.Group
	rnd     *rand.Rand
}

func NewChallengeCache(client *redis.Client, backing app.ChallengeRepository, ttl time.Duration) *ChallengeCache {
	return &ChallengeCache{
		client:  client,
		backing: backing,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ChallengeCache) FindChallenge(ctx context.Context, shortCode string) (domain.Challenge, error) {
	key := c.key(shortCode)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var challenge domain.Challenge
		if err := json.Unmarshal(raw, &challenge); err == nil {
			return challenge, nil
		}
		// Corrupt cache value: fall through to reload.
		_ = c.client.Del(ctx, key).Err()
	}

	result, err, _ := c.sf.Do(shortCode, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var challenge domain.Challenge
			if err := json.Unmarshal(raw, &challenge); err == nil {
				return challenge, nil
			}
		}

		challenge, err := c.backing.FindChallenge(ctx, shortCode)
		if err != nil {
			return domain.Challenge{}, err
		}

		if raw, err := json.Marshal(challenge); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
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
	return c.client.Del(ctx, c.key(shortCode)).Err()
}

func (c *ChallengeCache) UpdateAggregates(ctx context.Context, shortCode string, agg domain.Aggregates) error {
	if err := c.backing.UpdateAggregates(ctx, shortCode, agg); err != nil {
		return err
	}
	return c.client.Del(ctx, c.key(shortCode)).Err()
}

func (c *ChallengeCache) key(shortCode string) string {
	return "challenge:" + shortCode
}

func (c *ChallengeCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
