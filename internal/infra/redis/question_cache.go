package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"crisis-quiz-service/internal/config"
	"crisis-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionCache stores generated question sets as JSON strings with a TTL:
//
//	SET {key} {json} EX {ttl}
//
// Keys come from app.CacheKey, so every instance shares one window per mode and topic.
type QuestionCache struct {
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

type loadResult struct {
	set domain.QuestionSet
	err error
}

func NewQuestionCache(client *redis.Client, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Lookup returns a cached set without loading.
func (c *QuestionCache) Lookup(ctx context.Context, key string) (domain.QuestionSet, bool) {
	return c.lookup(ctx, key)
}

// GetOrLoad collapses concurrent loads of key into one. The load runs detached
// from any single caller; each caller stops waiting when its own ctx ends.
func (c *QuestionCache) GetOrLoad(ctx context.Context, key string, load func(context.Context) (domain.QuestionSet, error)) (domain.QuestionSet, error) {
	if set, ok := c.lookup(ctx, key); ok {
		return set, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(key, func() (interface{}, error) {
		if set, ok := c.lookup(loadCtx, key); ok {
			return loadResult{set: set}, nil
		}

		set, err := load(loadCtx)
		if err == nil && c.ttl > 0 {
			if data, mErr := json.Marshal(set); mErr == nil {
				if sErr := c.client.Set(loadCtx, key, data, c.ttlWithJitter()).Err(); sErr != nil {
					config.WithContext(loadCtx).WithError(sErr).Warn("question cache write failed")
				}
			}
		}
		return loadResult{set: set, err: err}, nil
	})

	select {
	case res := <-ch:
		out := res.Val.(loadResult)
		return out.set, out.err
	case <-ctx.Done():
		return domain.QuestionSet{}, ctx.Err()
	}
}

// lookup treats a Redis failure as a miss so generation still works without the cache.
func (c *QuestionCache) lookup(ctx context.Context, key string) (domain.QuestionSet, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			config.WithContext(ctx).WithError(err).Warn("question cache read failed")
		}
		return domain.QuestionSet{}, false
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return domain.QuestionSet{}, false
	}
	return set, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
