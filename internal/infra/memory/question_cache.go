package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"crisis-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionCache keeps generated question sets for a TTL window, keyed explicitly
// by mode and topic. Only complete sets are stored.
type QuestionCache struct {
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	set       domain.QuestionSet
	expiresAt time.Time
}

type loadResult struct {
	set domain.QuestionSet
	err error
}

func NewQuestionCache(ttl time.Duration) *QuestionCache {
	return NewQuestionCacheWithClock(ttl, time.Now)
}

// NewQuestionCacheWithClock lets tests move time without sleeping.
func NewQuestionCacheWithClock(ttl time.Duration, clock func() time.Time) *QuestionCache {
	return &QuestionCache{
		ttl:   ttl,
		clock: clock,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedSet),
	}
}

// Lookup returns a cached set without loading.
func (c *QuestionCache) Lookup(_ context.Context, key string) (domain.QuestionSet, bool) {
	return c.lookup(key)
}

// GetOrLoad collapses concurrent loads of key into one. The load runs detached
// from any single caller, so one caller leaving does not fail the others; each
// caller stops waiting when its own ctx ends.
func (c *QuestionCache) GetOrLoad(ctx context.Context, key string, load func(context.Context) (domain.QuestionSet, error)) (domain.QuestionSet, error) {
	if set, ok := c.lookup(key); ok {
		return set, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled it.
		if set, ok := c.lookup(key); ok {
			return loadResult{set: set}, nil
		}

		set, err := load(loadCtx)
		if err == nil && c.ttl > 0 {
			c.mu.Lock()
			c.cache[key] = cachedSet{set: set, expiresAt: c.clock().Add(c.ttlWithJitter())}
			c.mu.Unlock()
		}
		// Partial sets travel with their error; singleflight would drop the value otherwise.
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

func (c *QuestionCache) lookup(key string) (domain.QuestionSet, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || !entry.expiresAt.After(now) {
		return domain.QuestionSet{}, false
	}
	return entry.set, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
