package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/home-loan-approval/pkg/resilience"
)

const keyPrefix = "prediction:"

// Store is the byte cache behind Cache. *redis.Client implements it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// score is the model output for one record.
type score struct {
	Label       int     `json:"label"`
	Probability float64 `json:"probability"`
}

// Cache memoises single-record scores per model run. Concurrent misses for
// the same key share one computation. Cache failures degrade to a miss.
type Cache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache creates a Cache. m may be nil.
func NewCache(store Store, ttl time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "prediction-cache"),
	}
}

// Key scopes a record fingerprint to the model that scored it.
func Key(runID, fingerprint string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, runID, fingerprint)
}

func (c *Cache) get(ctx context.Context, key string) (score, bool) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		return score{}, false
	}
	if !found {
		return score{}, false
	}
	var s score
	if err := json.Unmarshal(data, &s); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return score{}, false
	}
	return s, true
}

func (c *Cache) set(ctx context.Context, key string, s score) {
	data, err := json.Marshal(s)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached score for key or computes, stores and
// returns it. hit reports whether the value came from the cache.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func() (score, error)) (score, bool, error) {
	if s, ok := c.get(ctx, key); ok {
		c.hit()
		return s, true, nil
	}
	c.miss()
	val, err, _ := c.group.Do(key, func() (any, error) {
		if s, ok := c.get(ctx, key); ok {
			return s, nil
		}
		s, err := compute()
		if err != nil {
			return score{}, err
		}
		c.set(ctx, key, s)
		return s, nil
	})
	if err != nil {
		return score{}, false, err
	}
	return val.(score), false, nil
}

// Invalidate removes every cached prediction.
func (c *Cache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns hit and miss counts since start.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *Cache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

type guardedStore struct {
	store   Store
	breaker *resilience.Breaker
}

// Guard routes store calls through b, so an unreachable cache costs one
// immediate miss per request while the circuit is open.
func Guard(store Store, b *resilience.Breaker) Store {
	return &guardedStore{store: store, breaker: b}
}

func (g *guardedStore) Get(ctx context.Context, key string) (data []byte, found bool, err error) {
	err = g.breaker.Do(func() error {
		var getErr error
		data, found, getErr = g.store.Get(ctx, key)
		return getErr
	})
	return data, found, err
}

func (g *guardedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.breaker.Do(func() error {
		return g.store.Set(ctx, key, value, ttl)
	})
}

func (g *guardedStore) FlushByPattern(ctx context.Context, pattern string) (deleted int64, err error) {
	err = g.breaker.Do(func() error {
		var flushErr error
		deleted, flushErr = g.store.FlushByPattern(ctx, pattern)
		return flushErr
	})
	return deleted, err
}
