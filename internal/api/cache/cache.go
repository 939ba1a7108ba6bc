// Package cache memoises rendered API responses in a local ristretto tier
// and, optionally, a shared Redis tier. Concurrent misses on the same key
// are collapsed with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/resilience"
)

const keyPrefix = "geo:"

// Remote is the shared tier. *redis.Client satisfies it.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats is a point-in-time view of the cache counters.
type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Total   int64  `json:"total"`
	HitRate string `json:"hit_rate"`
}

type ResponseCache struct {
	local   *ristretto.Cache[string, []byte]
	remote  Remote
	breaker *resilience.CircuitBreaker
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New builds a ResponseCache. remote and m may be nil.
func New(cfg config.CacheConfig, remote Remote, m *metrics.Metrics) (*ResponseCache, error) {
	numCounters := cfg.NumCounters
	if numCounters <= 0 {
		numCounters = 1e5
	}
	maxCost := cfg.MaxCost
	if maxCost <= 0 {
		maxCost = 64 << 20
	}
	local, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating local cache: %w", err)
	}
	c := &ResponseCache{
		local:   local,
		remote:  remote,
		ttl:     cfg.TTL,
		metrics: m,
		logger:  slog.Default().With("component", "response-cache"),
	}
	if remote != nil {
		c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     15 * time.Second,
			OnStateChange: func(name string, state resilience.State) {
				if m != nil {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
				}
			},
		})
	}
	return c, nil
}

// NewRedisRemote adapts a pkg/redis client, returning nil for a nil client
// so the result can be passed straight to New.
func NewRedisRemote(client *pkgredis.Client) Remote {
	if client == nil {
		return nil
	}
	return client
}

// Get looks key up in the local tier, then the remote tier. A remote hit is
// copied into the local tier.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if data, ok := c.local.Get(key); ok {
		c.recordHit("local")
		return data, true
	}
	if c.remote != nil {
		var data []byte
		err := c.breaker.Execute(func() error {
			var err error
			data, err = c.remote.Get(ctx, key)
			if pkgredis.IsNilError(err) {
				data = nil
				return nil
			}
			return err
		})
		if err != nil {
			c.logger.Warn("remote cache get failed", "key", key, "error", err)
		} else if data != nil {
			c.local.SetWithTTL(key, data, int64(len(data)), c.ttl)
			c.recordHit("remote")
			return data, true
		}
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
	return nil, false
}

// Set stores data in every tier.
func (c *ResponseCache) Set(ctx context.Context, key string, data []byte) {
	c.local.SetWithTTL(key, data, int64(len(data)), c.ttl)
	if c.remote == nil {
		return
	}
	err := c.breaker.Execute(func() error {
		return c.remote.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("remote cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached bytes for key or runs compute once across
// concurrent callers. The boolean reports a cache hit. Errors from compute
// are not cached.
func (c *ResponseCache) GetOrCompute(ctx context.Context, key string, compute func() ([]byte, error)) ([]byte, bool, error) {
	if data, ok := c.Get(ctx, key); ok {
		return data, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if data, ok := c.local.Get(key); ok {
			return data, nil
		}
		data, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, data)
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]byte), false, nil
}

// Invalidate empties the local tier and deletes every remote key.
func (c *ResponseCache) Invalidate(ctx context.Context) error {
	c.local.Clear()
	if c.remote == nil {
		c.logger.Info("cache invalidate", "tier", "local")
		return nil
	}
	deleted, err := c.remote.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

// Wait blocks until buffered local writes are applied.
func (c *ResponseCache) Wait() {
	c.local.Wait()
}

func (c *ResponseCache) Close() {
	c.local.Close()
}

func (c *ResponseCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	total := hits + misses
	rate := "0.00%"
	if total > 0 {
		rate = fmt.Sprintf("%.2f%%", float64(hits)/float64(total)*100)
	}
	return Stats{Hits: hits, Misses: misses, Total: total, HitRate: rate}
}

func (c *ResponseCache) recordHit(tier string) {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

// Key derives a cache key from the dataset generation, the request path and
// the query string with parameter names sorted. Keys change with the
// generation, so entries built before a reload are never served after it.
func Key(generation int64, path string, query url.Values) string {
	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|%s", generation, path)
	for _, name := range names {
		fmt.Fprintf(&sb, "|%s=%s", name, strings.Join(query[name], ","))
	}
	hash := sha256.Sum256([]byte(sb.String()))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
