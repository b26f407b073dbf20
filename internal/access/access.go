// Package access answers "has this account already unlocked that target"
// from a rebuildable read-model in front of the ledger's grant records.
package access

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/tutorconnect/coin_ledger/internal/ledger"
	"github.com/tutorconnect/coin_ledger/internal/metrics"
)

const keyPrefix = "access:v1:"

// Cache stores the set of unlocked (purpose, target) pairs per account.
type Cache interface {
	Has(ctx context.Context, accountID, member string) (bool, error)
	Put(ctx context.Context, accountID string, members ...string) error
	Reset(ctx context.Context, accountID string) error
}

// Member builds the set member for a purpose/target pair.
func Member(purpose, targetID string) string {
	return purpose + ":" + targetID
}

// RedisCache keeps one Redis set per account.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Has(ctx context.Context, accountID, member string) (bool, error) {
	return c.client.SIsMember(ctx, keyPrefix+accountID, member).Result()
}

func (c *RedisCache) Put(ctx context.Context, accountID string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return c.client.SAdd(ctx, keyPrefix+accountID, args...).Err()
}

func (c *RedisCache) Reset(ctx context.Context, accountID string) error {
	return c.client.Del(ctx, keyPrefix+accountID).Err()
}

type memoryCache struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

// NewMemoryCache builds a process-local cache for tests and development.
func NewMemoryCache() Cache {
	return &memoryCache{sets: make(map[string]map[string]struct{})}
}

func (c *memoryCache) Has(_ context.Context, accountID, member string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sets[accountID][member]
	return ok, nil
}

func (c *memoryCache) Put(_ context.Context, accountID string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.sets[accountID]
	if !ok {
		set = make(map[string]struct{})
		c.sets[accountID] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

func (c *memoryCache) Reset(_ context.Context, accountID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sets, accountID)
	return nil
}

// Checker resolves access from the cache first and the ledger second. The
// ledger is the source of truth; cache failures only cost a ledger read.
type Checker struct {
	cache  Cache
	ledger ledger.Store
	logger *slog.Logger
}

// NewChecker builds an access checker.
func NewChecker(cache Cache, store ledger.Store, logger *slog.Logger) *Checker {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Checker{cache: cache, ledger: store, logger: logger}
}

// HasAccess reports whether a completed spend already unlocked the target.
func (c *Checker) HasAccess(ctx context.Context, accountID, purpose, targetID string) (bool, error) {
	member := Member(purpose, targetID)
	hit, err := c.cache.Has(ctx, accountID, member)
	if err != nil {
		metrics.AccessCacheLookups.WithLabelValues("error").Inc()
		if c.logger != nil {
			c.logger.Warn("access cache lookup failed", slog.String("account_id", accountID), slog.Any("error", err))
		}
	} else if hit {
		metrics.AccessCacheLookups.WithLabelValues("cache").Inc()
		return true, nil
	}

	_, err = c.ledger.Grant(ctx, accountID, purpose, targetID)
	switch {
	case err == nil:
		metrics.AccessCacheLookups.WithLabelValues("ledger").Inc()
		c.Record(ctx, accountID, purpose, targetID)
		return true, nil
	case errors.Is(err, ledger.ErrGrantNotFound):
		metrics.AccessCacheLookups.WithLabelValues("miss").Inc()
		return false, nil
	default:
		return false, err
	}
}

// Record adds a freshly committed grant to the cache. Failures are logged and
// repaired by the next ledger-backed lookup.
func (c *Checker) Record(ctx context.Context, accountID, purpose, targetID string) {
	if err := c.cache.Put(ctx, accountID, Member(purpose, targetID)); err != nil && c.logger != nil {
		c.logger.Warn("access cache write failed", slog.String("account_id", accountID), slog.Any("error", err))
	}
}

// Rebuild replaces the cached set for the account with the ledger's grants.
func (c *Checker) Rebuild(ctx context.Context, accountID string) (int, error) {
	grants, err := c.ledger.Grants(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if err := c.cache.Reset(ctx, accountID); err != nil {
		return 0, err
	}
	members := make([]string, 0, len(grants))
	for _, g := range grants {
		members = append(members, Member(g.Purpose, g.TargetID))
	}
	if err := c.cache.Put(ctx, accountID, members...); err != nil {
		return 0, err
	}
	return len(members), nil
}
