package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheVersionKey = "access:version"

// DefaultCacheTTL bounds how stale a memoized accessible-organization set
// may get. The engine offers no invalidation signal, so entries are kept
// deliberately short-lived.
const DefaultCacheTTL = 30 * time.Second

// OrganizationResolver yields the set of organizations an actor may
// operate within. Engine is the authoritative implementation; Cache wraps
// it with call-site memoization.
type OrganizationResolver interface {
	AccessibleOrganizations(ctx context.Context, actorID uuid.UUID) OrgSet
}

var (
	_ OrganizationResolver = (*Engine)(nil)
	_ OrganizationResolver = (*Cache)(nil)
)

// Cache memoizes resolver results in Redis. It sits outside the engine:
// entries are best-effort, short-lived, and versioned so a global bump
// invalidates everything at once. Concurrent resolves for the same actor
// are collapsed through singleflight. A nil or unreachable Redis client
// degrades to direct engine calls, never to denial.
type Cache struct {
	engine *Engine
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCache constructs a Cache around the engine. A non-positive ttl falls
// back to DefaultCacheTTL.
func NewCache(engine *Engine, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{engine: engine, client: client, ttl: ttl, logger: logger}
}

// AccessibleOrganizations returns the cached set for the actor, resolving
// and priming on miss.
func (c *Cache) AccessibleOrganizations(ctx context.Context, actorID uuid.UUID) OrgSet {
	if c == nil || c.client == nil {
		return c.engine.AccessibleOrganizations(ctx, actorID)
	}

	key, err := c.key(ctx, actorID)
	if err != nil {
		c.logger.Warn("access cache key", slog.Any("error", err))
		return c.engine.AccessibleOrganizations(ctx, actorID)
	}

	if set, ok := c.load(ctx, key); ok {
		return set
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		set := c.engine.AccessibleOrganizations(ctx, actorID)
		c.prime(ctx, key, set)
		return set, nil
	})
	select {
	case <-ctx.Done():
		// The in-flight resolve keeps running for other waiters; this
		// caller falls back to a direct (and equally cancelled) resolve
		// so the error policy stays the engine's.
		return c.engine.AccessibleOrganizations(ctx, actorID)
	case res := <-ch:
		return res.Val.(OrgSet)
	}
}

// Warm force-resolves the actor's set and primes the cache entry. Used by
// the background worker after membership changes.
func (c *Cache) Warm(ctx context.Context, actorID uuid.UUID) OrgSet {
	set := c.engine.AccessibleOrganizations(ctx, actorID)
	if c == nil || c.client == nil {
		return set
	}
	key, err := c.key(ctx, actorID)
	if err != nil {
		c.logger.Warn("access cache key", slog.Any("error", err))
		return set
	}
	c.prime(ctx, key, set)
	return set
}

// Invalidate drops the actor's cached set at the current version.
func (c *Cache) Invalidate(ctx context.Context, actorID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx, actorID)
	if err != nil {
		return err
	}
	return c.client.Del(ctx, key).Err()
}

// Bump invalidates every cached set by incrementing the version the keys
// are composed with.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func (c *Cache) key(ctx context.Context, actorID uuid.UUID) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("access:orgs:%d:%s", ver, actorID), nil
}

func (c *Cache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *Cache) load(ctx context.Context, key string) (OrgSet, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("access cache read", slog.Any("error", err))
		}
		return nil, false
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(payload, &ids); err != nil {
		c.logger.Warn("access cache decode", slog.Any("error", err))
		return nil, false
	}
	return NewOrgSet(ids...), true
}

func (c *Cache) prime(ctx context.Context, key string, set OrgSet) {
	payload, err := json.Marshal(set.IDs())
	if err != nil {
		c.logger.Warn("access cache encode", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("access cache write", slog.Any("error", err))
	}
}
