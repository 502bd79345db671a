package authz

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache key layout. Entries are always per principal so one principal's
// invalidation can never touch another's.
const (
	cacheKeyPrefix = "authz:"
	permsKeyPrefix = cacheKeyPrefix + "perms:"
	rolesKeyPrefix = cacheKeyPrefix + "roles:"
)

// DefaultCacheTTL bounds how long a stale role/permission snapshot may be
// served after a mutation that raced ahead of its invalidation.
const DefaultCacheTTL = 300 * time.Second

// Cache is a write-through cache for role and permission snapshots. Redis
// unavailability degrades to a forced miss: the loader runs against the
// catalog and the result is returned uncached. A nil *Cache behaves the
// same way, which keeps the resolver usable in tests without Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCache constructs a Cache. A non-positive ttl falls back to
// DefaultCacheTTL.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Permissions returns the cached permission set for the principal, invoking
// load on a miss and storing the result.
func (c *Cache) Permissions(ctx context.Context, principalID string, load func(context.Context) ([]Permission, error)) ([]Permission, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	key := permsKeyPrefix + principalID
	if data, ok := c.get(ctx, key); ok {
		var perms []Permission
		if err := json.Unmarshal(data, &perms); err == nil {
			return perms, nil
		}
		c.drop(ctx, key)
	}
	v, err := c.loadShared(ctx, key, func(ctx context.Context) (any, error) {
		perms, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, perms)
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Permission), nil
}

// Roles returns the cached role set for the principal, invoking load on a
// miss and storing the result.
func (c *Cache) Roles(ctx context.Context, principalID string, load func(context.Context) ([]Role, error)) ([]Role, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	key := rolesKeyPrefix + principalID
	if data, ok := c.get(ctx, key); ok {
		var roles []Role
		if err := json.Unmarshal(data, &roles); err == nil {
			return roles, nil
		}
		c.drop(ctx, key)
	}
	v, err := c.loadShared(ctx, key, func(ctx context.Context) (any, error) {
		roles, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, roles)
		return roles, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Role), nil
}

// Invalidate removes both namespace entries for the principal. Mutation
// paths call this after the change is durably committed.
func (c *Cache) Invalidate(ctx context.Context, principalID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, permsKeyPrefix+principalID, rolesKeyPrefix+principalID).Err()
}

// InvalidateAll deletes every entry under the authz namespace. The scan is
// prefix-scoped so unrelated data sharing the store is untouched.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := c.client.Del(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return flush()
}

// loadShared collapses concurrent misses for the same key into a single
// loader invocation. Waiters honour their own context: a cancelled caller
// abandons the in-flight load instead of awaiting it.
func (c *Cache) loadShared(ctx context.Context, key string, load func(context.Context) (any, error)) (any, error) {
	resultChan := c.group.DoChan(key, func() (any, error) {
		return load(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		return res.Val, res.Err
	}
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("authz cache read degraded", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}
	return data, true
}

func (c *Cache) set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Debug("authz cache write degraded", slog.String("key", key), slog.Any("error", err))
	}
}

func (c *Cache) drop(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Debug("authz cache drop degraded", slog.String("key", key), slog.Any("error", err))
	}
}
