package authz

import (
	"context"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(client, DefaultCacheTTL, slog.Default()), mr, client
}

func TestCacheWriteThrough(t *testing.T) {
	cache, _, _ := newTestCache(t)
	ctx := context.Background()

	loads := 0
	load := func(context.Context) ([]Permission, error) {
		loads++
		return []Permission{perm("tenant.tags.view", ScopeTenant)}, nil
	}

	perms, err := cache.Permissions(ctx, "p1", load)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, 1, loads)

	perms, err = cache.Permissions(ctx, "p1", load)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, 1, loads, "second read must hit the cache")
}

func TestCacheEntriesExpire(t *testing.T) {
	cache, mr, _ := newTestCache(t)
	ctx := context.Background()

	loads := 0
	load := func(context.Context) ([]Role, error) {
		loads++
		return []Role{role(RoleTenantAdmin, 70)}, nil
	}

	_, err := cache.Roles(ctx, "p1", load)
	require.NoError(t, err)

	mr.FastForward(DefaultCacheTTL + time.Second)

	_, err = cache.Roles(ctx, "p1", load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestInvalidateAllIsPrefixScoped(t *testing.T) {
	cache, mr, client := newTestCache(t)
	ctx := context.Background()

	_, err := cache.Permissions(ctx, "p1", func(context.Context) ([]Permission, error) {
		return []Permission{perm("tenant.tags.view", ScopeTenant)}, nil
	})
	require.NoError(t, err)
	_, err = cache.Roles(ctx, "p2", func(context.Context) ([]Role, error) {
		return []Role{role(RoleTenantAdmin, 70)}, nil
	})
	require.NoError(t, err)

	// Unrelated data sharing the store must survive the flush.
	require.NoError(t, client.Set(ctx, "session:abc", "keep", 0).Err())

	require.NoError(t, cache.InvalidateAll(ctx))

	assert.False(t, mr.Exists(permsKeyPrefix+"p1"))
	assert.False(t, mr.Exists(rolesKeyPrefix+"p2"))
	assert.True(t, mr.Exists("session:abc"))
}

func TestCacheCorruptEntryFallsThrough(t *testing.T) {
	cache, mr, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(permsKeyPrefix+"p1", "{not json"))

	loads := 0
	perms, err := cache.Permissions(ctx, "p1", func(context.Context) ([]Permission, error) {
		loads++
		return []Permission{perm("tenant.tags.view", ScopeTenant)}, nil
	})
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, 1, loads)
}

func TestCacheUnavailableDegradesToMiss(t *testing.T) {
	cache, mr, _ := newTestCache(t)
	ctx := context.Background()
	mr.Close()

	loads := 0
	perms, err := cache.Permissions(ctx, "p1", func(context.Context) ([]Permission, error) {
		loads++
		return []Permission{perm("tenant.tags.view", ScopeTenant)}, nil
	})
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, 1, loads, "redis outage must fall through to the loader")
}

func TestNilCacheLoadsDirectly(t *testing.T) {
	var cache *Cache
	perms, err := cache.Permissions(context.Background(), "p1", func(context.Context) ([]Permission, error) {
		return []Permission{perm("tenant.tags.view", ScopeTenant)}, nil
	})
	require.NoError(t, err)
	assert.Len(t, perms, 1)
}
