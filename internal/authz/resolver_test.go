package authz

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagedoor-hq/stagedoor/internal/shared"
)

type stubStore struct {
	roles       map[string][]Role
	direct      map[string][]Permission
	accounts    map[string]string
	roleCalls   int
	directCalls int
	failAll     bool
}

func newStubStore() *stubStore {
	return &stubStore{
		roles:    make(map[string][]Role),
		direct:   make(map[string][]Permission),
		accounts: make(map[string]string),
	}
}

var errStoreDown = errors.New("store down")

func (s *stubStore) FindRolesForPrincipal(ctx context.Context, principalID string) ([]Role, error) {
	s.roleCalls++
	if s.failAll {
		return nil, errStoreDown
	}
	return s.roles[principalID], nil
}

func (s *stubStore) FindDirectPermissionsForPrincipal(ctx context.Context, principalID string) ([]Permission, error) {
	s.directCalls++
	if s.failAll {
		return nil, errStoreDown
	}
	return s.direct[principalID], nil
}

func (s *stubStore) FindPermissionByName(ctx context.Context, name string) (*Permission, error) {
	if s.failAll {
		return nil, errStoreDown
	}
	for _, perms := range s.direct {
		for i := range perms {
			if perms[i].Name == name {
				return &perms[i], nil
			}
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubStore) FindAccountIDForPrincipal(ctx context.Context, principalID string) (string, error) {
	if s.failAll {
		return "", errStoreDown
	}
	return s.accounts[principalID], nil
}

func perm(name string, scope Scope) Permission {
	return Permission{ID: uuid.New(), Name: name, Scope: scope}
}

func role(code string, level int, perms ...Permission) Role {
	return Role{ID: uuid.New(), Code: code, Name: code, Level: level, Permissions: perms}
}

func newTestResolver(t *testing.T, store *stubStore) (*Resolver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, DefaultCacheTTL, slog.Default())
	return NewResolver(NewCatalog(store), cache, slog.Default(), nil), mr
}

func TestHasPermissionSuperAdminBypass(t *testing.T) {
	store := newStubStore()
	store.roles["p1"] = []Role{role(RoleSuperAdmin, 100)}
	resolver, _ := newTestResolver(t, store)

	// No explicit permissions at all, any name still passes.
	assert.True(t, resolver.HasPermission(context.Background(), "p1", "platform.anything.delete"))
	assert.True(t, resolver.HasPermission(context.Background(), "p1", "no.such.permission"))
}

func TestHasPermissionPatternGrant(t *testing.T) {
	store := newStubStore()
	store.roles["p1"] = []Role{role(RoleTenantAdmin, 70, perm("tenant.*", ScopeTenant))}
	resolver, _ := newTestResolver(t, store)

	ctx := context.Background()
	assert.True(t, resolver.HasPermission(ctx, "p1", "tenant.billing.read"))
	assert.False(t, resolver.HasPermission(ctx, "p1", "platform.audit.read"))
}

func TestHasPermissionDirectAssignment(t *testing.T) {
	store := newStubStore()
	store.direct["p1"] = []Permission{perm("platform.reports.view", ScopePlatform)}
	resolver, _ := newTestResolver(t, store)

	ctx := context.Background()
	assert.True(t, resolver.HasPermission(ctx, "p1", "platform.reports.view"))
	assert.False(t, resolver.HasPermission(ctx, "p1", "platform.reports.export"))
}

func TestHasPermissionUnknownPrincipal(t *testing.T) {
	resolver, _ := newTestResolver(t, newStubStore())
	assert.False(t, resolver.HasPermission(context.Background(), "nobody", "platform.users.view"))
}

func TestHasPermissionFailsClosedOnStoreError(t *testing.T) {
	store := newStubStore()
	store.failAll = true
	resolver, _ := newTestResolver(t, store)

	ctx := context.Background()
	assert.False(t, resolver.HasPermission(ctx, "p1", "platform.users.view"))
	assert.Empty(t, resolver.UserPermissions(ctx, "p1"))
	assert.Empty(t, resolver.UserRoles(ctx, "p1"))
	assert.Equal(t, 0, resolver.MaxRoleLevel(ctx, "p1"))
}

func TestAnyAllCombinators(t *testing.T) {
	store := newStubStore()
	store.direct["p1"] = []Permission{perm("tenant.tags.view", ScopeTenant)}
	resolver, _ := newTestResolver(t, store)
	ctx := context.Background()

	assert.False(t, resolver.HasAnyPermission(ctx, "p1", nil))
	assert.False(t, resolver.HasAnyPermission(ctx, "p1", []string{}))
	assert.True(t, resolver.HasAllPermissions(ctx, "p1", nil))

	assert.True(t, resolver.HasAnyPermission(ctx, "p1", []string{"tenant.tags.delete", "tenant.tags.view"}))
	assert.False(t, resolver.HasAnyPermission(ctx, "p1", []string{"tenant.tags.delete"}))

	assert.True(t, resolver.HasAllPermissions(ctx, "p1", []string{"tenant.tags.view"}))
	assert.False(t, resolver.HasAllPermissions(ctx, "p1", []string{"tenant.tags.view", "tenant.tags.delete"}))
}

func TestMaxRoleLevel(t *testing.T) {
	store := newStubStore()
	store.roles["p1"] = []Role{role(RoleAccountManager, 30), role(RoleTenantAdmin, 70)}
	resolver, _ := newTestResolver(t, store)
	ctx := context.Background()

	assert.Equal(t, 70, resolver.MaxRoleLevel(ctx, "p1"))
	assert.Equal(t, 0, resolver.MaxRoleLevel(ctx, "roleless"))
}

func TestEffectiveSetDeduplicatesByIdentity(t *testing.T) {
	store := newStubStore()
	sharedPerm := perm("tenant.tags.view", ScopeTenant)
	// Same permission row granted via role and directly; one entry expected.
	// A second permission sharing the name but not the id stays distinct.
	sameName := perm("tenant.tags.view", ScopeAccount)
	store.roles["p1"] = []Role{role(RoleTenantManager, 60, sharedPerm, sameName)}
	store.direct["p1"] = []Permission{sharedPerm}
	resolver, _ := newTestResolver(t, store)

	perms := resolver.UserPermissions(context.Background(), "p1")
	require.Len(t, perms, 2)
}

func TestCacheAvoidsRepeatLoads(t *testing.T) {
	store := newStubStore()
	store.roles["p1"] = []Role{role(RoleTenantAdmin, 70, perm("tenant.*", ScopeTenant))}
	resolver, _ := newTestResolver(t, store)
	ctx := context.Background()

	require.True(t, resolver.HasPermission(ctx, "p1", "tenant.billing.read"))
	rolesAfterFirst := store.roleCalls
	require.True(t, resolver.HasPermission(ctx, "p1", "tenant.billing.read"))
	assert.Equal(t, rolesAfterFirst, store.roleCalls, "second check must be served from cache")
}

func TestCacheTTLExpiryForcesReload(t *testing.T) {
	store := newStubStore()
	store.roles["p1"] = []Role{role(RoleTenantAdmin, 70, perm("tenant.*", ScopeTenant))}
	resolver, mr := newTestResolver(t, store)
	ctx := context.Background()

	require.True(t, resolver.HasPermission(ctx, "p1", "tenant.billing.read"))
	calls := store.roleCalls

	// Within the TTL window the cached snapshot is served.
	mr.FastForward(299 * time.Second)
	require.True(t, resolver.HasPermission(ctx, "p1", "tenant.billing.read"))
	assert.Equal(t, calls, store.roleCalls)

	// Past the TTL the entry is a forced miss, never a stale return.
	mr.FastForward(2 * time.Second)
	require.True(t, resolver.HasPermission(ctx, "p1", "tenant.billing.read"))
	assert.Greater(t, store.roleCalls, calls)
}

func TestInvalidateUserIsScopedToPrincipal(t *testing.T) {
	store := newStubStore()
	store.roles["p1"] = []Role{role(RoleTenantAdmin, 70, perm("tenant.*", ScopeTenant))}
	store.roles["p2"] = []Role{role(RoleAccountAdmin, 40, perm("account.*", ScopeAccount))}
	resolver, _ := newTestResolver(t, store)
	ctx := context.Background()

	require.True(t, resolver.HasPermission(ctx, "p1", "tenant.billing.read"))
	require.True(t, resolver.HasPermission(ctx, "p2", "account.billing.read"))
	p1Calls, p2Baseline := store.roleCalls, store.roleCalls

	resolver.InvalidateUser(ctx, "p1")

	// p2 stays cached, p1 reloads.
	require.True(t, resolver.HasPermission(ctx, "p2", "account.billing.read"))
	assert.Equal(t, p2Baseline, store.roleCalls)
	require.True(t, resolver.HasPermission(ctx, "p1", "tenant.billing.read"))
	assert.Greater(t, store.roleCalls, p1Calls)
}

func TestResolverWithoutRedisDegradesToDirectLoads(t *testing.T) {
	store := newStubStore()
	store.roles["p1"] = []Role{role(RoleSuperAdmin, 100)}
	resolver := NewResolver(NewCatalog(store), nil, slog.Default(), nil)

	assert.True(t, resolver.HasPermission(context.Background(), "p1", "platform.users.view"))
}
