package tags

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/stagedoor-hq/stagedoor/internal/authz"
)

type fakeAuthzStore struct {
	roles map[string][]authz.Role
}

func (f *fakeAuthzStore) FindRolesForPrincipal(ctx context.Context, principalID string) ([]authz.Role, error) {
	return f.roles[principalID], nil
}

func (f *fakeAuthzStore) FindDirectPermissionsForPrincipal(ctx context.Context, principalID string) ([]authz.Permission, error) {
	return nil, nil
}

func (f *fakeAuthzStore) FindPermissionByName(ctx context.Context, name string) (*authz.Permission, error) {
	return nil, nil
}

func authzRole(code string, level int) authz.Role {
	return authz.Role{ID: uuid.New(), Code: code, Name: code, Level: level}
}

func newTestGuard(roles map[string][]authz.Role) *Guard {
	store := &fakeAuthzStore{roles: roles}
	resolver := authz.NewResolver(authz.NewCatalog(store), nil, slog.Default(), nil)
	return NewGuard(resolver, slog.Default())
}

func TestCanCreateAtPlatformScope(t *testing.T) {
	guard := newTestGuard(map[string][]authz.Role{
		"admin":  {authzRole(authz.RolePlatformAdmin, 90)},
		"tenant": {authzRole(authz.RoleTenantAdmin, 70)},
	})
	ctx := context.Background()

	assert.True(t, guard.CanCreateAtScope(ctx, "admin", ScopePlatform, ScopeContext{}))
	assert.True(t, guard.CanCreateAtScope(ctx, "admin", ScopeConfiguration, ScopeContext{}))
	assert.False(t, guard.CanCreateAtScope(ctx, "tenant", ScopePlatform, ScopeContext{}))
}

func TestCanCreateAtTenantScopeRequiresTenantID(t *testing.T) {
	guard := newTestGuard(map[string][]authz.Role{
		"admin":  {authzRole(authz.RoleSuperAdmin, 100)},
		"tadmin": {authzRole(authz.RoleTenantAdmin, 70)},
	})
	ctx := context.Background()

	// Missing tenant id denies regardless of role.
	assert.False(t, guard.CanCreateAtScope(ctx, "admin", ScopeTenant, ScopeContext{}))
	assert.True(t, guard.CanCreateAtScope(ctx, "admin", ScopeTenant, ScopeContext{TenantID: "t1"}))
	assert.True(t, guard.CanCreateAtScope(ctx, "tadmin", ScopeTenant, ScopeContext{TenantID: "t1"}))
	assert.False(t, guard.CanCreateAtScope(ctx, "nobody", ScopeTenant, ScopeContext{TenantID: "t1"}))
}

func TestCanCreateAtAccountAndUserScopeRequireIdentifiers(t *testing.T) {
	guard := newTestGuard(map[string][]authz.Role{
		"admin": {authzRole(authz.RoleSuperAdmin, 100)},
	})
	ctx := context.Background()

	assert.False(t, guard.CanCreateAtScope(ctx, "admin", ScopeAccount, ScopeContext{TenantID: "t1"}))
	assert.True(t, guard.CanCreateAtScope(ctx, "admin", ScopeAccount, ScopeContext{TenantID: "t1", AccountID: "a1"}))

	assert.False(t, guard.CanCreateAtScope(ctx, "admin", ScopeUser, ScopeContext{TenantID: "t1", AccountID: "a1"}))
	assert.True(t, guard.CanCreateAtScope(ctx, "admin", ScopeUser, ScopeContext{TenantID: "t1", AccountID: "a1", UserID: "u1"}))
}

func TestCanAccessExisting(t *testing.T) {
	guard := newTestGuard(nil)

	// Platform and configuration tags are universally readable.
	assert.True(t, guard.CanAccessExisting(ScopePlatform, ScopeContext{}, ScopeContext{}))
	assert.True(t, guard.CanAccessExisting(ScopeConfiguration, ScopeContext{}, ScopeContext{TenantID: "t1"}))

	entity := ScopeContext{TenantID: "t1", AccountID: "a1", UserID: "u1"}

	assert.True(t, guard.CanAccessExisting(ScopeTenant, ScopeContext{TenantID: "t1"}, ScopeContext{TenantID: "t1"}))
	assert.False(t, guard.CanAccessExisting(ScopeTenant, ScopeContext{TenantID: "t1"}, ScopeContext{TenantID: "t2"}))

	// Every identifier at or below the entity scope must match, not just
	// the deepest one.
	assert.True(t, guard.CanAccessExisting(ScopeUser, entity, ScopeContext{TenantID: "t1", AccountID: "a1", UserID: "u1"}))
	assert.False(t, guard.CanAccessExisting(ScopeUser, entity, ScopeContext{TenantID: "t2", AccountID: "a1", UserID: "u1"}))
	assert.False(t, guard.CanAccessExisting(ScopeUser, entity, ScopeContext{TenantID: "t1", AccountID: "a2", UserID: "u1"}))
	assert.False(t, guard.CanAccessExisting(ScopeUser, entity, ScopeContext{UserID: "u1"}))

	assert.False(t, guard.CanAccessExisting(ScopeLevel("galaxy"), entity, entity))
}

func TestValidateIdentifiers(t *testing.T) {
	assert.True(t, ValidateIdentifiers(ScopePlatform, ScopeContext{}))
	assert.False(t, ValidateIdentifiers(ScopePlatform, ScopeContext{TenantID: "t1"}))

	assert.True(t, ValidateIdentifiers(ScopeTenant, ScopeContext{TenantID: "t1"}))
	assert.False(t, ValidateIdentifiers(ScopeTenant, ScopeContext{TenantID: "t1", UserID: "u1"}))

	assert.True(t, ValidateIdentifiers(ScopeAccount, ScopeContext{TenantID: "t1", AccountID: "a1"}))
	assert.False(t, ValidateIdentifiers(ScopeAccount, ScopeContext{AccountID: "a1"}))
	assert.False(t, ValidateIdentifiers(ScopeAccount, ScopeContext{TenantID: "t1", AccountID: "a1", UserID: "u1"}))

	assert.True(t, ValidateIdentifiers(ScopeUser, ScopeContext{TenantID: "t1", AccountID: "a1", UserID: "u1"}))
	assert.False(t, ValidateIdentifiers(ScopeUser, ScopeContext{TenantID: "t1", AccountID: "a1"}))
}
