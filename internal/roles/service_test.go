package roles

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagedoor-hq/stagedoor/internal/authz"
	"github.com/stagedoor-hq/stagedoor/internal/shared"
)

type mockRoleStore struct {
	roles       map[uuid.UUID]Role
	rolePerms   map[uuid.UUID][]Permission
	assignments map[uuid.UUID][]string
	catalog     map[string]Permission
}

func newMockRoleStore() *mockRoleStore {
	return &mockRoleStore{
		roles:       make(map[uuid.UUID]Role),
		rolePerms:   make(map[uuid.UUID][]Permission),
		assignments: make(map[uuid.UUID][]string),
		catalog:     make(map[string]Permission),
	}
}

func (m *mockRoleStore) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRoleStore) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (m *mockRoleStore) CreateRole(ctx context.Context, role Role) (Role, error) {
	for _, existing := range m.roles {
		if existing.Code == role.Code {
			return Role{}, ErrDuplicateCode
		}
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockRoleStore) UpdateRole(ctx context.Context, id uuid.UUID, name string, level int) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	role.Name, role.Level = name, level
	m.roles[id] = role
	return role, nil
}

func (m *mockRoleStore) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.roles, id)
	delete(m.rolePerms, id)
	return nil
}

func (m *mockRoleStore) CountAssignments(ctx context.Context, roleID uuid.UUID) (int, error) {
	return len(m.assignments[roleID]), nil
}

func (m *mockRoleStore) ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]Permission, error) {
	return m.rolePerms[roleID], nil
}

func (m *mockRoleStore) ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	perms := make([]Permission, 0, len(permissionIDs))
	for _, id := range permissionIDs {
		perms = append(perms, Permission{ID: id})
	}
	m.rolePerms[roleID] = perms
	return nil
}

func (m *mockRoleStore) AssignRole(ctx context.Context, principalID string, roleID uuid.UUID) error {
	for _, held := range m.assignments[roleID] {
		if held == principalID {
			return nil
		}
	}
	m.assignments[roleID] = append(m.assignments[roleID], principalID)
	return nil
}

func (m *mockRoleStore) RemoveRole(ctx context.Context, principalID string, roleID uuid.UUID) error {
	held := m.assignments[roleID]
	for i, id := range held {
		if id == principalID {
			m.assignments[roleID] = append(held[:i], held[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *mockRoleStore) ListHolders(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	return m.assignments[roleID], nil
}

func (m *mockRoleStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(m.catalog))
	for _, p := range m.catalog {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockRoleStore) UpsertPermission(ctx context.Context, name, scope, description string) (Permission, error) {
	p, ok := m.catalog[name]
	if !ok {
		p = Permission{ID: uuid.New(), Name: name}
	}
	p.Scope, p.Description = scope, description
	m.catalog[name] = p
	return p, nil
}

// mutableAuthzStore backs the resolver so tests can flip grants and watch
// cache invalidation take effect.
type mutableAuthzStore struct {
	roles map[string][]authz.Role
}

func (m *mutableAuthzStore) FindRolesForPrincipal(ctx context.Context, principalID string) ([]authz.Role, error) {
	return m.roles[principalID], nil
}

func (m *mutableAuthzStore) FindDirectPermissionsForPrincipal(ctx context.Context, principalID string) ([]authz.Permission, error) {
	return nil, nil
}

func (m *mutableAuthzStore) FindPermissionByName(ctx context.Context, name string) (*authz.Permission, error) {
	return nil, shared.ErrNotFound
}

func adminRole(code string, level int, perms ...string) authz.Role {
	role := authz.Role{ID: uuid.New(), Code: code, Name: code, Level: level}
	for _, name := range perms {
		role.Permissions = append(role.Permissions, authz.Permission{
			ID: uuid.New(), Name: name, Scope: authz.ScopePlatform,
		})
	}
	return role
}

func newTestService(t *testing.T, store *mockRoleStore, authzStore *mutableAuthzStore) (*Service, *authz.Resolver) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := authz.NewCache(client, 0, slog.Default())
	resolver := authz.NewResolver(authz.NewCatalog(authzStore), cache, slog.Default(), nil)
	return NewService(store, resolver, nil, slog.Default()), resolver
}

func TestDeleteRoleBlockedWhileAssigned(t *testing.T) {
	store := newMockRoleStore()
	role := Role{ID: uuid.New(), Code: "editor", Name: "Editor", Level: 20}
	store.roles[role.ID] = role
	store.assignments[role.ID] = []string{"u1"}

	svc, _ := newTestService(t, store, &mutableAuthzStore{roles: map[string][]authz.Role{
		"admin": {adminRole(authz.RolePlatformAdmin, 90, shared.PermRolesDelete)},
	}})

	err := svc.Delete(context.Background(), "admin", role.ID)
	assert.ErrorIs(t, err, shared.ErrRoleInUse)

	store.assignments[role.ID] = nil
	require.NoError(t, svc.Delete(context.Background(), "admin", role.ID))
	assert.Empty(t, store.roles)
}

func TestDeleteSystemRoleRequiresSuperAdmin(t *testing.T) {
	store := newMockRoleStore()
	role := Role{ID: uuid.New(), Code: "tenant_admin", Name: "Tenant Admin", Level: 70, IsSystem: true}
	store.roles[role.ID] = role

	svc, _ := newTestService(t, store, &mutableAuthzStore{roles: map[string][]authz.Role{
		"padmin": {adminRole(authz.RolePlatformAdmin, 90, shared.PermRolesDelete)},
		"root":   {adminRole(authz.RoleSuperAdmin, 100)},
	}})
	ctx := context.Background()

	err := svc.Delete(ctx, "padmin", role.ID)
	assert.ErrorIs(t, err, shared.ErrRoleProtected)

	require.NoError(t, svc.Delete(ctx, "root", role.ID))
}

func TestCreateRoleRequiresPermission(t *testing.T) {
	svc, _ := newTestService(t, newMockRoleStore(), &mutableAuthzStore{roles: map[string][]authz.Role{
		"viewer": {adminRole(authz.RoleTenantManager, 60, shared.PermRolesView)},
	}})

	_, err := svc.Create(context.Background(), "viewer", CreateInput{Code: "editor", Name: "Editor", Level: 20})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestAssignRoleInvalidatesSubjectCache(t *testing.T) {
	store := newMockRoleStore()
	role := Role{ID: uuid.New(), Code: "support", Name: "Support", Level: 10}
	store.roles[role.ID] = role

	authzStore := &mutableAuthzStore{roles: map[string][]authz.Role{
		"admin": {adminRole(authz.RolePlatformAdmin, 90, shared.PermRolesUpdate)},
	}}
	svc, resolver := newTestService(t, store, authzStore)
	ctx := context.Background()

	// Prime the subject's cached (empty) effective set.
	assert.False(t, resolver.HasPermission(ctx, "subject", "tenant.tickets.view"))

	// The grant lands in storage and the assignment drops the stale entry.
	authzStore.roles["subject"] = []authz.Role{adminRole("support", 10, "tenant.tickets.view")}
	require.NoError(t, svc.Assign(ctx, "admin", "subject", role.ID))

	assert.True(t, resolver.HasPermission(ctx, "subject", "tenant.tickets.view"))
}

func TestSetPermissionsInvalidatesEveryHolder(t *testing.T) {
	store := newMockRoleStore()
	role := Role{ID: uuid.New(), Code: "support", Name: "Support", Level: 10}
	store.roles[role.ID] = role
	store.assignments[role.ID] = []string{"u1", "u2"}

	authzStore := &mutableAuthzStore{roles: map[string][]authz.Role{
		"admin": {adminRole(authz.RolePlatformAdmin, 90, shared.PermRolesUpdate)},
	}}
	svc, resolver := newTestService(t, store, authzStore)
	ctx := context.Background()

	assert.False(t, resolver.HasPermission(ctx, "u1", "tenant.tickets.view"))
	assert.False(t, resolver.HasPermission(ctx, "u2", "tenant.tickets.view"))

	permID := uuid.New()
	authzStore.roles["u1"] = []authz.Role{adminRole("support", 10, "tenant.tickets.view")}
	authzStore.roles["u2"] = []authz.Role{adminRole("support", 10, "tenant.tickets.view")}
	require.NoError(t, svc.SetPermissions(ctx, "admin", role.ID, []uuid.UUID{permID}))

	assert.True(t, resolver.HasPermission(ctx, "u1", "tenant.tickets.view"))
	assert.True(t, resolver.HasPermission(ctx, "u2", "tenant.tickets.view"))
}

func TestEnsurePermissionValidatesNameAndScope(t *testing.T) {
	store := newMockRoleStore()
	svc, _ := newTestService(t, store, &mutableAuthzStore{roles: map[string][]authz.Role{
		"admin": {adminRole(authz.RolePlatformAdmin, 90, shared.PermPermissionsUpdate)},
	}})
	ctx := context.Background()

	_, err := svc.EnsurePermission(ctx, "admin", "tickets.view", "tenant", "")
	assert.ErrorIs(t, err, ErrInvalidPermissionName)

	_, err = svc.EnsurePermission(ctx, "admin", "tenant.tickets.view", "galaxy", "")
	assert.ErrorIs(t, err, ErrInvalidPermissionScope)

	perm, err := svc.EnsurePermission(ctx, "admin", "tenant.tickets.view", "tenant", "view support tickets")
	require.NoError(t, err)
	assert.Equal(t, "tenant.tickets.view", perm.Name)

	// Upsert keeps the identity stable across refreshes.
	again, err := svc.EnsurePermission(ctx, "admin", "tenant.tickets.view", "tenant", "updated")
	require.NoError(t, err)
	assert.Equal(t, perm.ID, again.ID)
	assert.Equal(t, "updated", again.Description)
}
