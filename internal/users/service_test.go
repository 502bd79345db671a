package users

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

type mockUserStore struct {
	users map[uuid.UUID]User
}

func (m *mockUserStore) List(ctx context.Context, tenantID *uuid.UUID, limit, offset int) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		if tenantID != nil && (u.TenantID == nil || *u.TenantID != *tenantID) {
			continue
		}
		out = append(out, u)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockUserStore) Count(ctx context.Context, tenantID *uuid.UUID) (int, error) {
	users, err := m.List(ctx, tenantID, len(m.users), 0)
	return len(users), err
}

func (m *mockUserStore) Get(ctx context.Context, id uuid.UUID) (User, error) {
	user, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return user, nil
}

func (m *mockUserStore) SetActive(ctx context.Context, id uuid.UUID, active bool) (User, error) {
	user, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	user.IsActive = active
	m.users[id] = user
	return user, nil
}

type stubAuthzStore struct {
	roles map[string][]authz.Role
}

func (s *stubAuthzStore) FindRolesForPrincipal(ctx context.Context, principalID string) ([]authz.Role, error) {
	return s.roles[principalID], nil
}

func (s *stubAuthzStore) FindDirectPermissionsForPrincipal(ctx context.Context, principalID string) ([]authz.Permission, error) {
	return nil, nil
}

func (s *stubAuthzStore) FindPermissionByName(ctx context.Context, name string) (*authz.Permission, error) {
	return nil, shared.ErrNotFound
}

func staffRole(code string, level int, perms ...string) authz.Role {
	role := authz.Role{ID: uuid.New(), Code: code, Name: code, Level: level}
	for _, name := range perms {
		role.Permissions = append(role.Permissions, authz.Permission{
			ID: uuid.New(), Name: name, Scope: authz.ScopePlatform,
		})
	}
	return role
}

func newTestService(t *testing.T, store *mockUserStore, authzStore *stubAuthzStore) (*Service, *authz.Resolver) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := authz.NewCache(client, 0, slog.Default())
	resolver := authz.NewResolver(authz.NewCatalog(authzStore), cache, slog.Default(), nil)
	return NewService(store, resolver, nil, slog.Default()), resolver
}

func TestListRequiresViewPermission(t *testing.T) {
	store := &mockUserStore{users: map[uuid.UUID]User{}}
	svc, _ := newTestService(t, store, &stubAuthzStore{roles: map[string][]authz.Role{
		"admin": {staffRole(authz.RolePlatformAdmin, 90, shared.PermUsersView)},
	}})
	ctx := context.Background()

	_, pagination, err := svc.List(ctx, "admin", nil, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, pagination.PerPage)

	_, _, err = svc.List(ctx, "nobody", nil, 1, 20)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestDeactivateDropsCachedPermissions(t *testing.T) {
	subject := User{ID: uuid.New(), Email: "amira@example.com", IsActive: true}
	store := &mockUserStore{users: map[uuid.UUID]User{subject.ID: subject}}
	authzStore := &stubAuthzStore{roles: map[string][]authz.Role{
		"admin":             {staffRole(authz.RolePlatformAdmin, 90, shared.PermUsersUpdate)},
		subject.ID.String(): {staffRole("support", 10, "tenant.tickets.view")},
	}}
	svc, resolver := newTestService(t, store, authzStore)
	ctx := context.Background()

	// Prime the subject's cached grant, then revoke in storage.
	assert.True(t, resolver.HasPermission(ctx, subject.ID.String(), "tenant.tickets.view"))
	authzStore.roles[subject.ID.String()] = nil

	user, err := svc.SetActive(ctx, "admin", subject.ID, false)
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	// The stale entry is gone without waiting for the TTL.
	assert.False(t, resolver.HasPermission(ctx, subject.ID.String(), "tenant.tickets.view"))
}
