package authz

import (
	"context"

	"github.com/google/uuid"
)

// Store loads durable role and permission assignments. A principal the
// store does not know is indistinguishable from one with no assignments:
// implementations return empty sets, not an error.
type Store interface {
	// FindRolesForPrincipal returns every role explicitly assigned to the
	// principal, with each role's granted permissions populated. Roles do
	// not inherit from each other.
	FindRolesForPrincipal(ctx context.Context, principalID string) ([]Role, error)
	// FindDirectPermissionsForPrincipal returns permissions assigned to the
	// principal independently of any role.
	FindDirectPermissionsForPrincipal(ctx context.Context, principalID string) ([]Permission, error)
	// FindPermissionByName looks up catalog data for a single permission.
	// Returns shared.ErrNotFound when no such permission exists.
	FindPermissionByName(ctx context.Context, name string) (*Permission, error)
}

// Catalog composes a principal's effective permission set from durable
// storage. Pure data access, no policy.
type Catalog struct {
	store Store
}

// NewCatalog constructs a Catalog over the given store.
func NewCatalog(store Store) *Catalog {
	return &Catalog{store: store}
}

// LoadPermissions returns the deduplicated union of role-derived and
// directly assigned permissions. Deduplication is by permission identity,
// not name: the catalog must not assume names are unique.
func (c *Catalog) LoadPermissions(ctx context.Context, principalID string) ([]Permission, error) {
	roles, err := c.store.FindRolesForPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	direct, err := c.store.FindDirectPermissionsForPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{})
	perms := make([]Permission, 0, len(direct))
	add := func(p Permission) {
		if _, ok := seen[p.ID]; ok {
			return
		}
		seen[p.ID] = struct{}{}
		perms = append(perms, p)
	}
	for _, role := range roles {
		for _, p := range role.Permissions {
			add(p)
		}
	}
	for _, p := range direct {
		add(p)
	}
	return perms, nil
}

// LoadRoles returns every role assigned to the principal.
func (c *Catalog) LoadRoles(ctx context.Context, principalID string) ([]Role, error) {
	return c.store.FindRolesForPrincipal(ctx, principalID)
}
