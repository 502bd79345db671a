package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagedoor-hq/stagedoor/internal/shared"
)

// PostgresStore implements Store against the platform schema.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// FindRolesForPrincipal returns the principal's assigned roles with their
// granted permissions populated. An unknown principal yields an empty set.
func (s *PostgresStore) FindRolesForPrincipal(ctx context.Context, principalID string) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.code, r.name, r.level, r.tenant_id, r.is_system,
		       p.id, p.name, p.scope, p.description
		FROM roles r
		JOIN principal_roles pr ON pr.role_id = r.id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE pr.principal_id = $1
		ORDER BY r.code`, principalID)
	if err != nil {
		return nil, fmt.Errorf("authz: find roles: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*Role)
	order := make([]uuid.UUID, 0, 4)
	for rows.Next() {
		var (
			role      Role
			permID    *uuid.UUID
			permName  *string
			permScope *string
			permDesc  *string
		)
		if err := rows.Scan(&role.ID, &role.Code, &role.Name, &role.Level, &role.TenantID, &role.IsSystem,
			&permID, &permName, &permScope, &permDesc); err != nil {
			return nil, fmt.Errorf("authz: scan role: %w", err)
		}
		existing, ok := byID[role.ID]
		if !ok {
			existing = &role
			byID[role.ID] = existing
			order = append(order, role.ID)
		}
		if permID != nil {
			perm := Permission{ID: *permID, Name: *permName, Scope: Scope(*permScope)}
			if permDesc != nil {
				perm.Description = *permDesc
			}
			existing.Permissions = append(existing.Permissions, perm)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("authz: read roles: %w", err)
	}

	roles := make([]Role, 0, len(order))
	for _, id := range order {
		roles = append(roles, *byID[id])
	}
	return roles, nil
}

// FindDirectPermissionsForPrincipal returns permissions assigned directly
// to the principal, independent of any role.
func (s *PostgresStore) FindDirectPermissionsForPrincipal(ctx context.Context, principalID string) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name, p.scope, p.description
		FROM permissions p
		JOIN principal_permissions pp ON pp.permission_id = p.id
		WHERE pp.principal_id = $1
		ORDER BY p.name`, principalID)
	if err != nil {
		return nil, fmt.Errorf("authz: find direct permissions: %w", err)
	}
	defer rows.Close()

	perms := make([]Permission, 0, 8)
	for rows.Next() {
		var (
			perm Permission
			desc *string
		)
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Scope, &desc); err != nil {
			return nil, fmt.Errorf("authz: scan permission: %w", err)
		}
		if desc != nil {
			perm.Description = *desc
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("authz: read permissions: %w", err)
	}
	return perms, nil
}

// FindPermissionByName looks up a single catalog permission.
func (s *PostgresStore) FindPermissionByName(ctx context.Context, name string) (*Permission, error) {
	var (
		perm Permission
		desc *string
	)
	err := s.pool.QueryRow(ctx, `SELECT id, name, scope, description FROM permissions WHERE name = $1 LIMIT 1`, name).
		Scan(&perm.ID, &perm.Name, &perm.Scope, &desc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("authz: find permission by name: %w", err)
	}
	if desc != nil {
		perm.Description = *desc
	}
	return &perm, nil
}

// FindAccountIDForPrincipal implements AccountLookup for own-scope account
// checks. A principal without an account resolves to an empty string.
func (s *PostgresStore) FindAccountIDForPrincipal(ctx context.Context, principalID string) (string, error) {
	var accountID *uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT account_id FROM users WHERE id = $1`, principalID).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("authz: find account: %w", err)
	}
	if accountID == nil {
		return "", nil
	}
	return accountID.String(), nil
}

// ListRecentlyActivePrincipals returns ids of principals seen since the
// cutoff, newest first. Used by the cache warmup job.
func (s *PostgresStore) ListRecentlyActivePrincipals(ctx context.Context, since time.Time, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM users
		WHERE is_active AND last_login_at >= $1
		ORDER BY last_login_at DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("authz: list active principals: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("authz: scan principal id: %w", err)
		}
		ids = append(ids, id.String())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("authz: read principal ids: %w", err)
	}
	return ids, nil
}
