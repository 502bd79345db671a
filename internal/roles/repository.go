package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagedoor-hq/stagedoor/internal/platform/db"
	"github.com/stagedoor-hq/stagedoor/internal/shared"
)

// ErrDuplicateCode indicates the role code is already taken.
var ErrDuplicateCode = errors.New("roles: code already exists")

// Repository provides PostgreSQL backed persistence for roles and the
// permission catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, code, name, level, tenant_id, is_system, created_at, updated_at`

// ListRoles returns every role, highest level first.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY level DESC, code`)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

// GetRole fetches a single role by id.
func (r *Repository) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, fmt.Errorf("roles: get: %w", err)
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (id, code, name, level, tenant_id, is_system)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING `+roleColumns,
		role.ID, role.Code, role.Name, role.Level, role.TenantID)
	created, err := scanRole(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, ErrDuplicateCode
		}
		return Role{}, fmt.Errorf("roles: create: %w", err)
	}
	return created, nil
}

// UpdateRole changes a role's display name and level.
func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, name string, level int) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE roles SET name = $2, level = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns, id, name, level)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, fmt.Errorf("roles: update: %w", err)
	}
	return role, nil
}

// DeleteRole removes a role and its permission links.
func (r *Repository) DeleteRole(ctx context.Context, id uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return fmt.Errorf("roles: delete links: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("roles: delete: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// CountAssignments reports how many principals currently hold the role.
func (r *Repository) CountAssignments(ctx context.Context, roleID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM principal_roles WHERE role_id = $1`, roleID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("roles: count assignments: %w", err)
	}
	return n, nil
}

// ListRolePermissions returns the permissions attached to a role.
func (r *Repository) ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.scope, p.description
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name`, roleID)
	if err != nil {
		return nil, fmt.Errorf("roles: role permissions: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// ReplaceRolePermissions swaps the role's permission set atomically.
func (r *Repository) ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return fmt.Errorf("roles: clear permissions: %w", err)
		}
		for _, pid := range permissionIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, roleID, pid); err != nil {
				return fmt.Errorf("roles: attach permission: %w", err)
			}
		}
		return nil
	})
}

// AssignRole grants a role to a principal. Re-assignment is a no-op.
func (r *Repository) AssignRole(ctx context.Context, principalID string, roleID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO principal_roles (principal_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, principalID, roleID)
	if err != nil {
		return fmt.Errorf("roles: assign: %w", err)
	}
	return nil
}

// RemoveRole revokes a role from a principal.
func (r *Repository) RemoveRole(ctx context.Context, principalID string, roleID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM principal_roles WHERE principal_id = $1 AND role_id = $2`, principalID, roleID)
	if err != nil {
		return fmt.Errorf("roles: remove: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListHolders returns the ids of every principal holding the role.
func (r *Repository) ListHolders(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT principal_id FROM principal_roles WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, fmt.Errorf("roles: holders: %w", err)
	}
	defer rows.Close()

	holders := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("roles: scan holder: %w", err)
		}
		holders = append(holders, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: read holders: %w", err)
	}
	return holders, nil
}

// ListPermissions returns the full permission catalog.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, scope, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("roles: permissions: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// UpsertPermission creates or refreshes a catalog entry keyed by name.
func (r *Repository) UpsertPermission(ctx context.Context, name, scope, description string) (Permission, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (id, name, scope, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET scope = EXCLUDED.scope, description = EXCLUDED.description
		RETURNING id, name, scope, description`,
		uuid.New(), name, scope, description)
	var p Permission
	if err := row.Scan(&p.ID, &p.Name, &p.Scope, &p.Description); err != nil {
		return Permission{}, fmt.Errorf("roles: upsert permission: %w", err)
	}
	return p, nil
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Code, &role.Name, &role.Level,
		&role.TenantID, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	roles := make([]Role, 0, 8)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("roles: scan: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: read: %w", err)
	}
	return roles, nil
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	perms := make([]Permission, 0, 16)
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Scope, &p.Description); err != nil {
			return nil, fmt.Errorf("roles: scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: read permissions: %w", err)
	}
	return perms, nil
}
