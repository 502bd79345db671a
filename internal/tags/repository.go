package tags

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stagedoor-hq/stagedoor/internal/shared"
)

// ErrDuplicateSlug indicates a tag slug already registered at that scope.
var ErrDuplicateSlug = errors.New("tags: slug already exists at scope")

// Repository provides PostgreSQL backed persistence for tags.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const tagColumns = `id, name, slug, scope, tenant_id, account_id, user_id, created_at, updated_at`

// Create inserts a new tag.
func (r *Repository) Create(ctx context.Context, tag Tag) (Tag, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tags (id, name, slug, scope, tenant_id, account_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+tagColumns, tag.ID, tag.Name, tag.Slug, tag.Scope, tag.TenantID, tag.AccountID, tag.UserID)
	created, err := scanTag(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Tag{}, ErrDuplicateSlug
		}
		return Tag{}, fmt.Errorf("tags: create: %w", err)
	}
	return created, nil
}

// Get fetches a tag by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Tag, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = $1`, id)
	tag, err := scanTag(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tag{}, shared.ErrNotFound
		}
		return Tag{}, fmt.Errorf("tags: get: %w", err)
	}
	return tag, nil
}

// ListVisible returns tags visible from the given scope context: platform
// and configuration tags plus those bound to the caller's tenant, account
// or user.
func (r *Repository) ListVisible(ctx context.Context, scope ScopeContext) ([]Tag, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+tagColumns+` FROM tags
		WHERE scope IN ('platform', 'configuration')
		   OR (scope = 'tenant' AND tenant_id::text = $1)
		   OR (scope = 'account' AND tenant_id::text = $1 AND account_id::text = $2)
		   OR (scope = 'user' AND tenant_id::text = $1 AND account_id::text = $2 AND user_id::text = $3)
		ORDER BY slug`, scope.TenantID, scope.AccountID, scope.UserID)
	if err != nil {
		return nil, fmt.Errorf("tags: list: %w", err)
	}
	defer rows.Close()

	tags := make([]Tag, 0, 16)
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("tags: scan: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tags: read: %w", err)
	}
	return tags, nil
}

// Update renames a tag.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name, slug string) (Tag, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE tags SET name = $2, slug = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+tagColumns, id, name, slug)
	tag, err := scanTag(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tag{}, shared.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Tag{}, ErrDuplicateSlug
		}
		return Tag{}, fmt.Errorf("tags: update: %w", err)
	}
	return tag, nil
}

// Delete removes a tag. Returns shared.ErrNotFound if nothing was deleted.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("tags: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindScopeContext resolves the caller's own tenancy identifiers from the
// users table.
func (r *Repository) FindScopeContext(ctx context.Context, principalID string) (ScopeContext, error) {
	var tenantID, accountID *uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT tenant_id, account_id FROM users WHERE id = $1`, principalID).
		Scan(&tenantID, &accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ScopeContext{}, shared.ErrNotFound
		}
		return ScopeContext{}, fmt.Errorf("tags: scope context: %w", err)
	}
	sc := ScopeContext{UserID: principalID}
	if tenantID != nil {
		sc.TenantID = tenantID.String()
	}
	if accountID != nil {
		sc.AccountID = accountID.String()
	}
	return sc, nil
}

func scanTag(row pgx.Row) (Tag, error) {
	var tag Tag
	err := row.Scan(&tag.ID, &tag.Name, &tag.Slug, &tag.Scope,
		&tag.TenantID, &tag.AccountID, &tag.UserID, &tag.CreatedAt, &tag.UpdatedAt)
	return tag, err
}
