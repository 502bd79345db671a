package users

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stagedoor-hq/stagedoor/internal/authz"
	"github.com/stagedoor-hq/stagedoor/internal/shared"
)

// Store defines data access methods for user admin.
type Store interface {
	List(ctx context.Context, tenantID *uuid.UUID, limit, offset int) ([]User, error)
	Count(ctx context.Context, tenantID *uuid.UUID) (int, error)
	Get(ctx context.Context, id uuid.UUID) (User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (User, error)
}

// Service handles user admin logic behind resolver checks.
type Service struct {
	store    Store
	resolver *authz.Resolver
	audit    *shared.AuditLogger
	logger   *slog.Logger
}

// NewService builds a Service instance. audit may be nil.
func NewService(store Store, resolver *authz.Resolver, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, resolver: resolver, audit: audit, logger: logger}
}

// List returns a page of users, optionally restricted to a tenant.
func (s *Service) List(ctx context.Context, principalID string, tenantID *uuid.UUID, page, perPage int) ([]User, shared.Pagination, error) {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermUsersView) {
		return nil, shared.Pagination{}, shared.ErrForbidden
	}
	total, err := s.store.Count(ctx, tenantID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	pagination := shared.NewPagination(page, perPage, total)
	offset := (pagination.Page - 1) * pagination.PerPage
	users, err := s.store.List(ctx, tenantID, pagination.PerPage, offset)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, pagination, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, principalID string, id uuid.UUID) (User, error) {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermUsersView) {
		return User{}, shared.ErrForbidden
	}
	return s.store.Get(ctx, id)
}

// SetActive toggles a user's active flag. Deactivation drops the user's
// cached effective set so revocation takes hold before the TTL runs out.
func (s *Service) SetActive(ctx context.Context, principalID string, id uuid.UUID, active bool) (User, error) {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermUsersUpdate) {
		return User{}, shared.ErrForbidden
	}
	user, err := s.store.SetActive(ctx, id, active)
	if err != nil {
		return User{}, err
	}
	if !active {
		s.resolver.InvalidateUser(ctx, id.String())
	}
	s.recordAudit(ctx, principalID, "user.set_active", id.String())
	return user, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: entityID,
	}); err != nil {
		s.logger.Warn("user audit record failed", slog.Any("error", err))
	}
}
