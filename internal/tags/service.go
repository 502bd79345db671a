package tags

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stagedoor-hq/stagedoor/internal/authz"
	"github.com/stagedoor-hq/stagedoor/internal/shared"
)

// Service errors surfaced to the HTTP layer.
var (
	ErrInvalidScope       = errors.New("tags: invalid scope level")
	ErrInvalidIdentifiers = errors.New("tags: identifiers inconsistent with scope")
)

// Store abstracts tag persistence for the service.
type Store interface {
	Create(ctx context.Context, tag Tag) (Tag, error)
	Get(ctx context.Context, id uuid.UUID) (Tag, error)
	ListVisible(ctx context.Context, scope ScopeContext) ([]Tag, error)
	Update(ctx context.Context, id uuid.UUID, name, slug string) (Tag, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindScopeContext(ctx context.Context, principalID string) (ScopeContext, error)
}

// Service orchestrates tag registration and access behind the scope guard.
type Service struct {
	store    Store
	guard    *Guard
	resolver *authz.Resolver
	audit    *shared.AuditLogger
	logger   *slog.Logger
}

// NewService constructs a Service. audit may be nil.
func NewService(store Store, guard *Guard, resolver *authz.Resolver, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, guard: guard, resolver: resolver, audit: audit, logger: logger}
}

// CreateInput carries a tag registration request.
type CreateInput struct {
	Name      string
	Slug      string
	Scope     string
	TenantID  string
	AccountID string
	UserID    string
}

// Create registers a tag at the declared scope level.
func (s *Service) Create(ctx context.Context, principalID string, in CreateInput) (Tag, error) {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermTagsCreate) {
		return Tag{}, shared.ErrForbidden
	}
	level, ok := ParseScopeLevel(in.Scope)
	if !ok {
		return Tag{}, ErrInvalidScope
	}
	ids := ScopeContext{TenantID: in.TenantID, AccountID: in.AccountID, UserID: in.UserID}
	if !ValidateIdentifiers(level, ids) {
		return Tag{}, ErrInvalidIdentifiers
	}
	if !s.guard.CanCreateAtScope(ctx, principalID, level, ids) {
		return Tag{}, shared.ErrForbidden
	}

	tag := Tag{ID: uuid.New(), Name: in.Name, Slug: in.Slug, Scope: level}
	var err error
	if tag.TenantID, err = parseOptionalID(in.TenantID); err != nil {
		return Tag{}, ErrInvalidIdentifiers
	}
	if tag.AccountID, err = parseOptionalID(in.AccountID); err != nil {
		return Tag{}, ErrInvalidIdentifiers
	}
	if tag.UserID, err = parseOptionalID(in.UserID); err != nil {
		return Tag{}, ErrInvalidIdentifiers
	}

	created, err := s.store.Create(ctx, tag)
	if err != nil {
		return Tag{}, err
	}
	s.recordAudit(ctx, principalID, "tag.create", created.ID.String())
	return created, nil
}

// Get returns a tag the principal's scope context may access.
func (s *Service) Get(ctx context.Context, principalID string, id uuid.UUID) (Tag, error) {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermTagsView) {
		return Tag{}, shared.ErrForbidden
	}
	tag, err := s.store.Get(ctx, id)
	if err != nil {
		return Tag{}, err
	}
	scope, err := s.callerScope(ctx, principalID)
	if err != nil {
		return Tag{}, err
	}
	if !s.guard.CanAccessExisting(tag.Scope, tag.Identifiers(), scope) {
		return Tag{}, shared.ErrForbidden
	}
	return tag, nil
}

// List returns every tag visible from the principal's scope context.
func (s *Service) List(ctx context.Context, principalID string) ([]Tag, error) {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermTagsView) {
		return nil, shared.ErrForbidden
	}
	scope, err := s.callerScope(ctx, principalID)
	if err != nil {
		return nil, err
	}
	tags, err := s.store.ListVisible(ctx, scope)
	if err != nil {
		return nil, err
	}
	// The query already filters; the guard stays the single authority.
	visible := tags[:0]
	for _, tag := range tags {
		if s.guard.CanAccessExisting(tag.Scope, tag.Identifiers(), scope) {
			visible = append(visible, tag)
		}
	}
	return visible, nil
}

// Update renames a tag the principal may access.
func (s *Service) Update(ctx context.Context, principalID string, id uuid.UUID, name, slug string) (Tag, error) {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermTagsUpdate) {
		return Tag{}, shared.ErrForbidden
	}
	if err := s.checkAccess(ctx, principalID, id); err != nil {
		return Tag{}, err
	}
	updated, err := s.store.Update(ctx, id, name, slug)
	if err != nil {
		return Tag{}, err
	}
	s.recordAudit(ctx, principalID, "tag.update", id.String())
	return updated, nil
}

// Delete removes a tag the principal may access.
func (s *Service) Delete(ctx context.Context, principalID string, id uuid.UUID) error {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermTagsDelete) {
		return shared.ErrForbidden
	}
	if err := s.checkAccess(ctx, principalID, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, principalID, "tag.delete", id.String())
	return nil
}

func (s *Service) checkAccess(ctx context.Context, principalID string, id uuid.UUID) error {
	tag, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	scope, err := s.callerScope(ctx, principalID)
	if err != nil {
		return err
	}
	if !s.guard.CanAccessExisting(tag.Scope, tag.Identifiers(), scope) {
		return shared.ErrForbidden
	}
	return nil
}

// callerScope resolves the caller's own tenancy identifiers. Platform
// admins typically have none, which still grants platform-scope reads.
func (s *Service) callerScope(ctx context.Context, principalID string) (ScopeContext, error) {
	scope, err := s.store.FindScopeContext(ctx, principalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ScopeContext{UserID: principalID}, nil
		}
		return ScopeContext{}, err
	}
	return scope, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "tag",
		EntityID: entityID,
	}); err != nil {
		s.logger.Warn("tag audit record failed", slog.Any("error", err))
	}
}

func parseOptionalID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
