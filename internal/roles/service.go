package roles

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
	ErrInvalidPermissionName  = errors.New("roles: permission name must be module.resource.action")
	ErrInvalidPermissionScope = errors.New("roles: unknown permission scope")
)

// Store abstracts role persistence for the service.
type Store interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, id uuid.UUID, name string, level int) (Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
	CountAssignments(ctx context.Context, roleID uuid.UUID) (int, error)
	ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]Permission, error)
	ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error
	AssignRole(ctx context.Context, principalID string, roleID uuid.UUID) error
	RemoveRole(ctx context.Context, principalID string, roleID uuid.UUID) error
	ListHolders(ctx context.Context, roleID uuid.UUID) ([]string, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	UpsertPermission(ctx context.Context, name, scope, description string) (Permission, error)
}

// Service guards role administration behind the resolver it feeds. Every
// mutation that can change a principal's effective permission set drops
// the affected cache entries.
type Service struct {
	store    Store
	resolver *authz.Resolver
	audit    *shared.AuditLogger
	logger   *slog.Logger
}

// NewService constructs a Service. audit may be nil.
func NewService(store Store, resolver *authz.Resolver, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, resolver: resolver, audit: audit, logger: logger}
}

// List returns every role.
func (s *Service) List(ctx context.Context, principalID string) ([]Role, error) {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermRolesView) {
		return nil, shared.ErrForbidden
	}
	return s.store.ListRoles(ctx)
}

// Get returns a role by id.
func (s *Service) Get(ctx context.Context, principalID string, id uuid.UUID) (Role, error) {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermRolesView) {
		return Role{}, shared.ErrForbidden
	}
	return s.store.GetRole(ctx, id)
}

// RolePermissions returns the permissions attached to a role.
func (s *Service) RolePermissions(ctx context.Context, principalID string, roleID uuid.UUID) ([]Permission, error) {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermRolesView) {
		return nil, shared.ErrForbidden
	}
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.store.ListRolePermissions(ctx, roleID)
}

// CreateInput carries a new role definition.
type CreateInput struct {
	Code     string
	Name     string
	Level    int
	TenantID string
}

// Create registers a non-system role.
func (s *Service) Create(ctx context.Context, principalID string, in CreateInput) (Role, error) {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermRolesUpdate) {
		return Role{}, shared.ErrForbidden
	}
	role := Role{ID: uuid.New(), Code: in.Code, Name: in.Name, Level: in.Level}
	if in.TenantID != "" {
		tid, err := uuid.Parse(in.TenantID)
		if err != nil {
			return Role{}, shared.ErrNotFound
		}
		role.TenantID = &tid
	}
	created, err := s.store.CreateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, principalID, "role.create", created.ID.String())
	return created, nil
}

// Update changes a role's name and level, then drops the cache of every
// holder since their max role level may have moved.
func (s *Service) Update(ctx context.Context, principalID string, id uuid.UUID, name string, level int) (Role, error) {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermRolesUpdate) {
		return Role{}, shared.ErrForbidden
	}
	updated, err := s.store.UpdateRole(ctx, id, name, level)
	if err != nil {
		return Role{}, err
	}
	s.invalidateHolders(ctx, id)
	s.recordAudit(ctx, principalID, "role.update", id.String())
	return updated, nil
}

// Delete removes a role. System roles require a super admin caller, and
// a role still assigned to any principal cannot be deleted.
func (s *Service) Delete(ctx context.Context, principalID string, id uuid.UUID) error {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermRolesDelete) {
		return shared.ErrForbidden
	}
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem && !authz.RolesInclude(s.resolver.UserRoles(ctx, principalID), authz.RoleSuperAdmin) {
		return shared.ErrRoleProtected
	}
	assigned, err := s.store.CountAssignments(ctx, id)
	if err != nil {
		return err
	}
	if assigned > 0 {
		return shared.ErrRoleInUse
	}
	if err := s.store.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, principalID, "role.delete", id.String())
	return nil
}

// SetPermissions replaces the role's permission set and invalidates every
// holder's cached effective set.
func (s *Service) SetPermissions(ctx context.Context, principalID string, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermRolesUpdate) {
		return shared.ErrForbidden
	}
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.store.ReplaceRolePermissions(ctx, roleID, permissionIDs); err != nil {
		return err
	}
	s.invalidateHolders(ctx, roleID)
	s.recordAudit(ctx, principalID, "role.permissions.replace", roleID.String())
	return nil
}

// Assign grants a role to a principal.
func (s *Service) Assign(ctx context.Context, principalID, subjectID string, roleID uuid.UUID) error {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermRolesUpdate) {
		return shared.ErrForbidden
	}
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.store.AssignRole(ctx, subjectID, roleID); err != nil {
		return err
	}
	s.resolver.InvalidateUser(ctx, subjectID)
	s.recordAudit(ctx, principalID, "role.assign", subjectID)
	return nil
}

// Remove revokes a role from a principal.
func (s *Service) Remove(ctx context.Context, principalID, subjectID string, roleID uuid.UUID) error {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermRolesUpdate) {
		return shared.ErrForbidden
	}
	if err := s.store.RemoveRole(ctx, subjectID, roleID); err != nil {
		return err
	}
	s.resolver.InvalidateUser(ctx, subjectID)
	s.recordAudit(ctx, principalID, "role.remove", subjectID)
	return nil
}

// Permissions returns the full permission catalog.
func (s *Service) Permissions(ctx context.Context, principalID string) ([]Permission, error) {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermPermissionsView) {
		return nil, shared.ErrForbidden
	}
	return s.store.ListPermissions(ctx)
}

// EnsurePermission creates or refreshes a catalog entry. The name must be
// canonical and the scope one of the known levels. Scope changes can alter
// how existing grants resolve, so the whole cache is flushed.
func (s *Service) EnsurePermission(ctx context.Context, principalID, name, scope, description string) (Permission, error) {
	if !s.resolver.HasPermission(ctx, principalID, shared.PermPermissionsUpdate) {
		return Permission{}, shared.ErrForbidden
	}
	if !authz.ValidatePermissionName(name) {
		return Permission{}, ErrInvalidPermissionName
	}
	if _, ok := authz.ParseScope(scope); !ok {
		return Permission{}, ErrInvalidPermissionScope
	}
	perm, err := s.store.UpsertPermission(ctx, name, scope, description)
	if err != nil {
		return Permission{}, err
	}
	s.resolver.InvalidateAll(ctx)
	s.recordAudit(ctx, principalID, "permission.upsert", perm.ID.String())
	return perm, nil
}

func (s *Service) invalidateHolders(ctx context.Context, roleID uuid.UUID) {
	holders, err := s.store.ListHolders(ctx, roleID)
	if err != nil {
		s.logger.Warn("role holder lookup failed, flushing all cached sets",
			slog.String("role_id", roleID.String()), slog.Any("error", err))
		s.resolver.InvalidateAll(ctx)
		return
	}
	for _, id := range holders {
		s.resolver.InvalidateUser(ctx, id)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "role",
		EntityID: entityID,
	}); err != nil {
		s.logger.Warn("role audit record failed", slog.Any("error", err))
	}
}
