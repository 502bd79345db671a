package authz

import (
	"context"
	"log/slog"
)

// decision is the internal tri-state outcome of a check. The public surface
// stays boolean and fail-closed; the tri-state exists so that "denied
// because unauthorized" and "denied because the store was down" remain
// distinguishable in logs and metrics.
type decision int

const (
	decisionDenied decision = iota
	decisionGranted
	decisionUnavailable
)

func (d decision) String() string {
	switch d {
	case decisionGranted:
		return "granted"
	case decisionUnavailable:
		return "unavailable"
	default:
		return "denied"
	}
}

// DecisionRecorder receives one observation per resolved check.
type DecisionRecorder interface {
	RecordAuthzDecision(operation, outcome string)
}

// Resolver answers permission questions by orchestrating catalog, cache and
// pattern matching. Every operation is fail-closed: storage or cache
// failures convert to false/0/empty, never to an error for the caller.
type Resolver struct {
	catalog *Catalog
	cache   *Cache
	logger  *slog.Logger
	metrics DecisionRecorder
}

// NewResolver constructs a Resolver. cache and metrics may be nil.
func NewResolver(catalog *Catalog, cache *Cache, logger *slog.Logger, metrics DecisionRecorder) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{catalog: catalog, cache: cache, logger: logger, metrics: metrics}
}

// HasPermission reports whether the principal holds a permission whose
// name, used as a pattern, grants the requested name. A held super_admin
// role short-circuits to true with no pattern evaluation.
func (r *Resolver) HasPermission(ctx context.Context, principalID, permissionName string) bool {
	d := r.check(ctx, principalID, permissionName)
	r.record("has_permission", d)
	return d == decisionGranted
}

// HasAnyPermission reports whether any of the names is granted. An empty
// list is never granted.
func (r *Resolver) HasAnyPermission(ctx context.Context, principalID string, permissionNames []string) bool {
	if len(permissionNames) == 0 {
		r.record("has_any_permission", decisionDenied)
		return false
	}
	roles, perms, ok := r.loadEffective(ctx, principalID)
	if !ok {
		r.record("has_any_permission", decisionUnavailable)
		return false
	}
	if RolesInclude(roles, RoleSuperAdmin) {
		r.record("has_any_permission", decisionGranted)
		return true
	}
	for _, name := range permissionNames {
		if anyPatternMatches(perms, name) {
			r.record("has_any_permission", decisionGranted)
			return true
		}
	}
	r.record("has_any_permission", decisionDenied)
	return false
}

// HasAllPermissions reports whether every name is granted. An empty list is
// vacuously granted.
func (r *Resolver) HasAllPermissions(ctx context.Context, principalID string, permissionNames []string) bool {
	if len(permissionNames) == 0 {
		r.record("has_all_permissions", decisionGranted)
		return true
	}
	roles, perms, ok := r.loadEffective(ctx, principalID)
	if !ok {
		r.record("has_all_permissions", decisionUnavailable)
		return false
	}
	if RolesInclude(roles, RoleSuperAdmin) {
		r.record("has_all_permissions", decisionGranted)
		return true
	}
	for _, name := range permissionNames {
		if !anyPatternMatches(perms, name) {
			r.record("has_all_permissions", decisionDenied)
			return false
		}
	}
	r.record("has_all_permissions", decisionGranted)
	return true
}

// MaxRoleLevel returns the maximum level across the principal's roles, or 0
// when the principal holds none (or the lookup failed).
func (r *Resolver) MaxRoleLevel(ctx context.Context, principalID string) int {
	roles, err := r.loadRoles(ctx, principalID)
	if err != nil {
		r.logger.Warn("authz role lookup unavailable", slog.String("principal", principalID), slog.Any("error", err))
		return 0
	}
	max := 0
	for _, role := range roles {
		if role.Level > max {
			max = role.Level
		}
	}
	return max
}

// UserPermissions returns the principal's effective permission set. Empty
// on lookup failure.
func (r *Resolver) UserPermissions(ctx context.Context, principalID string) []Permission {
	perms, err := r.loadPermissions(ctx, principalID)
	if err != nil {
		r.logger.Warn("authz permission lookup unavailable", slog.String("principal", principalID), slog.Any("error", err))
		return nil
	}
	return perms
}

// UserRoles returns the principal's assigned roles. Empty on lookup failure.
func (r *Resolver) UserRoles(ctx context.Context, principalID string) []Role {
	roles, err := r.loadRoles(ctx, principalID)
	if err != nil {
		r.logger.Warn("authz role lookup unavailable", slog.String("principal", principalID), slog.Any("error", err))
		return nil
	}
	return roles
}

// InvalidateUser evicts the principal's cached role and permission sets.
func (r *Resolver) InvalidateUser(ctx context.Context, principalID string) {
	if err := r.cache.Invalidate(ctx, principalID); err != nil {
		r.logger.Warn("authz cache invalidate failed", slog.String("principal", principalID), slog.Any("error", err))
	}
}

// InvalidateAll evicts every cached authz entry.
func (r *Resolver) InvalidateAll(ctx context.Context) {
	if err := r.cache.InvalidateAll(ctx); err != nil {
		r.logger.Warn("authz cache flush failed", slog.Any("error", err))
	}
}

func (r *Resolver) check(ctx context.Context, principalID, permissionName string) decision {
	roles, perms, ok := r.loadEffective(ctx, principalID)
	if !ok {
		return decisionUnavailable
	}
	if RolesInclude(roles, RoleSuperAdmin) {
		return decisionGranted
	}
	if anyPatternMatches(perms, permissionName) {
		return decisionGranted
	}
	return decisionDenied
}

// loadEffective fetches the principal's roles and permissions through the
// cache. Roles are loaded first; a held super_admin role skips the
// permission load entirely since no pattern evaluation will occur. The
// third return is false when either lookup was unavailable.
func (r *Resolver) loadEffective(ctx context.Context, principalID string) ([]Role, []Permission, bool) {
	roles, err := r.loadRoles(ctx, principalID)
	if err != nil {
		r.logger.Warn("authz role lookup unavailable", slog.String("principal", principalID), slog.Any("error", err))
		return nil, nil, false
	}
	if RolesInclude(roles, RoleSuperAdmin) {
		return roles, nil, true
	}
	perms, err := r.loadPermissions(ctx, principalID)
	if err != nil {
		r.logger.Warn("authz permission lookup unavailable", slog.String("principal", principalID), slog.Any("error", err))
		return roles, nil, false
	}
	return roles, perms, true
}

func (r *Resolver) loadRoles(ctx context.Context, principalID string) ([]Role, error) {
	return r.cache.Roles(ctx, principalID, func(ctx context.Context) ([]Role, error) {
		return r.catalog.LoadRoles(ctx, principalID)
	})
}

func (r *Resolver) loadPermissions(ctx context.Context, principalID string) ([]Permission, error) {
	return r.cache.Permissions(ctx, principalID, func(ctx context.Context) ([]Permission, error) {
		return r.catalog.LoadPermissions(ctx, principalID)
	})
}

func (r *Resolver) record(operation string, d decision) {
	if r.metrics != nil {
		r.metrics.RecordAuthzDecision(operation, d.String())
	}
}

func anyPatternMatches(held []Permission, name string) bool {
	for _, p := range held {
		if Matches(p.Name, name) {
			return true
		}
	}
	return false
}
