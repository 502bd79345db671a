package tags

import (
	"context"
	"log/slog"

	"github.com/stagedoor-hq/stagedoor/internal/authz"
)

// Guard validates that a principal may register or access an entity at a
// declared scope level. It is a stateless predicate evaluator over the
// request context; missing scope identifiers are an automatic deny that no
// role can substitute for.
type Guard struct {
	resolver *authz.Resolver
	logger   *slog.Logger
}

// NewGuard constructs a Guard.
func NewGuard(resolver *authz.Resolver, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{resolver: resolver, logger: logger}
}

// CanCreateAtScope reports whether the principal may register an entity at
// the given level with the given scope context.
func (g *Guard) CanCreateAtScope(ctx context.Context, principalID string, level ScopeLevel, scope ScopeContext) bool {
	switch level {
	case ScopePlatform, ScopeConfiguration:
		return g.hasPlatformAccess(ctx, principalID)
	case ScopeTenant:
		if scope.TenantID == "" {
			return false
		}
		if g.hasPlatformAccess(ctx, principalID) {
			return true
		}
		roles := g.resolver.UserRoles(ctx, principalID)
		return authz.RolesInclude(roles, authz.RoleTenantAdmin, authz.RoleTenantManager)
	case ScopeAccount:
		return scope.TenantID != "" && scope.AccountID != ""
	case ScopeUser:
		return scope.TenantID != "" && scope.AccountID != "" && scope.UserID != ""
	default:
		g.logger.Warn("unknown scope level", slog.String("level", string(level)))
		return false
	}
}

// CanAccessExisting reports whether the principal's scope context may read
// or modify an entity registered at entityScope with entityIDs. Platform
// scope is universally readable; every other level requires strict equality
// on all identifiers at or below the entity's scope, not just the deepest
// one.
func (g *Guard) CanAccessExisting(entityScope ScopeLevel, entityIDs, scope ScopeContext) bool {
	switch entityScope {
	case ScopePlatform, ScopeConfiguration:
		return true
	case ScopeTenant:
		return equalNonEmpty(entityIDs.TenantID, scope.TenantID)
	case ScopeAccount:
		return equalNonEmpty(entityIDs.TenantID, scope.TenantID) &&
			equalNonEmpty(entityIDs.AccountID, scope.AccountID)
	case ScopeUser:
		return equalNonEmpty(entityIDs.TenantID, scope.TenantID) &&
			equalNonEmpty(entityIDs.AccountID, scope.AccountID) &&
			equalNonEmpty(entityIDs.UserID, scope.UserID)
	default:
		g.logger.Warn("unknown scope level", slog.String("level", string(entityScope)))
		return false
	}
}

// ValidateIdentifiers reports whether the identifiers form the exact subset
// the level demands: required tiers present, deeper tiers absent.
func ValidateIdentifiers(level ScopeLevel, ids ScopeContext) bool {
	switch level {
	case ScopePlatform, ScopeConfiguration:
		return ids.TenantID == "" && ids.AccountID == "" && ids.UserID == ""
	case ScopeTenant:
		return ids.TenantID != "" && ids.AccountID == "" && ids.UserID == ""
	case ScopeAccount:
		return ids.TenantID != "" && ids.AccountID != "" && ids.UserID == ""
	case ScopeUser:
		return ids.TenantID != "" && ids.AccountID != "" && ids.UserID != ""
	default:
		return false
	}
}

func (g *Guard) hasPlatformAccess(ctx context.Context, principalID string) bool {
	roles := g.resolver.UserRoles(ctx, principalID)
	return authz.RolesInclude(roles, authz.RoleSuperAdmin, authz.RolePlatformAdmin)
}

func equalNonEmpty(entityID, contextID string) bool {
	return entityID != "" && entityID == contextID
}
