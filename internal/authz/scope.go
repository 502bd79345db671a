package authz

import (
	"context"
	"log/slog"
	"sync"
)

// Role thresholds per declared scope. Each tier includes everything above
// it; tenant and account scope checks are deliberately coarse and do not
// compare the resource id against the principal's own tenant/account —
// resource-id filtering happens at the query layer.
var scopeRoleThresholds = map[Scope][]string{
	ScopePlatform: {RoleSuperAdmin, RolePlatformAdmin},
	ScopeTenant:   {RoleSuperAdmin, RolePlatformAdmin, RoleTenantAdmin, RoleTenantManager},
	ScopeAccount:  {RoleSuperAdmin, RolePlatformAdmin, RoleTenantAdmin, RoleTenantManager, RoleAccountAdmin, RoleAccountManager},
}

// OwnershipChecker decides whether a principal owns a concrete resource of
// one resource type.
type OwnershipChecker interface {
	Owns(ctx context.Context, principalID, resourceID string) (bool, error)
}

// OwnershipRegistry maps resource types to their ownership checkers. Adding
// an ownable resource type is a registration, not an edit to the own-scope
// branch. Resource types without a checker are unowned.
type OwnershipRegistry struct {
	mu       sync.RWMutex
	checkers map[string]OwnershipChecker
}

// NewOwnershipRegistry returns an empty registry.
func NewOwnershipRegistry() *OwnershipRegistry {
	return &OwnershipRegistry{checkers: make(map[string]OwnershipChecker)}
}

// Register installs a checker for the resource type, replacing any previous
// registration.
func (r *OwnershipRegistry) Register(resourceType string, checker OwnershipChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[resourceType] = checker
}

func (r *OwnershipRegistry) owns(ctx context.Context, resourceType, principalID, resourceID string) (bool, error) {
	r.mu.RLock()
	checker, ok := r.checkers[resourceType]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return checker.Owns(ctx, principalID, resourceID)
}

// SelfOwnership owns a "user" resource iff the resource id is the principal
// itself.
type SelfOwnership struct{}

// Owns implements OwnershipChecker.
func (SelfOwnership) Owns(_ context.Context, principalID, resourceID string) (bool, error) {
	return resourceID == principalID, nil
}

// AccountLookup resolves the account a principal belongs to.
type AccountLookup interface {
	FindAccountIDForPrincipal(ctx context.Context, principalID string) (string, error)
}

// AccountOwnership owns an "account" resource iff it is the principal's own
// account.
type AccountOwnership struct {
	Lookup AccountLookup
}

// Owns implements OwnershipChecker.
func (o AccountOwnership) Owns(ctx context.Context, principalID, resourceID string) (bool, error) {
	accountID, err := o.Lookup.FindAccountIDForPrincipal(ctx, principalID)
	if err != nil {
		return false, err
	}
	return accountID != "" && accountID == resourceID, nil
}

// DefaultOwnershipRegistry returns a registry with the built-in user and
// account checkers installed.
func DefaultOwnershipRegistry(lookup AccountLookup) *OwnershipRegistry {
	reg := NewOwnershipRegistry()
	reg.Register("user", SelfOwnership{})
	if lookup != nil {
		reg.Register("account", AccountOwnership{Lookup: lookup})
	}
	return reg
}

// ScopeAuthorizer resolves resource-scoped permission questions by layering
// the permission's declared scope on top of the resolver's base grant.
type ScopeAuthorizer struct {
	resolver *Resolver
	owners   *OwnershipRegistry
	logger   *slog.Logger
}

// NewScopeAuthorizer constructs a ScopeAuthorizer.
func NewScopeAuthorizer(resolver *Resolver, owners *OwnershipRegistry, logger *slog.Logger) *ScopeAuthorizer {
	if owners == nil {
		owners = NewOwnershipRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScopeAuthorizer{resolver: resolver, owners: owners, logger: logger}
}

// HasResourcePermission reports whether the principal may exercise the
// permission against the concrete resource. The base grant is a
// precondition; the declared scope of the held permission then decides the
// additional check. The declared scope comes from the held permission whose
// name equals the target — a pattern-only grant has no concrete scoped
// permission to check and is denied.
func (a *ScopeAuthorizer) HasResourcePermission(ctx context.Context, principalID, permissionName, resourceType, resourceID string) bool {
	if !a.resolver.HasPermission(ctx, principalID, permissionName) {
		return false
	}

	roles := a.resolver.UserRoles(ctx, principalID)
	if RolesInclude(roles, RoleSuperAdmin) {
		return true
	}

	var declared *Permission
	perms := a.resolver.UserPermissions(ctx, principalID)
	for i := range perms {
		if perms[i].Name == permissionName {
			declared = &perms[i]
			break
		}
	}
	if declared == nil {
		return false
	}

	switch declared.Scope {
	case ScopePlatform, ScopeTenant, ScopeAccount:
		return RolesInclude(roles, scopeRoleThresholds[declared.Scope]...)
	case ScopeOwn:
		owned, err := a.owners.owns(ctx, resourceType, principalID, resourceID)
		if err != nil {
			a.logger.Warn("ownership check unavailable",
				slog.String("principal", principalID),
				slog.String("resource_type", resourceType),
				slog.Any("error", err))
			return false
		}
		return owned
	case ScopePublic:
		return true
	default:
		// Data-integrity problem: a permission row carries a scope tag the
		// engine does not know. Deny.
		a.logger.Warn("unknown permission scope",
			slog.String("permission", permissionName),
			slog.String("scope", string(declared.Scope)))
		return false
	}
}
