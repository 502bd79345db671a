// Package authz implements the authorization engine: pattern-based
// permission grants, cached role/permission lookups, and scope-qualified
// resource checks across the platform/tenant/account/user hierarchy.
package authz

import "github.com/google/uuid"

// Scope describes the resource breadth at which a permission applies.
type Scope string

const (
	ScopePlatform Scope = "platform"
	ScopeTenant   Scope = "tenant"
	ScopeAccount  Scope = "account"
	ScopeOwn      Scope = "own"
	ScopePublic   Scope = "public"
)

// ParseScope maps a stored scope tag to a Scope. Unknown values are reported
// so that callers can treat them as a deny rather than a crash.
func ParseScope(raw string) (Scope, bool) {
	switch Scope(raw) {
	case ScopePlatform, ScopeTenant, ScopeAccount, ScopeOwn, ScopePublic:
		return Scope(raw), true
	default:
		return Scope(raw), false
	}
}

// Well-known role codes. Scope checks compare against these thresholds.
const (
	RoleSuperAdmin     = "super_admin"
	RolePlatformAdmin  = "platform_admin"
	RoleTenantAdmin    = "tenant_admin"
	RoleTenantManager  = "tenant_manager"
	RoleAccountAdmin   = "account_admin"
	RoleAccountManager = "account_manager"
)

// Permission is immutable catalog data. Name always has the canonical
// module.resource.action shape; Scope determines how a grant is checked
// against a concrete resource.
type Permission struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Scope       Scope     `json:"scope"`
	Description string    `json:"description,omitempty"`
}

// Role groups permissions under a unique code. Level is used for
// max-privilege comparisons. TenantID is nil for platform-level roles.
type Role struct {
	ID          uuid.UUID    `json:"id"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Level       int          `json:"level"`
	TenantID    *uuid.UUID   `json:"tenant_id,omitempty"`
	IsSystem    bool         `json:"is_system"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// RolesInclude reports whether any of the held roles carries one of the
// given codes.
func RolesInclude(roles []Role, codes ...string) bool {
	for _, r := range roles {
		for _, code := range codes {
			if r.Code == code {
				return true
			}
		}
	}
	return false
}
