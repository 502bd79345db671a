// Package tags implements scoped tagging: tags are registered at one tier
// of the tenancy hierarchy and access is validated against the caller's
// scope context.
package tags

import (
	"time"

	"github.com/google/uuid"
)

// ScopeLevel is the tenancy tier an entity is bound to.
type ScopeLevel string

const (
	ScopePlatform      ScopeLevel = "platform"
	ScopeConfiguration ScopeLevel = "configuration"
	ScopeTenant        ScopeLevel = "tenant"
	ScopeAccount       ScopeLevel = "account"
	ScopeUser          ScopeLevel = "user"
)

// ParseScopeLevel maps a raw level tag to a ScopeLevel.
func ParseScopeLevel(raw string) (ScopeLevel, bool) {
	switch ScopeLevel(raw) {
	case ScopePlatform, ScopeConfiguration, ScopeTenant, ScopeAccount, ScopeUser:
		return ScopeLevel(raw), true
	default:
		return ScopeLevel(raw), false
	}
}

// ScopeContext carries the scope-qualifying identifiers of a request or an
// entity. Empty strings mean "not bound at that tier".
type ScopeContext struct {
	TenantID  string
	AccountID string
	UserID    string
}

// Tag is an entity registered at a declared scope level. Its identifiers
// are a strict subset consistent with that level: a tenant-scope tag
// carries only a tenant id, an account-scope tag a tenant and account id,
// a user-scope tag all three.
type Tag struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Slug      string     `json:"slug"`
	Scope     ScopeLevel `json:"scope"`
	TenantID  *uuid.UUID `json:"tenant_id,omitempty"`
	AccountID *uuid.UUID `json:"account_id,omitempty"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Identifiers returns the tag's scope-qualifying identifiers.
func (t Tag) Identifiers() ScopeContext {
	var sc ScopeContext
	if t.TenantID != nil {
		sc.TenantID = t.TenantID.String()
	}
	if t.AccountID != nil {
		sc.AccountID = t.AccountID.String()
	}
	if t.UserID != nil {
		sc.UserID = t.UserID.String()
	}
	return sc
}
