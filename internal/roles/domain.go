// Package roles provides the admin surface for role and permission
// management. Mutations here feed the authorization engine, so every
// change that touches a principal's effective set invalidates its cache.
package roles

import (
	"time"

	"github.com/google/uuid"
)

// Role is the administrative view of a role. TenantID is nil for
// platform-level roles; system roles are seeded and protected from
// casual deletion.
type Role struct {
	ID        uuid.UUID  `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Level     int        `json:"level"`
	TenantID  *uuid.UUID `json:"tenant_id,omitempty"`
	IsSystem  bool       `json:"is_system"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Permission is a catalog entry as managed by the admin surface.
type Permission struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Scope       string    `json:"scope"`
	Description string    `json:"description,omitempty"`
}
