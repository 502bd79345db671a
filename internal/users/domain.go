// Package users provides the user admin surface: listing principals and
// toggling their active flag. Deactivation revokes the cached permission
// set immediately.
package users

import (
	"time"

	"github.com/google/uuid"
)

// User is the administrative view of a principal.
type User struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"is_active"`
	TenantID    *uuid.UUID `json:"tenant_id,omitempty"`
	AccountID   *uuid.UUID `json:"account_id,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
