// Package auth implements credential verification and bearer tokens for
// the admin API. Tokens live in redis; identity flows into request
// context for the authorization engine to consume.
package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an authenticatable account. TenantID and AccountID are
// nil for platform staff.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	IsActive     bool
	TenantID     *uuid.UUID
	AccountID    *uuid.UUID
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
