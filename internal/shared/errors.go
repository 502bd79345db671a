package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the caller lacks the required grant.
	ErrForbidden = errors.New("forbidden")
	// ErrRoleProtected indicates a system role that only a super admin may remove.
	ErrRoleProtected = errors.New("role is protected")
	// ErrRoleInUse indicates a role still held by at least one principal.
	ErrRoleInUse = errors.New("role is still assigned")
)
