package auth

import "errors"

// Failures reported to the transport. ErrInvalidCredentials and ErrUnauthenticated
// never say which check failed; the detail goes to the logs only.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateIdentity  = errors.New("user with this email or username already exists")
	ErrWeakCredential     = errors.New("credentials do not meet policy")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("user not found")
)
