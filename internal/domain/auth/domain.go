package auth

import (
	"strings"
	"time"
)

// SubjectAuthentication tags tokens minted by the login flow.
const SubjectAuthentication = "Authentication"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Claims are the identity facts signed into every bearer token.
type Claims struct {
	TokenID   string
	UserID    int64
	Username  string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// LedgerEntry is the server-side record of an issued token. TokenHash is the
// digest of the token value; the raw value is never persisted.
type LedgerEntry struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
