package auth

import domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"

type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

// CanAccess decides whether an actor may act on a resource owned by ownerID.
// Admins may act on anything; users only on what they own.
func CanAccess(actorID int64, actorRole domainauth.Role, ownerID int64) Decision {
	switch actorRole {
	case domainauth.RoleAdmin:
		return Allow
	case domainauth.RoleUser:
		return Decision(actorID == ownerID)
	default:
		return Deny
	}
}
