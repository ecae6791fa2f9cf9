package user

import (
	"time"

	"github.com/NordCoder/Gatekeeper/internal/domain/auth"
)

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         auth.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Patch carries the optional profile fields of an update; nil means unchanged.
type Patch struct {
	Username *string
	Email    *string
}

func (p Patch) Empty() bool { return p.Username == nil && p.Email == nil }

type EventKind string

const (
	EventRegistered EventKind = "user.registered"
	EventDeleted    EventKind = "user.deleted"
)

// Event announces an account lifecycle change to downstream consumers.
type Event struct {
	ID       string    `json:"id"`
	Kind     EventKind `json:"kind"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}
