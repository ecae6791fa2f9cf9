package user

import (
	"context"
	"errors"

	"github.com/NordCoder/Gatekeeper/internal/domain/auth"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrConflict = errors.New("user already exists")
)

// Directory owns user-record CRUD. Create and Update return ErrConflict when a
// unique username or email is violated.
type Directory interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, id int64, p Patch) (*User, error)
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]*User, error)
	HasRole(ctx context.Context, role auth.Role) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}
