package auth

import (
	"context"
	"fmt"
	"strings"

	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"go.uber.org/zap"
)

const DefaultBootstrapUsername = "admin"

// BootstrapAccount is the admin seeded during initial setup.
type BootstrapAccount struct {
	Username string
	Email    string
	Password string
}

// BootstrapAdmin creates the first admin account. It runs once per setup:
// while any admin exists it does nothing and reports created=false.
// Ordinary registration never grants admin, whatever the username.
func (u *Usecase) BootstrapAdmin(ctx context.Context, acc BootstrapAccount) (id int64, created bool, err error) {
	ctx, span := tracer.Start(ctx, "auth.bootstrap_admin")
	defer span.End()

	exists, err := u.users.HasRole(ctx, domainauth.RoleAdmin)
	if err != nil {
		return 0, false, fmt.Errorf("lookup admin: %w", err)
	}
	if exists {
		u.log.Info("bootstrap skipped, admin already present")
		return 0, false, nil
	}

	if strings.TrimSpace(acc.Username) == "" {
		acc.Username = DefaultBootstrapUsername
	}
	nu, err := u.createAccount(ctx, acc.Username, acc.Email, acc.Password, domainauth.RoleAdmin)
	if err != nil {
		return 0, false, fmt.Errorf("create admin: %w", err)
	}
	u.log.Info("bootstrap admin created", zap.Int64("user_id", nu.ID), zap.String("username", nu.Username))
	return nu.ID, true, nil
}
