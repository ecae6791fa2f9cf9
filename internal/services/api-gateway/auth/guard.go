package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	authcore "github.com/NordCoder/Gatekeeper/internal/auth"
	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"github.com/NordCoder/Gatekeeper/internal/obs"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domainauth.Claims, error)
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type GuardOpts struct {
	Events user.EventPublisher
	Logger *zap.Logger
	Now    func() time.Time
}

// Guard gates every user-resource operation behind authentication and the
// ownership policy.
type Guard struct {
	authn  Authenticator
	users  user.Directory
	ledger domainauth.TokenLedger
	tx     Transactor
	events user.EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

func NewGuard(authn Authenticator, users user.Directory, ledger domainauth.TokenLedger, tx Transactor, o GuardOpts) *Guard {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := o.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Guard{
		authn:  authn,
		users:  users,
		ledger: ledger,
		tx:     tx,
		events: o.Events,
		log:    log,
		now:    now,
	}
}

// Check authenticates token and applies the policy for target. The permission
// decision comes before any lookup of target; a forbidden caller never learns
// whether the id exists.
func (g *Guard) Check(ctx context.Context, token string, target int64) (*domainauth.Claims, error) {
	claims, err := g.authn.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if authcore.CanAccess(claims.UserID, claims.Role, target) == authcore.Deny {
		obs.WithTrace(ctx, g.log).Info("access denied",
			zap.Int64("actor_id", claims.UserID), zap.String("role", string(claims.Role)), zap.Int64("target_id", target))
		return nil, ErrForbidden
	}
	return claims, nil
}

func (g *Guard) GetUser(ctx context.Context, token string, target int64) (u *user.User, err error) {
	ctx, span := tracer.Start(ctx, "guard.get_user")
	defer span.End()
	defer func() { observe("get_user", err) }()
	span.SetAttributes(attribute.Int64("target.id", target))

	if _, err := g.Check(ctx, token, target); err != nil {
		return nil, err
	}
	u, err = g.users.GetByID(ctx, target)
	if err != nil {
		return nil, directoryErr(err)
	}
	return u, nil
}

func (g *Guard) UpdateUser(ctx context.Context, token string, target int64, p user.Patch) (u *user.User, err error) {
	ctx, span := tracer.Start(ctx, "guard.update_user")
	defer span.End()
	defer func() { observe("update_user", err) }()
	span.SetAttributes(attribute.Int64("target.id", target))

	if _, err := g.Check(ctx, token, target); err != nil {
		return nil, err
	}
	p, err = normalizePatch(p)
	if err != nil {
		return nil, err
	}

	cur, err := g.users.GetByID(ctx, target)
	if err != nil {
		return nil, directoryErr(err)
	}
	if p.Empty() {
		return cur, nil
	}
	if err := ensureAvailable(ctx, g.users, target, p.Username, p.Email); err != nil {
		return nil, err
	}

	u, err = g.users.Update(ctx, target, p)
	if err != nil {
		if errors.Is(err, user.ErrConflict) {
			return nil, ErrDuplicateIdentity
		}
		return nil, directoryErr(err)
	}
	obs.WithTrace(ctx, g.log).Info("user updated", zap.Int64("user_id", u.ID))
	return u, nil
}

func normalizePatch(p user.Patch) (user.Patch, error) {
	if p.Username != nil {
		v := strings.TrimSpace(*p.Username)
		if err := checkUsername(v); err != nil {
			return p, err
		}
		p.Username = &v
	}
	if p.Email != nil {
		v := normalizeEmail(*p.Email)
		if err := checkEmail(v); err != nil {
			return p, err
		}
		p.Email = &v
	}
	return p, nil
}

// DeleteUser removes the account and every ledger entry it owns in one
// transaction, so no token of a deleted user stays live.
func (g *Guard) DeleteUser(ctx context.Context, token string, target int64) (err error) {
	ctx, span := tracer.Start(ctx, "guard.delete_user")
	defer span.End()
	defer func() { observe("delete_user", err) }()
	span.SetAttributes(attribute.Int64("target.id", target))

	if _, err := g.Check(ctx, token, target); err != nil {
		return err
	}
	victim, err := g.users.GetByID(ctx, target)
	if err != nil {
		return directoryErr(err)
	}

	err = g.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := g.ledger.RevokeAllForUser(ctx, target); err != nil {
			return fmt.Errorf("revoke tokens: %w", err)
		}
		removed, err := g.users.Delete(ctx, target)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if !removed {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	obs.WithTrace(ctx, g.log).Info("user deleted", zap.Int64("user_id", target))
	if g.events != nil {
		ev := user.Event{ID: ulid.Make().String(), Kind: user.EventDeleted, UserID: victim.ID, Username: victim.Username, At: g.now()}
		if err := g.events.Publish(ctx, ev); err != nil {
			obs.WithTrace(ctx, g.log).Warn("account event not published",
				zap.String("kind", string(ev.Kind)), zap.Int64("user_id", victim.ID), zap.Error(err))
		}
	}
	return nil
}

// ListUsers is reserved for admins.
func (g *Guard) ListUsers(ctx context.Context, token string) (out []*user.User, err error) {
	ctx, span := tracer.Start(ctx, "guard.list_users")
	defer span.End()
	defer func() { observe("list_users", err) }()

	claims, err := g.authn.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims.Role != domainauth.RoleAdmin {
		return nil, ErrForbidden
	}
	out, err = g.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func directoryErr(err error) error {
	if errors.Is(err, user.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("directory: %w", err)
}
