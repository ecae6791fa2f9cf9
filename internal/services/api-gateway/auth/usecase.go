package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"github.com/NordCoder/Gatekeeper/internal/obs"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultMinPasswordLength = 8
	// bcrypt rejects input longer than this many bytes.
	MaxPasswordLength = 72

	// Column widths of users.username and users.email.
	MaxUsernameLength = 50
	MaxEmailLength    = 100
)

var tracer = otel.Tracer("auth.uc")

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

type TokenCodec interface {
	Issue(claims domainauth.Claims) (string, domainauth.Claims, error)
	Verify(token string) (domainauth.Claims, error)
}

type Config struct {
	MinPasswordLength int
	Events            user.EventPublisher
	Logger            *zap.Logger
	Now               func() time.Time
}

// Session is what a successful login hands back to the caller.
type Session struct {
	Token     string
	UserID    int64
	Username  string
	Role      domainauth.Role
	ExpiresAt time.Time
}

type Identity struct {
	UserID   int64
	Username string
	Email    string
	Role     domainauth.Role
}

type Usecase struct {
	users     user.Directory
	ledger    domainauth.TokenLedger
	hasher    PasswordHasher
	codec     TokenCodec
	cfg       Config
	log       *zap.Logger
	dummyHash string
}

func NewUseCase(users user.Directory, ledger domainauth.TokenLedger, hasher PasswordHasher, codec TokenCodec, cfg Config) (*Usecase, error) {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = DefaultMinPasswordLength
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	// Compared against when the email is unknown so both login failures cost one bcrypt run.
	dummy, err := hasher.Hash(ulid.Make().String())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Usecase{
		users:     users,
		ledger:    ledger,
		hasher:    hasher,
		codec:     codec,
		cfg:       cfg,
		log:       log,
		dummyHash: dummy,
	}, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func checkUsername(username string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username is empty", ErrWeakCredential)
	case utf8.RuneCountInString(username) > MaxUsernameLength:
		return fmt.Errorf("%w: username must be at most %d characters", ErrWeakCredential, MaxUsernameLength)
	}
	return nil
}

func checkEmail(email string) error {
	switch {
	case !strings.Contains(email, "@"):
		return fmt.Errorf("%w: email is malformed", ErrWeakCredential)
	case utf8.RuneCountInString(email) > MaxEmailLength:
		return fmt.Errorf("%w: email must be at most %d characters", ErrWeakCredential, MaxEmailLength)
	}
	return nil
}

func (u *Usecase) checkCredential(username, email, password string) error {
	if err := checkUsername(username); err != nil {
		return err
	}
	if err := checkEmail(email); err != nil {
		return err
	}
	if len(password) < u.cfg.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrWeakCredential, u.cfg.MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrWeakCredential, MaxPasswordLength)
	}
	return nil
}

// Register creates a plain user account. Admin accounts only come from
// BootstrapAdmin.
func (u *Usecase) Register(ctx context.Context, username, email, password string) (id int64, err error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer span.End()
	defer func() { observe("register", err) }()

	nu, err := u.createAccount(ctx, username, email, password, domainauth.RoleUser)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("user.id", nu.ID), attribute.String("user.role", string(nu.Role)))
	return nu.ID, nil
}

func (u *Usecase) createAccount(ctx context.Context, username, email, password string, role domainauth.Role) (*user.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if err := u.checkCredential(username, email, password); err != nil {
		return nil, err
	}
	if err := ensureAvailable(ctx, u.users, 0, &username, &email); err != nil {
		return nil, err
	}
	hash, err := u.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	nu := &user.User{Username: username, Email: email, PasswordHash: hash, Role: role}
	if err := u.users.Create(ctx, nu); err != nil {
		if errors.Is(err, user.ErrConflict) {
			return nil, ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	obs.WithTrace(ctx, u.log).Info("auth.registered",
		zap.Int64("user_id", nu.ID), zap.String("username", nu.Username), zap.String("role", string(nu.Role)))
	u.publish(ctx, user.EventRegistered, nu)
	return nu, nil
}

// ensureAvailable fails with ErrDuplicateIdentity when username or email belongs
// to a user other than self. Nil fields are not checked.
func ensureAvailable(ctx context.Context, users user.Directory, self int64, username, email *string) error {
	if username != nil {
		if err := checkFree(self, func() (*user.User, error) { return users.GetByUsername(ctx, *username) }); err != nil {
			return err
		}
	}
	if email != nil {
		if err := checkFree(self, func() (*user.User, error) { return users.GetByEmail(ctx, *email) }); err != nil {
			return err
		}
	}
	return nil
}

func checkFree(self int64, lookup func() (*user.User, error)) error {
	found, err := lookup()
	switch {
	case errors.Is(err, user.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("lookup user: %w", err)
	case found.ID != self:
		return ErrDuplicateIdentity
	default:
		return nil
	}
}

func (u *Usecase) Login(ctx context.Context, email, password string) (s *Session, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer span.End()
	defer func() { observe("login", err) }()

	log := obs.WithTrace(ctx, u.log)
	email = normalizeEmail(email)

	rec, err := u.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		u.hasher.Verify(password, u.dummyHash)
		log.Info("auth.login rejected", zap.String("email", email), zap.String("reason", "unknown email"))
		return nil, ErrInvalidCredentials
	}
	if !u.hasher.Verify(password, rec.PasswordHash) {
		log.Info("auth.login rejected", zap.String("email", email), zap.String("reason", "password mismatch"))
		return nil, ErrInvalidCredentials
	}

	token, claims, err := u.codec.Issue(domainauth.Claims{UserID: rec.ID, Username: rec.Username, Role: rec.Role})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	if _, err := u.ledger.Record(ctx, rec.ID, token, claims.ExpiresAt); err != nil {
		return nil, fmt.Errorf("record token: %w", err)
	}

	span.SetAttributes(attribute.Int64("user.id", rec.ID))
	log.Info("auth.login", zap.Int64("user_id", rec.ID), zap.String("token_id", claims.TokenID))
	return &Session{
		Token:     token,
		UserID:    rec.ID,
		Username:  rec.Username,
		Role:      rec.Role,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Authenticate accepts a token only if its signature and claims verify and the
// ledger still holds a live entry for it.
func (u *Usecase) Authenticate(ctx context.Context, token string) (*domainauth.Claims, error) {
	claims, err := u.codec.Verify(token)
	if err != nil {
		obs.WithTrace(ctx, u.log).Debug("auth.token rejected", zap.Error(err))
		return nil, ErrUnauthenticated
	}
	live, err := u.ledger.IsLive(ctx, token, u.cfg.Now())
	if err != nil {
		return nil, fmt.Errorf("ledger lookup: %w", err)
	}
	if !live {
		obs.WithTrace(ctx, u.log).Debug("auth.token rejected",
			zap.String("token_id", claims.TokenID), zap.String("reason", "not in ledger"))
		return nil, ErrUnauthenticated
	}
	return &claims, nil
}

func (u *Usecase) CurrentIdentity(ctx context.Context, token string) (id *Identity, err error) {
	ctx, span := tracer.Start(ctx, "auth.me")
	defer span.End()
	defer func() { observe("me", err) }()

	claims, err := u.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	rec, err := u.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &Identity{UserID: rec.ID, Username: rec.Username, Email: rec.Email, Role: rec.Role}, nil
}

// Logout drops the ledger entry for token. The signature is not checked, so an
// expired token that is still recorded can be logged out.
func (u *Usecase) Logout(ctx context.Context, token string) (ok bool, err error) {
	ctx, span := tracer.Start(ctx, "auth.logout")
	defer span.End()
	defer func() { observe("logout", err) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	entry, err := u.ledger.FindByValue(ctx, token)
	if err != nil {
		if errors.Is(err, domainauth.ErrEntryNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find token: %w", err)
	}
	removed, err := u.ledger.Revoke(ctx, entry.ID)
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	obs.WithTrace(ctx, u.log).Info("auth.logout", zap.Int64("user_id", entry.UserID), zap.Bool("removed", removed))
	return removed, nil
}

func (u *Usecase) CleanupExpired(ctx context.Context) (n int64, err error) {
	ctx, span := tracer.Start(ctx, "auth.cleanup")
	defer span.End()
	defer func() { observe("cleanup", err) }()

	n, err = u.ledger.SweepExpired(ctx, u.cfg.Now())
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("sweep expired: %w", err)
	}
	span.SetAttributes(attribute.Int64("tokens.removed", n))
	return n, nil
}

func (u *Usecase) publish(ctx context.Context, kind user.EventKind, usr *user.User) {
	if u.cfg.Events == nil {
		return
	}
	ev := user.Event{
		ID:       ulid.Make().String(),
		Kind:     kind,
		UserID:   usr.ID,
		Username: usr.Username,
		At:       u.cfg.Now(),
	}
	if err := u.cfg.Events.Publish(ctx, ev); err != nil {
		obs.WithTrace(ctx, u.log).Warn("account event not published",
			zap.String("kind", string(kind)), zap.Int64("user_id", usr.ID), zap.Error(err))
	}
}
