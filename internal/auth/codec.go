package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is the only failure Verify reports to callers. The wrapped
// message says what went wrong and is meant for logs only.
var ErrInvalidToken = errors.New("invalid token")

type CodecConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

type tokenClaims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 bearer tokens.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("codec: signing secret is empty")
	}
	if cfg.TTL < time.Second {
		return nil, fmt.Errorf("codec: ttl %s is shorter than one second", cfg.TTL)
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(domainauth.SubjectAuthentication),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Codec{
		secret:   cfg.Secret,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		now:      cfg.Now,
		parser:   jwt.NewParser(opts...),
	}, nil
}

func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue signs a token for the identity in claims. Token id and timestamps are
// assigned here; the returned Claims carry the values actually signed.
func (c *Codec) Issue(claims domainauth.Claims) (string, domainauth.Claims, error) {
	if claims.UserID <= 0 {
		return "", domainauth.Claims{}, errors.New("issue token: user id is required")
	}
	if !claims.Role.Valid() {
		return "", domainauth.Claims{}, fmt.Errorf("issue token: unknown role %q", claims.Role)
	}

	now := c.now()
	tc := tokenClaims{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     string(claims.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   domainauth.SubjectAuthentication,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	if c.audience != "" {
		tc.Audience = jwt.ClaimStrings{c.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(c.secret)
	if err != nil {
		return "", domainauth.Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, toClaims(&tc), nil
}

// Verify checks signature, issuer, audience, subject and expiry. A token whose
// expiry equals the current time is already expired.
func (c *Codec) Verify(token string) (domainauth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domainauth.Claims{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	var tc tokenClaims
	parsed, err := c.parser.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return domainauth.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return domainauth.Claims{}, fmt.Errorf("%w: not valid", ErrInvalidToken)
	}
	if !c.now().Before(tc.ExpiresAt.Time) {
		return domainauth.Claims{}, fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	if tc.UserID <= 0 {
		return domainauth.Claims{}, fmt.Errorf("%w: user id missing", ErrInvalidToken)
	}
	if !domainauth.Role(tc.Role).Valid() {
		return domainauth.Claims{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, tc.Role)
	}
	return toClaims(&tc), nil
}

func toClaims(tc *tokenClaims) domainauth.Claims {
	return domainauth.Claims{
		TokenID:   tc.ID,
		UserID:    tc.UserID,
		Username:  tc.Username,
		Role:      domainauth.Role(tc.Role),
		IssuedAt:  tc.IssuedAt.Time.UTC(),
		ExpiresAt: tc.ExpiresAt.Time.UTC(),
	}
}
