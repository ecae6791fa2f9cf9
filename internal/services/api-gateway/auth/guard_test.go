package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestGuardOwnerAndStranger(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	aliceID, aliceTok := e.signup(t, "alice")
	bobID, _ := e.signup(t, "bob")

	u, err := e.guard.GetUser(ctx, aliceTok, aliceID)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = e.guard.GetUser(ctx, aliceTok, bobID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.guard.UpdateUser(ctx, aliceTok, bobID, user.Patch{Username: strPtr("mallory")})
	assert.ErrorIs(t, err, ErrForbidden)

	err = e.guard.DeleteUser(ctx, aliceTok, bobID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, e.tx.calls)
}

func TestGuardForbiddenBeforeNotFound(t *testing.T) {
	e := newEnv(t)
	_, tok := e.signup(t, "alice")

	_, err := e.guard.GetUser(context.Background(), tok, 9999)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGuardAdminReachesEveryone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, adminTok := e.signupAdmin(t, "admin")
	bobID, bobTok := e.signup(t, "bob")

	u, err := e.guard.GetUser(ctx, adminTok, bobID)
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)

	_, err = e.guard.GetUser(ctx, adminTok, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := e.guard.ListUsers(ctx, adminTok)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = e.guard.ListUsers(ctx, bobTok)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, e.guard.DeleteUser(ctx, adminTok, bobID))
	assert.Equal(t, 0, e.ledger.countFor(bobID))
	_, err = e.users.GetByID(ctx, bobID)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestGuardRejectsMissingToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id, _ := e.signup(t, "alice")

	_, err := e.guard.GetUser(ctx, "", id)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = e.guard.ListUsers(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestGuardUpdateUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	aliceID, tok := e.signup(t, "alice")
	e.signup(t, "bob")

	u, err := e.guard.UpdateUser(ctx, tok, aliceID, user.Patch{Email: strPtr(" Alice.New@Example.com ")})
	require.NoError(t, err)
	assert.Equal(t, "alice.new@example.com", u.Email)
	assert.Equal(t, "alice", u.Username)

	// keeping one's own username is not a conflict
	_, err = e.guard.UpdateUser(ctx, tok, aliceID, user.Patch{Username: strPtr("alice")})
	require.NoError(t, err)

	_, err = e.guard.UpdateUser(ctx, tok, aliceID, user.Patch{Username: strPtr("bob")})
	assert.ErrorIs(t, err, ErrDuplicateIdentity)

	_, err = e.guard.UpdateUser(ctx, tok, aliceID, user.Patch{Email: strPtr("bob@example.com")})
	assert.ErrorIs(t, err, ErrDuplicateIdentity)

	_, err = e.guard.UpdateUser(ctx, tok, aliceID, user.Patch{Email: strPtr("no-at-sign")})
	assert.ErrorIs(t, err, ErrWeakCredential)

	_, err = e.guard.UpdateUser(ctx, tok, aliceID, user.Patch{Username: strPtr("  ")})
	assert.ErrorIs(t, err, ErrWeakCredential)

	u, err = e.guard.UpdateUser(ctx, tok, aliceID, user.Patch{})
	require.NoError(t, err)
	assert.Equal(t, "alice.new@example.com", u.Email)
}

func TestGuardDeleteSelfThenTokenIsDead(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id, tok := e.signup(t, "alice")

	require.NoError(t, e.guard.DeleteUser(ctx, tok, id))

	err := e.guard.DeleteUser(ctx, tok, id)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestGuardUpdateUserLengthBounds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id, tok := e.signup(t, "alice")

	_, err := e.guard.UpdateUser(ctx, tok, id, user.Patch{Username: strPtr(strings.Repeat("a", MaxUsernameLength+1))})
	assert.ErrorIs(t, err, ErrWeakCredential)

	_, err = e.guard.UpdateUser(ctx, tok, id, user.Patch{Email: strPtr(strings.Repeat("a", MaxEmailLength) + "@x.io")})
	assert.ErrorIs(t, err, ErrWeakCredential)

	u, err := e.guard.UpdateUser(ctx, tok, id, user.Patch{Username: strPtr(strings.Repeat("a", MaxUsernameLength))})
	require.NoError(t, err)
	assert.Len(t, u.Username, MaxUsernameLength)
}
