package auth

import (
	"context"
	"errors"
	"time"
)

var ErrEntryNotFound = errors.New("ledger entry not found")

// TokenLedger tracks issued tokens so they can be revoked before they expire.
type TokenLedger interface {
	Record(ctx context.Context, userID int64, token string, expiresAt time.Time) (*LedgerEntry, error)
	FindByValue(ctx context.Context, token string) (*LedgerEntry, error)
	Revoke(ctx context.Context, id int64) (bool, error)
	RevokeAllForUser(ctx context.Context, userID int64) (bool, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	IsLive(ctx context.Context, token string, now time.Time) (bool, error)
}
