package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Gatekeeper/internal/auth"
	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/jackc/pgx/v5"
)

var _ domainauth.TokenLedger = (*TokenLedgerRepo)(nil)

// TokenLedgerRepo stores issued tokens by digest. Rows are inserted and deleted,
// never updated.
type TokenLedgerRepo struct{ db *DB }

func NewTokenLedgerRepo(db *DB) *TokenLedgerRepo { return &TokenLedgerRepo{db: db} }

const (
	qLedgerInsert = `
INSERT INTO auth_tokens (user_id, token_hash, expires_at)
VALUES ($1, $2, $3)
RETURNING id, user_id, token_hash, expires_at, created_at;`

	qLedgerByHash = `
SELECT id, user_id, token_hash, expires_at, created_at
FROM auth_tokens
WHERE token_hash = $1;`

	qLedgerDelete = `DELETE FROM auth_tokens WHERE id = $1;`

	qLedgerDeleteByUser = `DELETE FROM auth_tokens WHERE user_id = $1;`

	qLedgerSweep = `DELETE FROM auth_tokens WHERE expires_at < $1;`

	qLedgerIsLive = `
SELECT EXISTS (
    SELECT 1 FROM auth_tokens WHERE token_hash = $1 AND expires_at > $2
);`
)

func (r *TokenLedgerRepo) Record(ctx context.Context, userID int64, token string, expiresAt time.Time) (*domainauth.LedgerEntry, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var e domainauth.LedgerEntry
	row := r.db.execQueryer(ctx).QueryRow(ctx, qLedgerInsert, userID, auth.HashToken(token), expiresAt.UTC())
	if err := scanEntry(row, &e); err != nil {
		return nil, fmt.Errorf("ledger insert: %w", err)
	}
	return &e, nil
}

func (r *TokenLedgerRepo) FindByValue(ctx context.Context, token string) (*domainauth.LedgerEntry, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var e domainauth.LedgerEntry
	if err := scanEntry(r.db.execQueryer(ctx).QueryRow(ctx, qLedgerByHash, auth.HashToken(token)), &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainauth.ErrEntryNotFound
		}
		return nil, fmt.Errorf("ledger select: %w", err)
	}
	return &e, nil
}

func (r *TokenLedgerRepo) Revoke(ctx context.Context, id int64) (bool, error) {
	return r.delete(ctx, "ledger revoke", qLedgerDelete, id)
}

func (r *TokenLedgerRepo) RevokeAllForUser(ctx context.Context, userID int64) (bool, error) {
	return r.delete(ctx, "ledger revoke user", qLedgerDeleteByUser, userID)
}

func (r *TokenLedgerRepo) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qLedgerSweep, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("ledger sweep: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *TokenLedgerRepo) IsLive(ctx context.Context, token string, now time.Time) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var live bool
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qLedgerIsLive, auth.HashToken(token), now.UTC()).Scan(&live); err != nil {
		return false, fmt.Errorf("ledger is live: %w", err)
	}
	return live, nil
}

func (r *TokenLedgerRepo) delete(ctx context.Context, op, q string, arg int64) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, q, arg)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanEntry(row pgx.Row, e *domainauth.LedgerEntry) error {
	return row.Scan(&e.ID, &e.UserID, &e.TokenHash, &e.ExpiresAt, &e.CreatedAt)
}
