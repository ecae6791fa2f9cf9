package postgres

import (
	"context"
	"errors"
	"fmt"

	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"github.com/jackc/pgx/v5"
)

var _ user.Directory = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, username, email, password_hash, role, created_at, updated_at`

const (
	qUserInsert = `
INSERT INTO users (username, email, password_hash, role)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns + `;`

	qUserByID = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1;`

	qUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1;`

	qUserByUsername = `
SELECT ` + userColumns + `
FROM users
WHERE username = $1;`

	qUserUpdate = `
UPDATE users
SET username   = COALESCE($2::text, username),
    email      = COALESCE($3::text, email),
    updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns + `;`

	qUserDelete = `DELETE FROM users WHERE id = $1;`

	qUserList = `
SELECT ` + userColumns + `
FROM users
ORDER BY id;`

	qUserHasRole = `SELECT EXISTS (SELECT 1 FROM users WHERE role = $1);`
)

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.execQueryer(ctx).QueryRow(ctx, qUserInsert, u.Username, u.Email, u.PasswordHash, string(u.Role))
	if err := scanUser(row, u); err != nil {
		if isUniqueViolation(err) {
			return user.ErrConflict
		}
		return fmt.Errorf("user insert: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.getOne(ctx, qUserByID, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, qUserByEmail, email)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.getOne(ctx, qUserByUsername, username)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, q, arg), &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("user select: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) Update(ctx context.Context, id int64, p user.Patch) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserUpdate, id, p.Username, p.Email), &u); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, user.ErrNotFound
		case isUniqueViolation(err):
			return nil, user.ErrConflict
		}
		return nil, fmt.Errorf("user update: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) Delete(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qUserDelete, id)
	if err != nil {
		return false, fmt.Errorf("user delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *UserRepo) List(ctx context.Context) ([]*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qUserList)
	if err != nil {
		return nil, fmt.Errorf("user list: %w", err)
	}
	defer rows.Close()

	var out []*user.User
	for rows.Next() {
		var u user.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("user list scan: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func (r *UserRepo) HasRole(ctx context.Context, role domainauth.Role) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var exists bool
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qUserHasRole, string(role)).Scan(&exists); err != nil {
		return false, fmt.Errorf("user role lookup: %w", err)
	}
	return exists, nil
}

func scanUser(row pgx.Row, out *user.User) error {
	var role string
	if err := row.Scan(&out.ID, &out.Username, &out.Email, &out.PasswordHash, &role, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return err
	}
	out.Role = domainauth.Role(role)
	return nil
}
