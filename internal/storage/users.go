package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
)

const userColumns = `id, email, password_hash, first_name, last_name, currency, created_at, updated_at`

func scanUser(s rowScanner) (core.User, error) {
	var (
		u                core.User
		created, updated string
	)
	if err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Currency, &created, &updated); err != nil {
		return core.User{}, err
	}
	var err error
	if u.CreatedAt, err = parseTime(created); err != nil {
		return core.User{}, fmt.Errorf("parse created_at: %w", err)
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return core.User{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, first_name, last_name, currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		core.NormalizeEmail(u.Email), u.PasswordHash, u.FirstName, u.LastName, u.Currency,
		formatTime(ts), formatTime(ts))
	if err != nil {
		if IsUniqueViolation(err) {
			return core.NewDomainError(core.ErrDuplicate, "email already registered")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	u.ID = id
	u.Email = core.NormalizeEmail(u.Email)
	u.CreatedAt, u.UpdatedAt = ts, ts

	slog.InfoContext(ctx, "User created", "user_id", id)
	return nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, NotFound("user")
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, core.NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, NotFound("user")
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, u *core.User) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, first_name = ?, last_name = ?, currency = ?, updated_at = ?
		 WHERE id = ?`,
		core.NormalizeEmail(u.Email), u.FirstName, u.LastName, u.Currency, formatTime(ts), u.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return core.NewDomainError(core.ErrDuplicate, "email already registered")
		}
		return fmt.Errorf("update user: %w", err)
	}
	if err := rowsAffected(res, "user"); err != nil {
		return err
	}
	u.UpdatedAt = ts
	return nil
}

func (r *SQLiteRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, formatTime(now()), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return rowsAffected(res, "user")
}

// DeleteUser removes the user and, by cascade, everything they own.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := rowsAffected(res, "user"); err != nil {
		return err
	}
	slog.InfoContext(ctx, "User deleted", "user_id", id)
	return nil
}
