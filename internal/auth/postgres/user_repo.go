// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

// Querier is the subset of *pgxpool.Pool the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

const selectUser = `
	SELECT id, name, email, password_hash, account_verified,
	       verify_otp, verify_otp_expires_at, reset_otp, reset_otp_expires_at,
	       created_at, updated_at
	FROM users
`

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	verifyCode, verifyExpires := otpColumns(user.VerifyOTP)
	resetCode, resetExpires := otpColumns(user.ResetOTP)

	_, err := r.db.Exec(ctx, `
		INSERT INTO users (
			id, name, email, password_hash, account_verified,
			verify_otp, verify_otp_expires_at, reset_otp, reset_otp_expires_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		user.ID.String(),
		user.Name,
		user.Email,
		user.PasswordHash,
		user.AccountVerified,
		verifyCode,
		verifyExpires,
		resetCode,
		resetExpires,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_ALREADY_EXISTS").
				With("email", user.Email).
				With("constraint", pgErr.ConstraintName).
				Wrap(auth.ErrAlreadyExists)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.QueryRow(ctx, selectUser+` WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, selectUser+` WHERE LOWER(email) = LOWER($1)`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// Update writes every mutable column in one statement, so an OTP is
// cleared in the same write that applies its effect.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	verifyCode, verifyExpires := otpColumns(user.VerifyOTP)
	resetCode, resetExpires := otpColumns(user.ResetOTP)

	result, err := r.db.Exec(ctx, `
		UPDATE users SET
			name = $2,
			email = $3,
			password_hash = $4,
			account_verified = $5,
			verify_otp = $6,
			verify_otp_expires_at = $7,
			reset_otp = $8,
			reset_otp_expires_at = $9,
			updated_at = $10
		WHERE id = $1
	`,
		user.ID.String(),
		user.Name,
		user.Email,
		user.PasswordHash,
		user.AccountVerified,
		verifyCode,
		verifyExpires,
		resetCode,
		resetExpires,
		user.UpdatedAt,
	)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", user.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func otpColumns(otp *auth.OTP) (*string, *time.Time) {
	if otp == nil {
		return nil, nil
	}
	code, expires := otp.Code, otp.ExpiresAt
	return &code, &expires
}

func otpFromColumns(purpose auth.OTPPurpose, code *string, expires *time.Time) *auth.OTP {
	if code == nil || expires == nil {
		return nil
	}
	return &auth.OTP{Code: *code, Purpose: purpose, ExpiresAt: *expires}
}

// scanUser scans a single row into a User.
// pgx.ErrNoRows is returned unwrapped for callers to handle.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr                       string
		user                        auth.User
		verifyCode, resetCode       *string
		verifyExpires, resetExpires *time.Time
	)

	err := row.Scan(
		&idStr,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.AccountVerified,
		&verifyCode,
		&verifyExpires,
		&resetCode,
		&resetExpires,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with lookup context
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	user.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}

	user.VerifyOTP = otpFromColumns(auth.OTPPurposeVerify, verifyCode, verifyExpires)
	user.ResetOTP = otpFromColumns(auth.OTPPurposeReset, resetCode, resetExpires)
	return &user, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
