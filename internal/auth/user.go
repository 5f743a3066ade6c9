// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User is an account record. Email is the natural key for login and reset.
type User struct {
	ID              ulid.ULID
	Name            string
	Email           string
	PasswordHash    string
	AccountVerified bool
	VerifyOTP       *OTP
	ResetOTP        *OTP
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NormalizeName lowercases and trims a display name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewUser creates an unverified user with normalized name and email.
func NewUser(name, email, passwordHash string, now time.Time) (*User, error) {
	name = NormalizeName(name)
	email = NormalizeEmail(email)

	if name == "" {
		return nil, oops.Code("USER_INVALID").Errorf("name cannot be empty")
	}
	if email == "" {
		return nil, oops.Code("USER_INVALID").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID").Errorf("password hash cannot be empty")
	}

	return &User{
		ID:           ulid.Make(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ActiveOTP returns the code currently active for purpose, or nil.
func (u *User) ActiveOTP(purpose OTPPurpose) *OTP {
	switch purpose {
	case OTPPurposeVerify:
		return u.VerifyOTP
	case OTPPurposeReset:
		return u.ResetOTP
	default:
		return nil
	}
}

// SetOTP replaces the active code for otp.Purpose.
func (u *User) SetOTP(otp OTP) {
	switch otp.Purpose {
	case OTPPurposeVerify:
		u.VerifyOTP = &otp
	case OTPPurposeReset:
		u.ResetOTP = &otp
	}
}

// ClearOTP removes the active code for purpose.
func (u *User) ClearOTP(purpose OTPPurpose) {
	switch purpose {
	case OTPPurposeVerify:
		u.VerifyOTP = nil
	case OTPPurposeReset:
		u.ResetOTP = nil
	}
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user.
	// Returns ErrAlreadyExists if the email is already registered.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	// Returns ErrNotFound if no user has the given ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update saves every mutable field of an existing user in one statement.
	Update(ctx context.Context, user *User) error
}

func findUserByID(ctx context.Context, users UserRepository, id ulid.ULID) (*User, error) {
	user, err := users.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, errUserNotFound("user_id", id.String())
	}
	if err != nil {
		return nil, oops.Code("USER_LOOKUP_FAILED").
			With("operation", "get user by id").
			With("user_id", id.String()).
			Wrap(err)
	}
	return user, nil
}

func findUserByEmail(ctx context.Context, users UserRepository, email string) (*User, error) {
	user, err := users.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, errUserNotFound("email", email)
	}
	if err != nil {
		return nil, oops.Code("USER_LOOKUP_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}
