// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// OTPManager issues and consumes one-time codes stored on user records.
type OTPManager struct {
	users     UserRepository
	hasher    PasswordHasher
	mailer    Mailer
	generator *OTPGenerator
	ttl       time.Duration
	now       func() time.Time
}

// OTPOption configures an OTPManager.
type OTPOption func(*OTPManager)

// WithOTPTTL overrides DefaultOTPTTL.
func WithOTPTTL(ttl time.Duration) OTPOption {
	return func(m *OTPManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithOTPSource sets the random source for code generation.
func WithOTPSource(source io.Reader) OTPOption {
	return func(m *OTPManager) {
		m.generator = NewOTPGenerator(source)
	}
}

// WithOTPClock sets the time source for expiry.
func WithOTPClock(now func() time.Time) OTPOption {
	return func(m *OTPManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewOTPManager creates an OTPManager.
func NewOTPManager(users UserRepository, hasher PasswordHasher, mailer Mailer, opts ...OTPOption) (*OTPManager, error) {
	if users == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("password hasher is required")
	}
	if mailer == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("mailer is required")
	}

	m := &OTPManager{
		users:     users,
		hasher:    hasher,
		mailer:    mailer,
		generator: NewOTPGenerator(nil),
		ttl:       DefaultOTPTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// IssueVerifyOTP stores a fresh verification code for an unverified user
// and mails it. The stored code is kept even if delivery fails.
func (m *OTPManager) IssueVerifyOTP(ctx context.Context, userID ulid.ULID) error {
	user, err := findUserByID(ctx, m.users, userID)
	if err != nil {
		return err
	}
	if user.AccountVerified {
		return oops.Code("AUTH_ALREADY_VERIFIED").
			With("user_id", userID.String()).
			Public(MsgAlreadyVerified).
			Errorf("account is already verified")
	}
	return m.issue(ctx, user, OTPPurposeVerify)
}

// IssueResetOTP stores a fresh password reset code for the user with email
// and mails it.
func (m *OTPManager) IssueResetOTP(ctx context.Context, email string) error {
	user, err := findUserByEmail(ctx, m.users, NormalizeEmail(email))
	if err != nil {
		return err
	}
	return m.issue(ctx, user, OTPPurposeReset)
}

func (m *OTPManager) issue(ctx context.Context, user *User, purpose OTPPurpose) error {
	code, err := m.generator.Generate()
	if err != nil {
		return oops.Code("OTP_ISSUE_FAILED").With("purpose", purpose).Wrap(err)
	}

	now := m.now()
	user.SetOTP(OTP{
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(m.ttl),
	})
	user.UpdatedAt = now

	if err := m.users.Update(ctx, user); err != nil {
		return oops.Code("OTP_ISSUE_FAILED").
			With("operation", "save user").
			With("purpose", purpose).
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	m.mailer.Dispatch(otpMessage(purpose, user.Email, code))
	return nil
}

// ConsumeVerifyOTP checks code against the user's verification code and on
// success marks the account verified, clearing the code in the same save.
func (m *OTPManager) ConsumeVerifyOTP(ctx context.Context, userID ulid.ULID, code string) error {
	user, err := findUserByID(ctx, m.users, userID)
	if err != nil {
		return err
	}
	if err := m.check(user, OTPPurposeVerify, code); err != nil {
		return err
	}

	user.AccountVerified = true
	user.ClearOTP(OTPPurposeVerify)
	user.UpdatedAt = m.now()

	if err := m.users.Update(ctx, user); err != nil {
		return oops.Code("OTP_CONSUME_FAILED").
			With("operation", "save user").
			With("purpose", OTPPurposeVerify).
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// ConsumeResetOTP checks code against the user's reset code and on success
// replaces the password hash, clearing the code in the same save.
func (m *OTPManager) ConsumeResetOTP(ctx context.Context, email, code, newPassword string) error {
	user, err := findUserByEmail(ctx, m.users, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if err := m.check(user, OTPPurposeReset, code); err != nil {
		return err
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("OTP_CONSUME_FAILED").
			With("operation", "hash password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	user.PasswordHash = hash
	user.ClearOTP(OTPPurposeReset)
	user.UpdatedAt = m.now()

	if err := m.users.Update(ctx, user); err != nil {
		return oops.Code("OTP_CONSUME_FAILED").
			With("operation", "save user").
			With("purpose", OTPPurposeReset).
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// check validates code before expiry: a wrong code reports OTP_INVALID even
// when the stored code has also expired.
func (m *OTPManager) check(user *User, purpose OTPPurpose, code string) error {
	otp := user.ActiveOTP(purpose)
	if !otp.Matches(code) {
		return oops.Code("OTP_INVALID").
			With("purpose", purpose).
			With("user_id", user.ID.String()).
			Public(MsgInvalidOTP).
			Errorf("otp does not match")
	}
	if otp.IsExpiredAt(m.now()) {
		return oops.Code("OTP_EXPIRED").
			With("purpose", purpose).
			With("user_id", user.ID.String()).
			With("expired_at", otp.ExpiresAt).
			Public(MsgOTPExpired).
			Errorf("otp has expired")
	}
	return nil
}
