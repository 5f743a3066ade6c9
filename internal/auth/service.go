// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/pkg/errutil"
)

// ServiceDeps holds the collaborators of a Service.
// Revoker, Logger and Clock are optional.
type ServiceDeps struct {
	Users   UserRepository
	Hasher  PasswordHasher
	Tokens  *TokenIssuer
	OTPs    *OTPManager
	Mailer  Mailer
	Revoker TokenRevoker
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Service runs the account flows.
type Service struct {
	users   UserRepository
	hasher  PasswordHasher
	tokens  *TokenIssuer
	otps    *OTPManager
	mailer  Mailer
	revoker TokenRevoker
	logger  *slog.Logger
	now     func() time.Time
}

// AuthResult is returned by flows that start a session.
type AuthResult struct {
	User    *User
	Token   string
	Session *Session
}

// NewService creates a Service.
func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Users == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("users repository is required")
	}
	if deps.Hasher == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("password hasher is required")
	}
	if deps.Tokens == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("token issuer is required")
	}
	if deps.OTPs == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("otp manager is required")
	}
	if deps.Mailer == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("mailer is required")
	}

	s := &Service{
		users:   deps.Users,
		hasher:  deps.Hasher,
		tokens:  deps.Tokens,
		otps:    deps.OTPs,
		mailer:  deps.Mailer,
		revoker: deps.Revoker,
		logger:  deps.Logger,
		now:     deps.Clock,
	}
	if s.revoker == nil {
		s.revoker = NopRevoker{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Register creates an unverified account and starts a session for it.
// The welcome email is dispatched without waiting for delivery.
func (s *Service) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, errFieldsRequired("register")
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, errUserExists(email)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(name, email, hash, s.now())
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "new user").
			Wrap(err)
	}

	// The lookup above races with concurrent registrations; the store's
	// unique index is the authority.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, errUserExists(email)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			With("email", email).
			Wrap(err)
	}

	result, err := s.startSession(user)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	s.mailer.Dispatch(welcomeMessage(name, user.Email))
	return result, nil
}

// Login checks credentials and starts a session.
// Unknown email and wrong password fail with distinct messages.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, errFieldsRequired("login")
	}

	user, err := findUserByEmail(ctx, s.users, email)
	if err != nil {
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").
			With("user_id", user.ID.String()).
			Public(MsgInvalidCredentials).
			Errorf("password does not match")
	}

	result, err := s.startSession(user)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}
	return result, nil
}

// Logout ends a session. It always succeeds; when a revoker is configured
// the token is denylisted until it expires.
func (s *Service) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	session, err := s.tokens.Verify(token)
	if err != nil {
		return
	}
	if err := s.revoker.Revoke(ctx, session.TokenID, session.ExpiresAt); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "best-effort token revocation failed", err,
			"user_id", session.UserID.String())
	}
}

// SendVerifyOTP mails a verification code to an unverified account.
func (s *Service) SendVerifyOTP(ctx context.Context, userID ulid.ULID) error {
	return s.otps.IssueVerifyOTP(ctx, userID)
}

// VerifyEmail consumes the verification code and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, userID ulid.ULID, otp string) error {
	if otp == "" {
		return errFieldsRequired("verify email")
	}
	return s.otps.ConsumeVerifyOTP(ctx, userID, otp)
}

// SendResetOTP mails a password reset code.
func (s *Service) SendResetOTP(ctx context.Context, email string) error {
	if NormalizeEmail(email) == "" {
		return oops.Code("AUTH_EMAIL_REQUIRED").
			Public(MsgEmailRequired).
			Errorf("email is required")
	}
	return s.otps.IssueResetOTP(ctx, email)
}

// ResetPassword consumes the reset code and replaces the password.
func (s *Service) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	if NormalizeEmail(email) == "" || otp == "" || newPassword == "" {
		return errFieldsRequired("reset password")
	}
	return s.otps.ConsumeResetOTP(ctx, email, otp, newPassword)
}

// Authenticate resolves a session token. Invalid, expired and revoked
// tokens all fail.
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	session, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revoker.IsRevoked(ctx, session.TokenID)
	if err != nil {
		return nil, oops.Code("AUTH_REVOCATION_CHECK_FAILED").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	if revoked {
		return nil, oops.Code("AUTH_TOKEN_REVOKED").
			With("user_id", session.UserID.String()).
			Errorf("session token has been revoked")
	}
	return session, nil
}

// SessionTTL returns the lifetime of issued session tokens.
func (s *Service) SessionTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *Service) startSession(user *User) (*AuthResult, error) {
	token, session, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token, Session: session}, nil
}

func errUserExists(email string) error {
	return oops.Code("AUTH_USER_EXISTS").
		With("email", email).
		Public(MsgUserExists).
		Errorf("user already exists")
}
