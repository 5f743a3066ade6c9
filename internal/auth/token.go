// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultSessionTTL is how long an issued session token stays valid.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Session is the identity carried by a verified session token.
type Session struct {
	UserID    ulid.ULID
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// sessionClaims is the JWT payload. The user id travels as "id".
type sessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenTTL overrides DefaultSessionTTL.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(t *TokenIssuer) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithTokenClock sets the time source used for issuing and verifying.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokenIssuer creates a TokenIssuer signing with secret.
func NewTokenIssuer(secret []byte, opts ...TokenOption) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("token signing secret is required")
	}
	t := &TokenIssuer{
		secret: secret,
		ttl:    DefaultSessionTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// TTL returns the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for userID expiring TTL from now.
func (t *TokenIssuer) Issue(userID ulid.ULID) (string, *Session, error) {
	now := t.now().Truncate(time.Second)
	session := &Session{
		UserID:    userID,
		TokenID:   ulid.Make().String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(t.ttl),
	}

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.TokenID,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
		UserID: userID.String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, oops.Code("AUTH_TOKEN_SIGN_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return signed, session, nil
}

// Verify parses token and returns the session it carries.
// Any failure yields an AUTH_INVALID_TOKEN error.
func (t *TokenIssuer) Verify(token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("AUTH_INVALID_TOKEN").Errorf("session token is empty")
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_TOKEN").Wrap(err)
	}
	if !parsed.Valid {
		return nil, oops.Code("AUTH_INVALID_TOKEN").Errorf("session token is not valid")
	}
	if claims.UserID == "" {
		return nil, oops.Code("AUTH_INVALID_TOKEN").Errorf("session token has no user id")
	}

	userID, err := ulid.Parse(claims.UserID)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_TOKEN").With("id", claims.UserID).Wrap(err)
	}

	session := &Session{
		UserID:  userID,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}
