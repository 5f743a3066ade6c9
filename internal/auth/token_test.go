// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/pkg/errutil"
)

var testSecret = []byte("test-signing-secret")

func newIssuer(t *testing.T, clock *fakeClock, opts ...auth.TokenOption) *auth.TokenIssuer {
	t.Helper()
	opts = append([]auth.TokenOption{auth.WithTokenClock(clock.Now)}, opts...)
	issuer, err := auth.NewTokenIssuer(testSecret, opts...)
	require.NoError(t, err)
	return issuer
}

func signRaw(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestNewTokenIssuer_RequiresSecret(t *testing.T) {
	_, err := auth.NewTokenIssuer(nil)
	errutil.AssertErrorCode(t, err, "AUTH_CONFIG_INVALID")
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	issuer := newIssuer(t, clock)
	userID := ulid.Make()

	token, issued, err := issuer.Issue(userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, userID, issued.UserID)
	assert.NotEmpty(t, issued.TokenID)
	assert.Equal(t, auth.DefaultSessionTTL, issued.ExpiresAt.Sub(issued.IssuedAt))

	session, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, session.UserID)
	assert.Equal(t, issued.TokenID, session.TokenID)
	assert.True(t, issued.ExpiresAt.Equal(session.ExpiresAt))
	assert.True(t, issued.IssuedAt.Equal(session.IssuedAt))
}

func TestTokenIssuer_ExpiresAfterSevenDays(t *testing.T) {
	clock := newFakeClock()
	issuer := newIssuer(t, clock)
	userID := ulid.Make()

	token, _, err := issuer.Issue(userID)
	require.NoError(t, err)

	clock.Advance(7*24*time.Hour - time.Second)
	session, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, session.UserID)

	clock.Advance(2 * time.Second)
	_, err = issuer.Verify(token)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_TOKEN")
}

func TestTokenIssuer_CustomTTL(t *testing.T) {
	clock := newFakeClock()
	issuer := newIssuer(t, clock, auth.WithTokenTTL(time.Hour))
	assert.Equal(t, time.Hour, issuer.TTL())

	token, _, err := issuer.Issue(ulid.Make())
	require.NoError(t, err)

	clock.Advance(time.Hour + time.Second)
	_, err = issuer.Verify(token)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_TOKEN")
}

func TestTokenIssuer_RejectsInvalidTokens(t *testing.T) {
	clock := newFakeClock()
	issuer := newIssuer(t, clock)
	now := clock.Now()
	userID := ulid.Make().String()

	valid := func(id string) jwt.MapClaims {
		return jwt.MapClaims{
			"id":  id,
			"jti": ulid.Make().String(),
			"iat": now.Unix(),
			"exp": now.Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"wrong secret", signRaw(t, jwt.SigningMethodHS256, []byte("other-secret"), valid(userID))},
		{"wrong algorithm", signRaw(t, jwt.SigningMethodHS512, testSecret, valid(userID))},
		{"alg none", signRaw(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid(userID))},
		{"missing id", signRaw(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
			"exp": now.Add(time.Hour).Unix(),
		})},
		{"id is not a ulid", signRaw(t, jwt.SigningMethodHS256, testSecret, valid("42"))},
		{"missing expiry", signRaw(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"id": userID})},
		{"already expired", signRaw(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
			"id":  userID,
			"exp": now.Add(-time.Minute).Unix(),
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := issuer.Verify(tt.token)
			assert.Nil(t, session)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_TOKEN")
		})
	}
}

func TestTokenIssuer_TokenIDsAreUnique(t *testing.T) {
	issuer := newIssuer(t, newFakeClock())
	userID := ulid.Make()

	_, first, err := issuer.Issue(userID)
	require.NoError(t, err)
	_, second, err := issuer.Issue(userID)
	require.NoError(t, err)

	assert.NotEqual(t, first.TokenID, second.TokenID)
}
