// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/pkg/errutil"
)

func TestNewUser(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	user, err := auth.NewUser("  Ann  ", " Ann@Example.COM ", "$2a$hash", now)
	require.NoError(t, err)

	assert.False(t, user.ID.IsZero())
	assert.Equal(t, "ann", user.Name)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.Equal(t, "$2a$hash", user.PasswordHash)
	assert.False(t, user.AccountVerified)
	assert.Nil(t, user.VerifyOTP)
	assert.Nil(t, user.ResetOTP)
	assert.Equal(t, now, user.CreatedAt)
	assert.Equal(t, now, user.UpdatedAt)
}

func TestNewUser_Validation(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		userName string
		email    string
		hash     string
	}{
		{"empty name", "", "a@example.com", "h"},
		{"whitespace name", "   ", "a@example.com", "h"},
		{"empty email", "ann", "", "h"},
		{"empty hash", "ann", "a@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewUser(tt.userName, tt.email, tt.hash, now)
			errutil.AssertErrorCode(t, err, "USER_INVALID")
		})
	}
}

func TestUser_OTPSlots(t *testing.T) {
	user := &auth.User{}
	expires := time.Now().Add(time.Minute)

	user.SetOTP(auth.OTP{Code: "111111", Purpose: auth.OTPPurposeVerify, ExpiresAt: expires})
	user.SetOTP(auth.OTP{Code: "222222", Purpose: auth.OTPPurposeReset, ExpiresAt: expires})

	require.NotNil(t, user.ActiveOTP(auth.OTPPurposeVerify))
	require.NotNil(t, user.ActiveOTP(auth.OTPPurposeReset))
	assert.Equal(t, "111111", user.ActiveOTP(auth.OTPPurposeVerify).Code)
	assert.Equal(t, "222222", user.ActiveOTP(auth.OTPPurposeReset).Code)

	t.Run("new code overwrites previous", func(t *testing.T) {
		user.SetOTP(auth.OTP{Code: "333333", Purpose: auth.OTPPurposeVerify, ExpiresAt: expires})
		assert.Equal(t, "333333", user.VerifyOTP.Code)
		assert.False(t, user.VerifyOTP.Matches("111111"))
	})

	t.Run("clear affects one purpose", func(t *testing.T) {
		user.ClearOTP(auth.OTPPurposeVerify)
		assert.Nil(t, user.VerifyOTP)
		assert.NotNil(t, user.ResetOTP)
	})

	t.Run("unknown purpose has no slot", func(t *testing.T) {
		assert.Nil(t, user.ActiveOTP("other"))
	})
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ann@example.com", auth.NormalizeEmail("  ANN@example.com\t"))
	assert.Empty(t, auth.NormalizeEmail("   "))
}
