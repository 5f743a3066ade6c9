// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/pkg/errutil"
)

func TestBcryptHasher_Hash(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	t.Run("produces bcrypt digest", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$2a$"))
		assert.NotContains(t, hash, "password123")

		cost, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err)
		assert.Equal(t, bcrypt.MinCost, cost)
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		require.ErrorIs(t, err, auth.ErrEmptyPassword)
		errutil.AssertErrorCode(t, err, "AUTH_EMPTY_PASSWORD")
	})

	t.Run("hashes password longer than bcrypt input limit", func(t *testing.T) {
		long := strings.Repeat("x", 80)
		hash, err := hasher.Hash(long)
		require.NoError(t, err)
		assert.True(t, hasher.Verify(long, hash))
		assert.True(t, hasher.Verify(long[:auth.MaxPasswordBytes], hash))
		assert.False(t, hasher.Verify(long[:auth.MaxPasswordBytes-1], hash))
	})
}

func TestBcryptHasher_DefaultCost(t *testing.T) {
	for _, cost := range []int{0, -1, bcrypt.MaxCost + 1} {
		hash, err := auth.NewBcryptHasher(cost).Hash("pw")
		require.NoError(t, err)

		got, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err)
		assert.Equal(t, auth.DefaultBcryptCost, got)
	}
}

func TestBcryptHasher_Verify(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("correctpassword")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{"correct password", "correctpassword", hash, true},
		{"wrong password", "wrongpassword", hash, false},
		{"case differs", "CorrectPassword", hash, false},
		{"empty password", "", hash, false},
		{"malformed digest", "correctpassword", "not-a-valid-hash", false},
		{"empty digest", "correctpassword", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasher.Verify(tt.password, tt.hash))
		})
	}
}
