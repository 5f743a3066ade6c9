// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"
)

// TokenRevoker records logged-out token ids so they stop authenticating
// before their natural expiry.
type TokenRevoker interface {
	// Revoke denylists tokenID until the given time.
	Revoke(ctx context.Context, tokenID string, until time.Time) error

	// IsRevoked reports whether tokenID has been denylisted.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NopRevoker keeps sessions stateless: nothing is ever revoked.
type NopRevoker struct{}

// Revoke does nothing.
func (NopRevoker) Revoke(context.Context, string, time.Time) error { return nil }

// IsRevoked always reports false.
func (NopRevoker) IsRevoked(context.Context, string) (bool, error) { return false, nil }
