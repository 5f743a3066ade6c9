// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redis implements a Redis-backed session token denylist.
package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

// DefaultKeyPrefix namespaces denylist keys.
const DefaultKeyPrefix = "accounts:revoked:"

// Revoker stores revoked token ids until their token would have expired.
type Revoker struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// Option configures a Revoker.
type Option func(*Revoker)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(r *Revoker) { r.prefix = prefix }
}

// WithClock sets the time source used to compute key TTLs.
func WithClock(now func() time.Time) Option {
	return func(r *Revoker) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRevoker wraps an existing client.
func NewRevoker(client goredis.UniversalClient, opts ...Option) *Revoker {
	r := &Revoker{client: client, prefix: DefaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", opts.Addr).Wrap(err)
	}
	return client, nil
}

// Revoke denylists tokenID until the given time. Tokens already past
// their expiry are ignored.
func (r *Revoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return oops.Code("REVOKE_INVALID").Errorf("token id is required")
	}

	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	// Round up so the entry never expires before the token does.
	ttl = ttl.Truncate(time.Second) + time.Second

	if err := r.client.Set(ctx, r.prefix+tokenID, 1, ttl).Err(); err != nil {
		return oops.Code("REVOKE_FAILED").
			With("token_id", tokenID).
			With("ttl", ttl.String()).
			Wrap(err)
	}
	return nil
}

// IsRevoked reports whether tokenID is denylisted.
func (r *Revoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+tokenID).Result()
	if err != nil {
		return false, oops.Code("REVOKE_CHECK_FAILED").With("token_id", tokenID).Wrap(err)
	}
	return n > 0, nil
}

// Compile-time interface check.
var _ auth.TokenRevoker = (*Revoker)(nil)
