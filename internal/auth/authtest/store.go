// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authtest provides in-memory implementations of auth interfaces
// for tests and local development.
package authtest

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/notify"
)

// UserStore is an auth.UserRepository backed by a map.
// Records are copied on the way in and out so callers cannot alias state.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.User
	byEmail map[string]ulid.ULID
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[ulid.ULID]*auth.User),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a new user.
func (s *UserStore) Create(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := auth.NormalizeEmail(user.Email)
	if _, ok := s.byEmail[email]; ok {
		return oops.Code("USER_ALREADY_EXISTS").With("email", email).Wrap(auth.ErrAlreadyExists)
	}
	s.byID[user.ID] = cloneUser(user)
	s.byEmail[email] = user.ID
	return nil
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return cloneUser(user), nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (s *UserStore) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return cloneUser(s.byID[id]), nil
}

// Update replaces an existing user.
func (s *UserStore) Update(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[user.ID]; !ok {
		return oops.Code("USER_NOT_FOUND").With("id", user.ID.String()).Wrap(auth.ErrNotFound)
	}
	s.byID[user.ID] = cloneUser(user)
	return nil
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	if u.VerifyOTP != nil {
		otp := *u.VerifyOTP
		c.VerifyOTP = &otp
	}
	if u.ResetOTP != nil {
		otp := *u.ResetOTP
		c.ResetOTP = &otp
	}
	return &c
}

// Outbox is an auth.Mailer that records messages instead of sending them.
type Outbox struct {
	mu       sync.Mutex
	messages []notify.Message
}

// Dispatch records msg.
func (o *Outbox) Dispatch(msg notify.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
}

// Messages returns a copy of every recorded message.
func (o *Outbox) Messages() []notify.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]notify.Message(nil), o.messages...)
}

// Last returns the most recent message sent to the given address.
func (o *Outbox) Last(to string) (notify.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		if o.messages[i].To == to {
			return o.messages[i], true
		}
	}
	return notify.Message{}, false
}
