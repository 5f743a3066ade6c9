// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/notify"
)

type cleanupT interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserRepository is a mock of auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a MockUserRepository that asserts its
// expectations when the test finishes.
func NewMockUserRepository(t cleanupT) *MockUserRepository {
	m := &MockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create provides a mock function.
func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	ret := m.Called(ctx, user)
	if fn, ok := ret.Get(0).(func(context.Context, *auth.User) error); ok {
		return fn(ctx, user)
	}
	return ret.Error(0)
}

// GetByID provides a mock function.
func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	ret := m.Called(ctx, id)
	var user *auth.User
	if v := ret.Get(0); v != nil {
		user = v.(*auth.User)
	}
	return user, ret.Error(1)
}

// GetByEmail provides a mock function.
func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	ret := m.Called(ctx, email)
	var user *auth.User
	if v := ret.Get(0); v != nil {
		user = v.(*auth.User)
	}
	return user, ret.Error(1)
}

// Update provides a mock function.
func (m *MockUserRepository) Update(ctx context.Context, user *auth.User) error {
	ret := m.Called(ctx, user)
	if fn, ok := ret.Get(0).(func(context.Context, *auth.User) error); ok {
		return fn(ctx, user)
	}
	return ret.Error(0)
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher.
func NewMockPasswordHasher(t cleanupT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash provides a mock function.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	ret := m.Called(password)
	return ret.String(0), ret.Error(1)
}

// Verify provides a mock function.
func (m *MockPasswordHasher) Verify(password, hash string) bool {
	ret := m.Called(password, hash)
	return ret.Bool(0)
}

// MockMailer is a mock of auth.Mailer.
type MockMailer struct {
	mock.Mock
}

// NewMockMailer creates a MockMailer.
func NewMockMailer(t cleanupT) *MockMailer {
	m := &MockMailer{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Dispatch provides a mock function.
func (m *MockMailer) Dispatch(msg notify.Message) {
	m.Called(msg)
}

// MockTokenRevoker is a mock of auth.TokenRevoker.
type MockTokenRevoker struct {
	mock.Mock
}

// NewMockTokenRevoker creates a MockTokenRevoker.
func NewMockTokenRevoker(t cleanupT) *MockTokenRevoker {
	m := &MockTokenRevoker{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Revoke provides a mock function.
func (m *MockTokenRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ret := m.Called(ctx, tokenID, until)
	return ret.Error(0)
}

// IsRevoked provides a mock function.
func (m *MockTokenRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ret := m.Called(ctx, tokenID)
	return ret.Bool(0), ret.Error(1)
}
