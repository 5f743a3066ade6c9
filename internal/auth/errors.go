// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned by a UserRepository when the email is taken.
var ErrAlreadyExists = errors.New("already exists")

// Client-facing messages for business failures.
const (
	MsgFieldsRequired     = "All fields are required"
	MsgEmailRequired      = "Email is required"
	MsgUserExists         = "User already exists"
	MsgUserNotFound       = "User does not exist"
	MsgInvalidCredentials = "Invalid credentials"
	MsgAlreadyVerified    = "User is already verified"
	MsgInvalidOTP         = "Invalid OTP"
	MsgOTPExpired         = "OTP is expired"
)

func errFieldsRequired(operation string) error {
	return oops.Code("AUTH_FIELDS_REQUIRED").
		With("operation", operation).
		Public(MsgFieldsRequired).
		Errorf("required field missing")
}

func errUserNotFound(key string, value any) error {
	return oops.Code("AUTH_USER_NOT_FOUND").
		With(key, value).
		Public(MsgUserNotFound).
		Errorf("user does not exist")
}
