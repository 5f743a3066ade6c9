// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements account authentication: registration, login,
// session tokens, email verification and password reset.
//
// # Domain Types
//
// User records are created with NewUser, which normalizes the name and
// email. One-time codes are OTP values owned by the User; a nil OTP means
// no code is active for that purpose.
//
// # Components
//
//   - PasswordHasher / BcryptHasher - one-way password digests
//   - TokenIssuer - signed session tokens carrying the user id
//   - OTPManager - issue and consume verification and reset codes
//   - Service - the account flows built on the above
//
// Business failures are oops errors carrying a client-safe message set with
// oops.Public; everything else is an unexpected failure.
package auth
