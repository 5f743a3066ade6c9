// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"io"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/samber/oops"
)

// OTPPurpose scopes a one-time code to a single flow.
type OTPPurpose string

// OTP purposes.
const (
	OTPPurposeVerify OTPPurpose = "verify"
	OTPPurposeReset  OTPPurpose = "reset"
)

// OTP configuration.
const (
	DefaultOTPTTL = 10 * time.Minute

	otpMin  = 100000
	otpSpan = 900000 // codes fall in [100000, 999999]
)

// OTP is a one-time code bound to a purpose and an absolute expiry.
type OTP struct {
	Code      string
	Purpose   OTPPurpose
	ExpiresAt time.Time
}

// Matches reports whether code equals the stored code exactly.
// A nil OTP or an empty stored code never matches.
func (o *OTP) Matches(code string) bool {
	if o == nil || o.Code == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(o.Code), []byte(code)) == 1
}

// IsExpiredAt reports whether the code is past its expiry at now.
func (o *OTP) IsExpiredAt(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// OTPGenerator produces uniformly distributed 6-digit codes.
type OTPGenerator struct {
	mu     sync.Mutex
	source io.Reader
}

// NewOTPGenerator creates a generator reading from source.
// A nil source uses crypto/rand.
func NewOTPGenerator(source io.Reader) *OTPGenerator {
	if source == nil {
		source = rand.Reader
	}
	return &OTPGenerator{source: source}
}

// Generate returns a new code in the range 100000-999999.
func (g *OTPGenerator) Generate() (string, error) {
	g.mu.Lock()
	n, err := rand.Int(g.source, big.NewInt(otpSpan))
	g.mu.Unlock()
	if err != nil {
		return "", oops.Code("OTP_GENERATE_FAILED").Wrap(err)
	}
	return strconv.FormatInt(otpMin+n.Int64(), 10), nil
}
