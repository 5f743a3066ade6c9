// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"fmt"

	"github.com/holomush/accounts/internal/notify"
)

// Mailer queues outbound email. Delivery is best-effort: Dispatch never
// blocks on the transport and never reports failure to the caller.
type Mailer interface {
	Dispatch(msg notify.Message)
}

// Email subjects.
const (
	SubjectWelcome = "Welcome to our platform"
	SubjectOTP     = "Account Verification OTP"
)

func welcomeMessage(name, email string) notify.Message {
	return notify.Message{
		To:      email,
		Subject: SubjectWelcome,
		Body: fmt.Sprintf("Hello %s, welcome to our platform. We are glad to have you here and email %s.",
			name, email),
	}
}

func otpMessage(purpose OTPPurpose, email, code string) notify.Message {
	body := fmt.Sprintf("Your OTP to verify your account is %s", code)
	if purpose == OTPPurposeReset {
		body = fmt.Sprintf("Your OTP to reset your password is %s", code)
	}
	return notify.Message{
		To:      email,
		Subject: SubjectOTP,
		Body:    body,
	}
}
