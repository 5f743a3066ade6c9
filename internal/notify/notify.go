// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notify delivers account emails.
//
// A Notifier is a transport (SMTP, SendGrid, or a log sink for development).
// A Dispatcher wraps a Notifier so callers can fire a message and move on:
// delivery happens on its own goroutine and failures are logged, never
// returned.
package notify

import (
	"context"
	"strings"

	"github.com/samber/oops"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Validate rejects messages that would produce malformed or injected headers.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return oops.Code("NOTIFY_INVALID_MESSAGE").Errorf("recipient is required")
	}
	if strings.ContainsAny(m.To, "\r\n") || strings.ContainsAny(m.Subject, "\r\n") {
		return oops.Code("NOTIFY_INVALID_MESSAGE").
			With("to", m.To).
			Errorf("header values cannot contain line breaks")
	}
	return nil
}

// Notifier sends a message synchronously.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
