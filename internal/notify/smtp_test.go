// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/pkg/errutil"
)

type capturedMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  []byte
}

func newTestSMTPNotifier(t *testing.T, cfg SMTPConfig, sendErr error) (*SMTPNotifier, *[]capturedMail) {
	t.Helper()
	n, err := NewSMTPNotifier(cfg)
	require.NoError(t, err)

	var sent []capturedMail
	n.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, capturedMail{addr: addr, auth: a, from: from, to: to, msg: msg})
		return sendErr
	}
	n.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return n, &sent
}

func TestNewSMTPNotifier_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMTPConfig
	}{
		{"missing host", SMTPConfig{Port: 587, From: "noreply@example.com"}},
		{"missing port", SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com"}},
		{"missing sender", SMTPConfig{Host: "smtp.example.com", Port: 587}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSMTPNotifier(tt.cfg)
			errutil.AssertErrorCode(t, err, "NOTIFY_CONFIG_INVALID")
		})
	}
}

func TestSMTPNotifier_Send(t *testing.T) {
	cfg := SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "apikey",
		Password: "secret",
		From:     "noreply@example.com",
	}
	n, sent := newTestSMTPNotifier(t, cfg, nil)

	err := n.Send(context.Background(), Message{
		To:      "ann@example.com",
		Subject: "Welcome to our platform",
		Body:    "Hello ann",
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	got := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.NotNil(t, got.auth)
	assert.Equal(t, "noreply@example.com", got.from)
	assert.Equal(t, []string{"ann@example.com"}, got.to)

	body := string(got.msg)
	assert.Contains(t, body, "From: noreply@example.com\r\n")
	assert.Contains(t, body, "To: ann@example.com\r\n")
	assert.Contains(t, body, "Subject: Welcome to our platform\r\n")
	assert.Contains(t, body, "Date: Fri, 02 Jan 2026 03:04:05 +0000\r\n")
	assert.Contains(t, body, "\r\n\r\nHello ann\r\n")
}

func TestSMTPNotifier_NoAuthWithoutUsername(t *testing.T) {
	n, sent := newTestSMTPNotifier(t, SMTPConfig{Host: "localhost", Port: 25, From: "a@example.com"}, nil)

	require.NoError(t, n.Send(context.Background(), Message{To: "b@example.com"}))
	require.Len(t, *sent, 1)
	assert.Nil(t, (*sent)[0].auth)
}

func TestSMTPNotifier_SendFailure(t *testing.T) {
	n, _ := newTestSMTPNotifier(t, SMTPConfig{Host: "localhost", Port: 25, From: "a@example.com"}, errors.New("connection refused"))

	err := n.Send(context.Background(), Message{To: "b@example.com"})
	errutil.AssertErrorCode(t, err, "NOTIFY_SEND_FAILED")
	errutil.AssertErrorContext(t, err, "transport", "smtp")
}

func TestSMTPNotifier_CancelledContext(t *testing.T) {
	n, sent := newTestSMTPNotifier(t, SMTPConfig{Host: "localhost", Port: 25, From: "a@example.com"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Send(ctx, Message{To: "b@example.com"})
	errutil.AssertErrorCode(t, err, "NOTIFY_SEND_FAILED")
	assert.Empty(t, *sent)
}
