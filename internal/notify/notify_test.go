// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/pkg/errutil"
)

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"valid", Message{To: "ann@example.com", Subject: "Hi", Body: "line1\nline2"}, false},
		{"missing recipient", Message{Subject: "Hi"}, true},
		{"blank recipient", Message{To: "   "}, true},
		{"newline in recipient", Message{To: "ann@example.com\r\nBcc: eve@example.com"}, true},
		{"newline in subject", Message{To: "ann@example.com", Subject: "Hi\nBcc: eve@example.com"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "NOTIFY_INVALID_MESSAGE")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLogNotifier_Send(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	n := NewLogNotifier(logger)

	err := n.Send(context.Background(), Message{
		To:      "ann@example.com",
		Subject: "Account Verification OTP",
		Body:    "Your OTP to verify your account is 123456",
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"to":"ann@example.com"`)
	assert.Contains(t, out, `"subject":"Account Verification OTP"`)
	assert.Contains(t, out, "123456")
}

func TestLogNotifier_RejectsInvalidMessage(t *testing.T) {
	n := NewLogNotifier(nil)
	err := n.Send(context.Background(), Message{})
	errutil.AssertErrorCode(t, err, "NOTIFY_INVALID_MESSAGE")
}
