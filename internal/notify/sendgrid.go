// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"net/http"

	"github.com/samber/oops"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier delivers messages through the SendGrid v3 API.
type SendGridNotifier struct {
	client sendGridClient
	from   *mail.Email
}

// NewSendGridNotifier creates a SendGridNotifier.
func NewSendGridNotifier(apiKey, from string) (*SendGridNotifier, error) {
	if apiKey == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("sendgrid api key is required")
	}
	if from == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("sender address is required")
	}
	return &SendGridNotifier{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail("", from),
	}, nil
}

// Send delivers msg as a plain-text email.
func (n *SendGridNotifier) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	email := mail.NewSingleEmailPlainText(n.from, msg.Subject, mail.NewEmail("", msg.To), msg.Body)
	resp, err := n.client.SendWithContext(ctx, email)
	if err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("transport", "sendgrid").
			With("to", msg.To).
			Wrap(err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("transport", "sendgrid").
			With("to", msg.To).
			With("status", resp.StatusCode).
			Errorf("sendgrid rejected message: %s", resp.Body)
	}
	return nil
}
