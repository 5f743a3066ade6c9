// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/samber/oops"
)

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Addr returns host:port.
func (c SMTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier delivers messages through an SMTP relay with PLAIN auth.
type SMTPNotifier struct {
	cfg      SMTPConfig
	auth     smtp.Auth
	sendMail sendMailFunc
	now      func() time.Time
}

// NewSMTPNotifier creates an SMTPNotifier.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").With("port", cfg.Port).Errorf("smtp port must be positive")
	}
	if cfg.From == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("sender address is required")
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPNotifier{
		cfg:      cfg,
		auth:     auth,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}, nil
}

// Send delivers msg. net/smtp has no context support, so ctx is only
// checked before the dial.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").With("to", msg.To).Wrap(err)
	}

	body := n.compose(msg)
	if err := n.sendMail(n.cfg.Addr(), n.auth, n.cfg.From, []string{msg.To}, body); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("transport", "smtp").
			With("addr", n.cfg.Addr()).
			With("to", msg.To).
			Wrap(err)
	}
	return nil
}

func (n *SMTPNotifier) compose(msg Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", n.now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.Body)
	buf.WriteString("\r\n")
	return buf.Bytes()
}
