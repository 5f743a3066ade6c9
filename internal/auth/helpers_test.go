// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/authtest"
	"github.com/holomush/accounts/internal/notify"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture wires a Service over in-memory collaborators.
type fixture struct {
	svc    *auth.Service
	otps   *auth.OTPManager
	users  *authtest.UserStore
	outbox *authtest.Outbox
	clock  *fakeClock
	tokens *auth.TokenIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		users:  authtest.NewUserStore(),
		outbox: &authtest.Outbox{},
		clock:  newFakeClock(),
	}
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	var err error
	f.tokens, err = auth.NewTokenIssuer(testSecret, auth.WithTokenClock(f.clock.Now))
	require.NoError(t, err)

	f.otps, err = auth.NewOTPManager(f.users, hasher, f.outbox,
		auth.WithOTPClock(f.clock.Now),
		auth.WithOTPSource(rand.NewChaCha8(seed(1))),
	)
	require.NoError(t, err)

	f.svc, err = auth.NewService(auth.ServiceDeps{
		Users:  f.users,
		Hasher: hasher,
		Tokens: f.tokens,
		OTPs:   f.otps,
		Mailer: f.outbox,
		Clock:  f.clock.Now,
	})
	require.NoError(t, err)
	return f
}

// lastCode returns the OTP in the most recent message to email.
func (f *fixture) lastCode(t *testing.T, email string) string {
	t.Helper()
	msg, ok := f.outbox.Last(email)
	require.True(t, ok, "no message sent to %s", email)
	fields := strings.Fields(msg.Body)
	require.NotEmpty(t, fields)
	return fields[len(fields)-1]
}

func (f *fixture) register(t *testing.T, name, email, password string) *auth.AuthResult {
	t.Helper()
	result, err := f.svc.Register(t.Context(), name, email, password)
	require.NoError(t, err)
	return result
}

func messagesWithSubject(msgs []notify.Message, subject string) []notify.Message {
	var out []notify.Message
	for _, m := range msgs {
		if m.Subject == subject {
			out = append(out, m)
		}
	}
	return out
}
