// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/authtest"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/internal/web"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

type server struct {
	router  *gin.Engine
	users   *authtest.UserStore
	outbox  *authtest.Outbox
	clock   *fakeClock
	metrics *observability.Metrics
	logs    *bytes.Buffer
}

func newServer(t *testing.T, production bool) *server {
	t.Helper()

	s := &server{
		users:   authtest.NewUserStore(),
		outbox:  &authtest.Outbox{},
		clock:   &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
		logs:    &bytes.Buffer{},
	}
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	tokens, err := auth.NewTokenIssuer([]byte("web-test-secret"), auth.WithTokenClock(s.clock.Now))
	require.NoError(t, err)

	otps, err := auth.NewOTPManager(s.users, hasher, s.outbox,
		auth.WithOTPClock(s.clock.Now),
		auth.WithOTPSource(rand.NewChaCha8([32]byte{7})),
	)
	require.NoError(t, err)

	svc, err := auth.NewService(auth.ServiceDeps{
		Users:  s.users,
		Hasher: hasher,
		Tokens: tokens,
		OTPs:   otps,
		Mailer: s.outbox,
		Clock:  s.clock.Now,
	})
	require.NoError(t, err)

	s.router = web.NewRouter(svc, web.RouterConfig{
		Production:  production,
		CORSOrigins: []string{"http://localhost:5173"},
		Logger:      slog.New(slog.NewJSONHandler(s.logs, nil)),
		Metrics:     s.metrics,
	})
	return s
}

// do sends a request; body may be nil, a string (sent raw) or a value
// encoded as JSON.
func do(t *testing.T, h http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type response struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	return resp
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == web.SessionCookieName {
			return c
		}
	}
	t.Fatalf("no %q cookie in response", web.SessionCookieName)
	return nil
}

func (s *server) register(t *testing.T, name, email, password string) *http.Cookie {
	t.Helper()
	rec := do(t, s.router, http.MethodPost, "/api/users/register",
		map[string]string{"name": name, "email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func (s *server) lastCode(t *testing.T, email string) string {
	t.Helper()
	msg, ok := s.outbox.Last(email)
	require.True(t, ok, "no mail for %s", email)
	fields := strings.Fields(msg.Body)
	return fields[len(fields)-1]
}

// stubService returns fixed results for exercising the error mapping.
type stubService struct {
	err     error
	session *auth.Session
}

func (s *stubService) Register(context.Context, string, string, string) (*auth.AuthResult, error) {
	return nil, s.err
}

func (s *stubService) Login(context.Context, string, string) (*auth.AuthResult, error) {
	return nil, s.err
}

func (s *stubService) Logout(context.Context, string) {}

func (s *stubService) SendVerifyOTP(context.Context, ulid.ULID) error { return s.err }

func (s *stubService) VerifyEmail(context.Context, ulid.ULID, string) error { return s.err }

func (s *stubService) SendResetOTP(context.Context, string) error { return s.err }

func (s *stubService) ResetPassword(context.Context, string, string, string) error { return s.err }

func (s *stubService) Authenticate(context.Context, string) (*auth.Session, error) {
	if s.session == nil {
		return nil, s.err
	}
	return s.session, nil
}

func newPreflight(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodOptions, "/api/users/login", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
