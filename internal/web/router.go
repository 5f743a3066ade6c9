// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web exposes the account flows over HTTP with gin.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/propagation"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/observability"
)

// AuthService is the subset of auth.Service the HTTP layer drives.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*auth.AuthResult, error)
	Login(ctx context.Context, email, password string) (*auth.AuthResult, error)
	Logout(ctx context.Context, token string)
	SendVerifyOTP(ctx context.Context, userID ulid.ULID) error
	VerifyEmail(ctx context.Context, userID ulid.ULID, otp string) error
	SendResetOTP(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, otp, newPassword string) error
	Authenticate(ctx context.Context, token string) (*auth.Session, error)
}

var _ AuthService = (*auth.Service)(nil)

// RouterConfig holds the hosting-layer settings.
type RouterConfig struct {
	// Production hardens cookies and hides error detail.
	Production  bool
	CORSOrigins []string
	ServiceName string
	Logger      *slog.Logger
	// Metrics is optional.
	Metrics *observability.Metrics
}

// NewRouter wires routes and middleware.
func NewRouter(svc AuthService, cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "accounts"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	// Upstream traceparent headers carry through to request logs.
	r.Use(otelgin.Middleware(cfg.ServiceName,
		otelgin.WithPropagators(propagation.TraceContext{})))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(RequestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(RequestMetrics(cfg.Metrics))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &Handler{
		svc:        svc,
		production: cfg.Production,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
	gate := RequireSession(svc, cfg.Logger)

	users := r.Group("/api/users")
	{
		users.POST("/register", h.Register)
		users.POST("/login", h.Login)
		users.POST("/logout", h.Logout)
		users.POST("/send-verify-otp", gate, h.SendVerifyOTP)
		users.POST("/verify-email", gate, h.VerifyEmail)
		users.GET("/is-authenticated", gate, h.IsAuthenticated)
		users.POST("/send-reset-otp", h.SendResetOTP)
		users.POST("/reset-password", h.ResetPassword)
	}

	return r
}
