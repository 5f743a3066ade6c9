// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/pkg/errutil"
)

const sessionKey = "session"

// MsgUnauthorized is the body of every gate rejection.
const MsgUnauthorized = "Unauthorized"

// RequireSession rejects requests without a valid session cookie and
// exposes the session to handlers.
func RequireSession(svc AuthService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, messageResponse{Message: MsgUnauthorized})
			return
		}

		ctx := c.Request.Context()
		session, err := svc.Authenticate(ctx, token)
		if err != nil {
			if errutil.HasCode(err, "AUTH_REVOCATION_CHECK_FAILED") {
				errutil.LogErrorContext(ctx, logger, "session check failed", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, messageResponse{Message: MsgUnauthorized})
			return
		}

		c.Set(sessionKey, session)
		c.Request = c.Request.WithContext(auth.ContextWithSession(ctx, session))
		c.Next()
	}
}

// SessionFrom returns the session placed by RequireSession. The request
// context is consulted first, then the gin context.
func SessionFrom(c *gin.Context) (*auth.Session, bool) {
	if session, ok := auth.SessionFromContext(c.Request.Context()); ok {
		return session, true
	}
	value, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	session, ok := value.(*auth.Session)
	return session, ok && session != nil
}

// RequestLogger logs one line per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"route", routeOf(c),
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// RequestMetrics records request count and latency.
func RequestMetrics(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveRequest(c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
