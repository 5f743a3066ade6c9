// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/holomush/accounts/internal/auth"
)

// SessionCookieName carries the session token.
const SessionCookieName = "token"

// Production cookies must cross sites to reach a separately hosted
// frontend, which browsers only allow on Secure cookies.
func sessionCookie(value string, maxAge int, production bool) *http.Cookie {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	if production {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}
	return cookie
}

func setSessionCookie(c *gin.Context, result *auth.AuthResult, production bool) {
	maxAge := int(result.Session.ExpiresAt.Sub(result.Session.IssuedAt).Seconds())
	http.SetCookie(c.Writer, sessionCookie(result.Token, maxAge, production))
}

func clearSessionCookie(c *gin.Context, production bool) {
	http.SetCookie(c.Writer, sessionCookie("", -1, production))
}
