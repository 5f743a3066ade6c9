// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/pkg/errutil"
)

// Success messages.
const (
	MsgUserCreated       = "User created successfully"
	MsgLoginSuccessful   = "Login successful"
	MsgLoggedOut         = "Logged out"
	MsgOTPSent           = "OTP sent successfully on email"
	MsgAccountVerified   = "Account verified successfully"
	MsgUserAuthenticated = "User is authenticated"
	MsgPasswordReset     = "Password reset successfully"
)

// Fallback messages for unexpected failures.
const (
	MsgRegisterFailed = "Error in server"
	MsgServerError    = "Something went wrong"
)

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	OTP string `json:"otp"`
}

type sendResetOTPRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// Handler serves the /api/users routes.
type Handler struct {
	svc        AuthService
	production bool
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// bind decodes the JSON body into req. A malformed body leaves req zeroed
// so the service reports the missing fields.
func bind[T any](c *gin.Context, req *T) {
	if err := c.ShouldBindJSON(req); err != nil {
		var zero T
		*req = zero
	}
}

// Register creates an account and sets the session cookie.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	bind(c, &req)

	result, err := h.svc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(c, "register", MsgRegisterFailed, err)
		return
	}
	setSessionCookie(c, result, h.production)
	h.ok(c, "register", MsgUserCreated)
}

// Login checks credentials and sets the session cookie.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	bind(c, &req)

	result, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, "login", MsgServerError, err)
		return
	}
	setSessionCookie(c, result, h.production)
	h.ok(c, "login", MsgLoginSuccessful)
}

// Logout always succeeds.
func (h *Handler) Logout(c *gin.Context) {
	if token, err := c.Cookie(SessionCookieName); err == nil {
		h.svc.Logout(c.Request.Context(), token)
	}
	clearSessionCookie(c, h.production)
	h.ok(c, "logout", MsgLoggedOut)
}

// SendVerifyOTP mails a verification code to the session user.
func (h *Handler) SendVerifyOTP(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, messageResponse{Message: MsgUnauthorized})
		return
	}
	if err := h.svc.SendVerifyOTP(c.Request.Context(), session.UserID); err != nil {
		h.fail(c, "send_verify_otp", MsgServerError, err)
		return
	}
	h.ok(c, "send_verify_otp", MsgOTPSent)
}

// VerifyEmail marks the session user verified when the code matches.
func (h *Handler) VerifyEmail(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, messageResponse{Message: MsgUnauthorized})
		return
	}
	var req verifyEmailRequest
	bind(c, &req)

	if err := h.svc.VerifyEmail(c.Request.Context(), session.UserID, req.OTP); err != nil {
		h.fail(c, "verify_email", MsgServerError, err)
		return
	}
	h.ok(c, "verify_email", MsgAccountVerified)
}

// IsAuthenticated reports success; the gate has already checked the session.
func (h *Handler) IsAuthenticated(c *gin.Context) {
	c.JSON(http.StatusOK, messageResponse{Message: MsgUserAuthenticated})
}

// SendResetOTP mails a password reset code.
func (h *Handler) SendResetOTP(c *gin.Context) {
	var req sendResetOTPRequest
	bind(c, &req)

	if err := h.svc.SendResetOTP(c.Request.Context(), req.Email); err != nil {
		h.fail(c, "send_reset_otp", MsgServerError, err)
		return
	}
	h.ok(c, "send_reset_otp", MsgOTPSent)
}

// ResetPassword sets a new password given a valid reset code.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	bind(c, &req)

	if err := h.svc.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		h.fail(c, "reset_password", MsgServerError, err)
		return
	}
	h.ok(c, "reset_password", MsgPasswordReset)
}

func (h *Handler) ok(c *gin.Context, operation, msg string) {
	h.record(operation, observability.OutcomeSuccess)
	c.JSON(http.StatusOK, messageResponse{Message: msg})
}

// fail maps err to a response. Errors with a public message are business
// failures (400); anything else is logged and reported as a 500.
func (h *Handler) fail(c *gin.Context, operation, fallback string, err error) {
	if msg := errutil.PublicMessage(err); msg != "" {
		h.record(operation, observability.OutcomeRejected)
		c.JSON(http.StatusBadRequest, messageResponse{Message: msg})
		return
	}

	h.record(operation, observability.OutcomeError)
	errutil.LogErrorContext(c.Request.Context(), h.logger, "request failed", err, "operation", operation)

	resp := messageResponse{Message: fallback}
	if !h.production {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusInternalServerError, resp)
}

func (h *Handler) record(operation, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordAuthOutcome(operation, outcome)
	}
}
