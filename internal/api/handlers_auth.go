// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/jobqueue/internal/audit"
	"github.com/tomtom215/jobqueue/internal/auth"
	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/metrics"
	"github.com/tomtom215/jobqueue/internal/validation"
)

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
}

// Login exchanges the admin credentials for a JWT. The token is returned in
// the body and also set as an HttpOnly cookie.
//
// Method: POST
// Path: /api/v1/auth/login
// Body: {"username": "admin", "password": "..."}
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if !h.loginEnabled() {
		rw.NotFound("login is disabled")
		return
	}

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	if !h.admin.Verify(req.Username, req.Password) {
		metrics.AuthFailures.WithLabelValues("login").Inc()
		logging.Ctx(r.Context()).Warn().
			Str("username", req.Username).
			Str("remote_addr", r.RemoteAddr).
			Msg("Failed login attempt")
		h.audit.LogRequest(r, audit.EventTypeLoginFailure, audit.OutcomeFailure,
			audit.Actor{Name: req.Username, AuthMethod: "password"}, "", "invalid username or password", nil)
		rw.Unauthorized("invalid username or password")
		return
	}

	token, expiresAt, err := h.jwtManager.GenerateToken(h.admin.Username(), auth.RoleAdmin)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to generate token")
		rw.InternalError("failed to issue token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.config.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})

	logging.Ctx(r.Context()).Info().Str("username", h.admin.Username()).Msg("Admin logged in")
	h.audit.LogRequest(r, audit.EventTypeLoginSuccess, audit.OutcomeSuccess,
		audit.Actor{Name: h.admin.Username(), Role: auth.RoleAdmin, AuthMethod: "password"}, "", "", nil)
	rw.Success(&LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Username:  h.admin.Username(),
		Role:      auth.RoleAdmin,
	})
}

// Logout clears the session cookie.
//
// Method: POST
// Path: /api/v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.audit.LogRequest(r, audit.EventTypeLogout, audit.OutcomeSuccess, h.actor(r), "", "", nil)
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
	NewResponseWriter(w, r).Success(map[string]bool{"logged_out": true})
}
