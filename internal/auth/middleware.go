// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package auth

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/jobqueue/internal/logging"
	"github.com/tomtom215/jobqueue/internal/metrics"
)

// TokenCookieName is the cookie the login endpoint sets.
const TokenCookieName = "token"

// Middleware provides authentication middleware for admin routes
type Middleware struct {
	jwtManager *JWTManager
	authMode   AuthMode
}

// NewMiddleware creates a new authentication middleware.
// jwtManager may be nil only when authMode is none.
func NewMiddleware(jwtManager *JWTManager, authMode AuthMode) (*Middleware, error) {
	if authMode == AuthModeJWT && jwtManager == nil {
		return nil, fmt.Errorf("jwt auth mode requires a JWT manager")
	}
	return &Middleware{
		jwtManager: jwtManager,
		authMode:   authMode,
	}, nil
}

// AuthMode returns the configured mode.
func (m *Middleware) AuthMode() AuthMode {
	return m.authMode
}

// Authenticate is middleware that enforces authentication
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.authMode == AuthModeNone {
			claims := &Claims{Username: "anonymous", Role: RoleAdmin}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
			return
		}

		token, err := extractJWTToken(r)
		if err != nil {
			metrics.AuthFailures.WithLabelValues("admin").Inc()
			WriteUnauthorized(w, err.Error())
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			metrics.AuthFailures.WithLabelValues("admin").Inc()
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Token validation failed")
			WriteUnauthorized(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// extractJWTToken extracts JWT token from Authorization header or cookie
func extractJWTToken(r *http.Request) (string, error) {
	if r.Header.Get("Authorization") == "" {
		cookie, err := r.Cookie(TokenCookieName)
		if err != nil || cookie.Value == "" {
			return "", fmt.Errorf("missing token")
		}
		return cookie.Value, nil
	}

	token, ok := bearerToken(r)
	if !ok {
		return "", fmt.Errorf("invalid authorization header")
	}
	return token, nil
}

type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// WriteUnauthorized writes a 401 in the API error envelope.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// WriteForbidden writes a 403 in the API error envelope.
func WriteForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, "FORBIDDEN", message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode auth error")
	}
}
