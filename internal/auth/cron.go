// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/tomtom215/jobqueue/internal/models"
)

// CronAuthenticator recognizes external schedulers calling the run trigger.
type CronAuthenticator struct {
	secret     []byte
	userAgents []string
}

// NewCronAuthenticator creates an authenticator. An empty secret disables
// bearer authentication; empty user agent entries are ignored.
func NewCronAuthenticator(secret string, userAgents []string) *CronAuthenticator {
	a := &CronAuthenticator{}
	if secret != "" {
		a.secret = []byte(secret)
	}
	for _, ua := range userAgents {
		if ua = strings.ToLower(strings.TrimSpace(ua)); ua != "" {
			a.userAgents = append(a.userAgents, ua)
		}
	}
	return a
}

// Authenticate returns the worker run source that identifies the caller.
func (a *CronAuthenticator) Authenticate(r *http.Request) (models.WorkerRunSource, error) {
	if token, ok := bearerToken(r); ok {
		if a.secret != nil && subtle.ConstantTimeCompare([]byte(token), a.secret) == 1 {
			return models.WorkerRunSourceCronSecret, nil
		}
		return "", ErrInvalidCredentials
	}

	ua := strings.ToLower(r.UserAgent())
	for _, prefix := range a.userAgents {
		if strings.HasPrefix(ua, prefix) {
			return models.WorkerRunSourceCronUserAgent, nil
		}
	}
	return "", ErrNoCredentials
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
