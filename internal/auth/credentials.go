// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the work factor for the admin password hash.
const bcryptCost = 12

// AdminCredentials verifies the configured administrator login.
type AdminCredentials struct {
	username     string
	passwordHash []byte // bcrypt hash of password
}

// NewAdminCredentials hashes password once at startup so logins only pay
// for the comparison.
func NewAdminCredentials(username, password string) (*AdminCredentials, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &AdminCredentials{
		username:     username,
		passwordHash: hash,
	}, nil
}

// Verify reports whether username and password match.
func (c *AdminCredentials) Verify(username, password string) bool {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passwordMatch := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password)) == nil

	// Both comparisons always run
	return usernameMatch && passwordMatch
}

// Username returns the administrator username.
func (c *AdminCredentials) Username() string {
	return c.username
}
