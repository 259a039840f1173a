// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateJobs(); err != nil {
		return err
	}

	if err := c.validateWebhook(); err != nil {
		return err
	}

	if err := c.validateAudit(); err != nil {
		return err
	}

	if err := c.validateEventBus(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

// validateDatabase validates the selected store backend
func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverDuckDB:
		if c.Database.Path == "" {
			return fmt.Errorf("DUCKDB_PATH is required when DB_DRIVER is duckdb")
		}
		if c.Database.Threads < 0 {
			return fmt.Errorf("DUCKDB_THREADS must be 0 (auto) or positive")
		}
		return nil
	case DriverPostgres:
		return c.validatePostgres()
	default:
		return fmt.Errorf("DB_DRIVER must be one of: duckdb, postgres")
	}
}

func (c *Config) validatePostgres() error {
	if c.Database.PostgresURL == "" {
		return fmt.Errorf("DATABASE_URL is required when DB_DRIVER is postgres")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("PG_MAX_CONNS must be at least 1")
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("PG_MIN_CONNS must be between 0 and PG_MAX_CONNS")
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	if err := c.validateAuthMode(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateRateLimits(); err != nil {
		return err
	}

	if err := c.validateCronSecret(); err != nil {
		return err
	}

	if c.Security.AuthMode == "jwt" {
		return c.validateJWTAuth()
	}
	return nil
}

// validAuthModes defines the allowed authentication modes for admin routes
var validAuthModes = map[string]bool{
	"none": true,
	"jwt":  true,
}

// validateAuthMode checks if auth mode is valid for the environment
func (c *Config) validateAuthMode() error {
	if !validAuthModes[c.Security.AuthMode] {
		return fmt.Errorf("AUTH_MODE must be one of: none, jwt")
	}
	if c.Security.AuthMode == "none" && c.IsProduction() {
		return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// validateCORS rejects wildcard origins in production when auth is enabled.
func (c *Config) validateCORS() error {
	if c.Security.AuthMode != "none" && c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production with authentication enabled. " +
			"Set specific origins: CORS_ORIGINS=https://admin.example.org")
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// Rate limit bounds
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// minCronSecretLength keeps the shared secret out of brute-force range.
const minCronSecretLength = 16

// validateCronSecret validates the shared secret for the cron trigger.
// An empty secret disables bearer authentication on /jobs/run.
func (c *Config) validateCronSecret() error {
	secret := c.Security.CronSecret
	if secret == "" {
		return nil
	}
	if len(secret) < minCronSecretLength {
		return fmt.Errorf("CRON_SECRET must be at least %d characters", minCronSecretLength)
	}
	if containsPlaceholder(secret) {
		return fmt.Errorf("CRON_SECRET contains a placeholder value - generate one with: openssl rand -hex 32")
	}
	return nil
}

// validateJWTAuth validates JWT secret and admin credentials
func (c *Config) validateJWTAuth() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_MODE is jwt")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for security")
	}
	if containsPlaceholder(c.Security.JWTSecret) {
		return fmt.Errorf("JWT_SECRET contains a placeholder value - generate a secure secret with: openssl rand -base64 32")
	}
	if c.Security.AdminUsername == "" {
		return fmt.Errorf("ADMIN_USERNAME is required when AUTH_MODE is jwt")
	}
	if len(c.Security.AdminPassword) < 12 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 12 characters when AUTH_MODE is jwt")
	}
	if containsPlaceholder(c.Security.AdminPassword) {
		return fmt.Errorf("ADMIN_PASSWORD contains a placeholder value - set a secure password")
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	return nil
}

// validateJobs validates runner and poller settings
func (c *Config) validateJobs() error {
	j := c.Jobs
	if j.MaxBatchSize < 1 || j.MaxBatchSize > HardMaxBatchSize {
		return fmt.Errorf("JOBS_MAX_BATCH must be between 1 and %d", HardMaxBatchSize)
	}
	if j.DefaultBatchSize < 1 || j.DefaultBatchSize > j.MaxBatchSize {
		return fmt.Errorf("JOBS_DEFAULT_BATCH must be between 1 and JOBS_MAX_BATCH (%d)", j.MaxBatchSize)
	}
	if j.DefaultMaxAttempts < 1 {
		return fmt.Errorf("JOBS_DEFAULT_MAX_ATTEMPTS must be at least 1")
	}
	if j.PollEnabled && j.PollInterval < time.Second {
		return fmt.Errorf("JOBS_POLL_INTERVAL must be at least 1s when JOBS_POLL_ENABLED=true")
	}
	if j.StaleAfter < 0 {
		return fmt.Errorf("JOBS_STALE_AFTER must not be negative")
	}
	return nil
}

// validateWebhook validates the outbound webhook client settings
func (c *Config) validateWebhook() error {
	w := c.Webhook
	if w.Timeout <= 0 {
		return fmt.Errorf("WEBHOOK_TIMEOUT must be positive")
	}
	if w.RequestsPerSecond <= 0 {
		return fmt.Errorf("WEBHOOK_REQUESTS_PER_SECOND must be positive")
	}
	if w.Burst < 1 {
		return fmt.Errorf("WEBHOOK_BURST must be at least 1")
	}
	if w.BaseBackoff <= 0 || w.MaxBackoff < w.BaseBackoff {
		return fmt.Errorf("WEBHOOK_BASE_BACKOFF must be positive and not exceed WEBHOOK_MAX_BACKOFF")
	}
	return nil
}

// validateAudit validates the audit trail settings
func (c *Config) validateAudit() error {
	a := c.Audit
	if !a.Enabled {
		return nil
	}
	if a.MaxEvents < 1 {
		return fmt.Errorf("AUDIT_MAX_EVENTS must be at least 1")
	}
	if a.BufferSize < 1 {
		return fmt.Errorf("AUDIT_BUFFER_SIZE must be at least 1")
	}
	if a.Retention < 0 {
		return fmt.Errorf("AUDIT_RETENTION must not be negative")
	}
	return nil
}

// subjectTokenPattern matches one NATS subject token without wildcards.
var subjectTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// validateEventBus validates the NATS publisher settings
func (c *Config) validateEventBus() error {
	b := c.EventBus
	if !b.Enabled() {
		return nil
	}
	if !strings.HasPrefix(b.URL, "nats://") && !strings.HasPrefix(b.URL, "tls://") {
		return fmt.Errorf("NATS_URL must start with nats:// or tls://")
	}
	for _, token := range strings.Split(b.SubjectPrefix, ".") {
		if !subjectTokenPattern.MatchString(token) {
			return fmt.Errorf("NATS_SUBJECT_PREFIX must be dot-separated tokens of letters, digits, '_' or '-'")
		}
	}
	if b.ReconnectWait <= 0 {
		return fmt.Errorf("NATS_RECONNECT_WAIT must be positive")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates the logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns indicate a value copied from an example file.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"YOUR_PASSWORD",
	"PLACEHOLDER",
	"EXAMPLE",
}

func containsPlaceholder(value string) bool {
	upper := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}
