// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/jobqueue/config.yaml",
	"/etc/jobqueue/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8380,
			Host:            "0.0.0.0",
			Timeout:         60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Database: DatabaseConfig{
			Driver:          DriverDuckDB,
			Path:            "/data/jobqueue.duckdb",
			MaxMemory:       "512MB",
			Threads:         0,
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
		Security: SecurityConfig{
			AuthMode:          "jwt",
			SessionTimeout:    12 * time.Hour,
			CronUserAgents:    []string{"vercel-cron"},
			RateLimitReqs:     60,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Jobs: JobsConfig{
			DefaultBatchSize:   5,
			MaxBatchSize:       HardMaxBatchSize,
			DefaultMaxAttempts: 3,
			PollEnabled:        false,
			PollInterval:       time.Minute,
			StaleAfter:         15 * time.Minute,
			WorkerRunRetention: 30 * 24 * time.Hour,
		},
		Webhook: WebhookConfig{
			Timeout:            10 * time.Second,
			RequestsPerSecond:  5,
			Burst:              5,
			BreakerMaxFailures: 5,
			BreakerOpenTimeout: 30 * time.Second,
			BaseBackoff:        30 * time.Second,
			MaxBackoff:         30 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			LogEvents:  true,
			MaxEvents:  10000,
			BufferSize: 1000,
			Retention:  30 * 24 * time.Hour,
		},
		EventBus: EventBusConfig{
			SubjectPrefix: "jobqueue",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "json",
			FileMaxSizeMB:  100,
			FileMaxBackups: 5,
			FileMaxAgeDays: 28,
			FileCompress:   true,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config File: optional YAML config file
//  3. Environment Variables: override any mapped setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "" if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.cron_user_agents",
	"jobs.required_task_types",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	// Database
	"db_driver":             "database.driver",
	"duckdb_path":           "database.path",
	"duckdb_max_memory":     "database.max_memory",
	"duckdb_threads":        "database.threads",
	"database_url":          "database.postgres_url",
	"pg_max_conns":          "database.max_conns",
	"pg_min_conns":          "database.min_conns",
	"pg_max_conn_lifetime":  "database.max_conn_lifetime",
	"pg_max_conn_idle_time": "database.max_conn_idle_time",

	// Security
	"auth_mode":           "security.auth_mode",
	"jwt_secret":          "security.jwt_secret",
	"session_timeout":     "security.session_timeout",
	"admin_username":      "security.admin_username",
	"admin_password":      "security.admin_password",
	"cron_secret":         "security.cron_secret",
	"cron_user_agents":    "security.cron_user_agents",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",
	"casbin_model_path":   "security.casbin.model_path",
	"casbin_policy_path":  "security.casbin.policy_path",

	// Jobs
	"jobs_default_batch":        "jobs.default_batch_size",
	"jobs_max_batch":            "jobs.max_batch_size",
	"jobs_default_max_attempts": "jobs.default_max_attempts",
	"jobs_poll_enabled":         "jobs.poll_enabled",
	"jobs_poll_interval":        "jobs.poll_interval",
	"jobs_stale_after":          "jobs.stale_after",
	"jobs_required_task_types":  "jobs.required_task_types",
	"jobs_worker_run_retention": "jobs.worker_run_retention",

	// Webhook handler
	"webhook_timeout":              "webhook.timeout",
	"webhook_requests_per_second":  "webhook.requests_per_second",
	"webhook_burst":                "webhook.burst",
	"webhook_breaker_max_failures": "webhook.breaker_max_failures",
	"webhook_breaker_open_timeout": "webhook.breaker_open_timeout",
	"webhook_base_backoff":         "webhook.base_backoff",
	"webhook_max_backoff":          "webhook.max_backoff",

	// Audit
	"audit_enabled":     "audit.enabled",
	"audit_log_events":  "audit.log_events",
	"audit_max_events":  "audit.max_events",
	"audit_buffer_size": "audit.buffer_size",
	"audit_retention":   "audit.retention",

	// Event bus
	"nats_url":            "event_bus.url",
	"nats_subject_prefix": "event_bus.subject_prefix",
	"nats_max_reconnects": "event_bus.max_reconnects",
	"nats_reconnect_wait": "event_bus.reconnect_wait",

	// Logging
	"log_level":         "logging.level",
	"log_format":        "logging.format",
	"log_caller":        "logging.caller",
	"log_file":          "logging.file",
	"log_file_max_size": "logging.file_max_size_mb",
	"log_file_backups":  "logging.file_max_backups",
	"log_file_max_age":  "logging.file_max_age_days",
	"log_file_compress": "logging.file_compress",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables return "" so unrelated environment does not leak into config.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DATABASE_URL -> database.postgres_url
//   - JOBS_MAX_BATCH -> jobs.max_batch_size
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
