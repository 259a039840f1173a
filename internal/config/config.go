// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

// Package config loads and validates the jobqueue configuration.
//
// Configuration is layered with Koanf v2 (highest priority wins):
//   - Environment variables (see envTransformFunc for the full list)
//   - Config file (config.yaml, or the path in CONFIG_PATH)
//   - Built-in defaults (defaultConfig)
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Jobs     JobsConfig     `koanf:"jobs"`
	Webhook  WebhookConfig  `koanf:"webhook"`
	Audit    AuditConfig    `koanf:"audit"`
	EventBus EventBusConfig `koanf:"event_bus"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_PORT: listen port (default: 8380)
//   - HTTP_HOST: listen address (default: 0.0.0.0)
//   - HTTP_TIMEOUT: read/write timeout (default: 60s)
//   - SHUTDOWN_TIMEOUT: graceful shutdown budget (default: 10s)
//   - ENVIRONMENT: development or production (default: development)
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// DatabaseConfig selects and tunes the job store backend.
//
// Environment Variables:
//   - DB_DRIVER: duckdb or postgres (default: duckdb)
//   - DUCKDB_PATH: DuckDB file path, ":memory:" for ephemeral (default: /data/jobqueue.duckdb)
//   - DUCKDB_MAX_MEMORY: DuckDB memory limit (default: 512MB)
//   - DUCKDB_THREADS: DuckDB worker threads, 0 = NumCPU
//   - DATABASE_URL: Postgres connection string (required when DB_DRIVER=postgres)
//   - PG_MAX_CONNS, PG_MIN_CONNS, PG_MAX_CONN_LIFETIME, PG_MAX_CONN_IDLE_TIME: pool sizing
type DatabaseConfig struct {
	Driver    string `koanf:"driver"`
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`

	PostgresURL     string        `koanf:"postgres_url"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time"`
}

// Supported database drivers.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

// SecurityConfig holds authentication and HTTP hardening settings.
//
// The cron trigger (/jobs/run) accepts either CRON_SECRET as a bearer token
// or a User-Agent starting with one of CRON_USER_AGENTS. Admin routes use a
// JWT issued by /api/v1/auth/login for ADMIN_USERNAME.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	AdminUsername     string        `koanf:"admin_username"`
	AdminPassword     string        `koanf:"admin_password"`
	CronSecret        string        `koanf:"cron_secret"`
	CronUserAgents    []string      `koanf:"cron_user_agents"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	Casbin            CasbinConfig  `koanf:"casbin"`
}

// CasbinConfig points the RBAC enforcer at external model/policy files.
// Empty paths use the embedded defaults.
type CasbinConfig struct {
	ModelPath  string `koanf:"model_path"`
	PolicyPath string `koanf:"policy_path"`
}

// JobsConfig controls runner passes and the in-process poller.
//
// Environment Variables:
//   - JOBS_DEFAULT_BATCH: jobs claimed per pass when no limit is given (default: 5)
//   - JOBS_MAX_BATCH: per-pass ceiling, never above 10 (default: 10)
//   - JOBS_DEFAULT_MAX_ATTEMPTS: max_attempts for jobs enqueued without one (default: 3)
//   - JOBS_POLL_ENABLED: run passes in-process on a ticker (default: false)
//   - JOBS_POLL_INTERVAL: ticker period (default: 1m)
//   - JOBS_STALE_AFTER: running jobs older than this are returned to pending (default: 15m)
//   - JOBS_REQUIRED_TASK_TYPES: task types that must have a handler at startup
//   - JOBS_WORKER_RUN_RETENTION: age after which worker run records are purged (default: 720h)
type JobsConfig struct {
	DefaultBatchSize   int           `koanf:"default_batch_size"`
	MaxBatchSize       int           `koanf:"max_batch_size"`
	DefaultMaxAttempts int           `koanf:"default_max_attempts"`
	PollEnabled        bool          `koanf:"poll_enabled"`
	PollInterval       time.Duration `koanf:"poll_interval"`
	StaleAfter         time.Duration `koanf:"stale_after"`
	RequiredTaskTypes  []string      `koanf:"required_task_types"`
	WorkerRunRetention time.Duration `koanf:"worker_run_retention"`
}

// HardMaxBatchSize bounds a single runner pass regardless of configuration.
const HardMaxBatchSize = 10

// WebhookConfig tunes the webhook_deliver handler's outbound client.
type WebhookConfig struct {
	Timeout            time.Duration `koanf:"timeout"`
	RequestsPerSecond  float64       `koanf:"requests_per_second"`
	Burst              int           `koanf:"burst"`
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout"`
	BaseBackoff        time.Duration `koanf:"base_backoff"`
	MaxBackoff         time.Duration `koanf:"max_backoff"`
}

// AuditConfig controls the admin action audit trail.
//
// Environment Variables:
//   - AUDIT_ENABLED: record admin actions and login attempts (default: true)
//   - AUDIT_LOG_EVENTS: mirror events to the structured log (default: true)
//   - AUDIT_MAX_EVENTS: events kept in memory for the audit endpoint (default: 10000)
//   - AUDIT_BUFFER_SIZE: async write buffer (default: 1000)
//   - AUDIT_RETENTION: drop in-memory events older than this (default: 720h)
type AuditConfig struct {
	Enabled    bool          `koanf:"enabled"`
	LogEvents  bool          `koanf:"log_events"`
	MaxEvents  int           `koanf:"max_events"`
	BufferSize int           `koanf:"buffer_size"`
	Retention  time.Duration `koanf:"retention"`
}

// EventBusConfig publishes job lifecycle events to NATS.
//
// Environment Variables:
//   - NATS_URL: server URL; empty disables publishing
//   - NATS_SUBJECT_PREFIX: subject root (default: jobqueue)
//   - NATS_MAX_RECONNECTS: reconnect attempts, -1 for unlimited (default: -1)
//   - NATS_RECONNECT_WAIT: delay between reconnects (default: 2s)
type EventBusConfig struct {
	URL           string        `koanf:"url"`
	SubjectPrefix string        `koanf:"subject_prefix"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// Enabled reports whether a NATS URL is configured.
func (c EventBusConfig) Enabled() bool {
	return c.URL != ""
}

// LoggingConfig holds logger settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: include caller (default: false)
//   - LOG_FILE: also write to this rotated file
type LoggingConfig struct {
	Level          string `koanf:"level"`
	Format         string `koanf:"format"`
	Caller         bool   `koanf:"caller"`
	File           string `koanf:"file"`
	FileMaxSizeMB  int    `koanf:"file_max_size_mb"`
	FileMaxBackups int    `koanf:"file_max_backups"`
	FileMaxAgeDays int    `koanf:"file_max_age_days"`
	FileCompress   bool   `koanf:"file_compress"`
}

// Load reads configuration from defaults, an optional config file, and the
// environment, then validates it. See LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
