// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Classifier policies. See core.Policy for the row rules each one applies.
const (
	PolicyStrictPassFail = "strict-pass-fail"
	PolicyActiveInactive = "active-inactive"
)

// Re-run modes for a session's results table.
const (
	RerunReset  = "reset"
	RerunAppend = "append"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Upload     UploadConfig
	Classifier ClassifierConfig
	Session    SessionConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Logging    LoggingConfig
	Metrics    MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds the optional run-history database settings.
// When URL is empty, run history is not recorded.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (optional)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether run history should be recorded.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// UploadConfig holds CSV upload processing settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed size of one uploaded file in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// MaxFiles is the maximum number of files in one run (default: 20)
	MaxFiles int `env:"UPLOAD_MAX_FILES" default:"20"`

	// MaxConcurrent is the maximum number of runs processed in parallel (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long a run waits for a processing slot (default: 15s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"15s"`

	// ParseWorkers is the number of files parsed in parallel within one run (default: 4)
	ParseWorkers int `env:"UPLOAD_PARSE_WORKERS" default:"4"`

	// Timeout is the maximum duration for a single run (default: 40s).
	// Together with MaxWaitTime it must stay below SERVER_REQUEST_TIMEOUT
	// and SERVER_WRITE_TIMEOUT.
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"40s"`
}

// ClassifierConfig selects the row classification rules.
type ClassifierConfig struct {
	// Policy is strict-pass-fail or active-inactive (default: strict-pass-fail)
	Policy string `env:"CLASSIFIER_POLICY" default:"strict-pass-fail"`

	// RerunMode is reset or append (default: reset)
	RerunMode string `env:"RERUN_MODE" default:"reset"`
}

// SessionConfig holds in-memory session settings.
type SessionConfig struct {
	// TTL is how long an idle session is kept (default: 30m)
	TTL time.Duration `env:"SESSION_TTL" default:"30m"`

	// JanitorInterval is how often idle sessions are evicted (default: 1m)
	JanitorInterval time.Duration `env:"SESSION_JANITOR_INTERVAL" default:"1m"`

	// CookieSecure sets the Secure flag on the session cookie (default: false)
	CookieSecure bool `env:"SESSION_COOKIE_SECURE" default:"false"`
}

// RateLimitConfig holds rate limiting settings per client IP.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// Burst is the number of requests allowed above the steady rate (default: 20)
	Burst int `env:"RATE_LIMIT_BURST" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects the /api routes with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	// Enabled mounts the metrics endpoint (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`

	// Path is the metrics endpoint path (default: /metrics)
	Path string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
