package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the budget bot.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Lock      LockConfig      `mapstructure:"lock"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Server    ServerConfig    `mapstructure:"server"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Token           string        `mapstructure:"token" validate:"required"`
	Mode            string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout         time.Duration `mapstructure:"timeout"`
	WebhookURL      string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
	DefaultLanguage string        `mapstructure:"default_language" validate:"oneof=ru en"`
	DefaultTimezone float64       `mapstructure:"default_timezone" validate:"gte=-12,lte=14"`
}

// DatabaseConfig selects and configures the record store backend.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver" validate:"oneof=postgres sqlite memory"`
	Host         string `mapstructure:"host" validate:"required_if=Driver postgres"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user" validate:"required_if=Driver postgres"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name" validate:"required_if=Driver postgres"`
	SSLMode      string `mapstructure:"ssl_mode"`
	Path         string `mapstructure:"path" validate:"required_if=Driver sqlite"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// PostgresDSN returns a lib/pq connection string.
func (c DatabaseConfig) PostgresDSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		sslMode,
	)
}

// RedisConfig configures the shared Redis client. An empty Addr disables
// every Redis-backed component.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db" validate:"gte=0"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// LoggerConfig controls slog output.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig controls error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Environment string  `mapstructure:"environment"`
}

// RateLimitRule is a number of requests allowed per window, e.g. 20 per "1m".
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit" validate:"gte=0"`
	Window string `mapstructure:"window"`
}

// RateLimitConfig configures per-user and per-command request limits.
type RateLimitConfig struct {
	Enabled   bool                     `mapstructure:"enabled"`
	Global    RateLimitRule            `mapstructure:"global"`
	PerUser   RateLimitRule            `mapstructure:"per_user"`
	Commands  map[string]RateLimitRule `mapstructure:"commands"`
	Whitelist []int64                  `mapstructure:"whitelist"`
}

// LockConfig bounds the per-user record lock.
type LockConfig struct {
	TTL  time.Duration `mapstructure:"ttl"`
	Wait time.Duration `mapstructure:"wait"`
}

// CacheConfig configures the Redis record cache. A zero TTL disables it.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// ServerConfig configures the HTTP server exposing health and metrics.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address for Port.
func (c ServerConfig) Addr() string {
	return ":" + c.Port
}

// JobsConfig configures background jobs.
type JobsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	StatsCron string `mapstructure:"stats_cron"`
}
