package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Database       DatabaseConfig       `yaml:"database"`
	Audit          AuditConfig          `yaml:"audit"`
	Rails          RailsConfig          `yaml:"rails"`
	Crypto         CryptoConfig         `yaml:"crypto"`
	Notify         NotifyConfig         `yaml:"notify"`
	Scheduler      SchedulerConfig      `yaml:"scheduler"`
	Monitoring     MonitoringConfig     `yaml:"monitoring"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	ReadTimeout        Duration `yaml:"read_timeout"`
	WriteTimeout       Duration `yaml:"write_timeout"`
	IdleTimeout        Duration `yaml:"idle_timeout"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	// PublicBaseURL is the externally reachable base for webhook
	// registration links handed to the banks.
	PublicBaseURL string `yaml:"public_base_url"`
	// AdminAPIKey guards /admin and /metrics. Empty disables the guard;
	// never run production that way.
	AdminAPIKey string `yaml:"admin_api_key"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error (default: info)
	Format      string `yaml:"format"`      // json, console (default: json)
	Environment string `yaml:"environment"` // production, staging, development
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Backend  string `yaml:"backend"` // "postgres" or "memory"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`

	Pool PoolConfig `yaml:"pool"`
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxOpenConns    int      `yaml:"max_open_conns"`    // default: 25
	MaxIdleConns    int      `yaml:"max_idle_conns"`    // default: 5
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"` // default: 5m
}

// AuditConfig holds the optional Mongo archive of raw webhook payloads.
type AuditConfig struct {
	MongoURI      string `yaml:"mongo_uri"` // empty disables the archive
	MongoDatabase string `yaml:"mongo_database"`
}

// RailsConfig holds hub-level rail credentials. These are the fallback
// when a merchant has no banking profile of its own, and carry the
// webhook verification secrets which are per-hub, not per-merchant.
type RailsConfig struct {
	SCB    SCBConfig    `yaml:"scb"`
	KBank  KBankConfig  `yaml:"kbank"`
	Omise  OmiseConfig  `yaml:"omise"`
	Stripe StripeConfig `yaml:"stripe"`
}

// SCBConfig holds SCB Easy API credentials.
type SCBConfig struct {
	APIKey      string `yaml:"api_key"`
	APISecret   string `yaml:"api_secret"`
	BillerID    string `yaml:"biller_id"`
	CallbackURL string `yaml:"callback_url"`
}

// KBankConfig holds K Bank open API credentials.
type KBankConfig struct {
	CustomerID     string `yaml:"customer_id"`
	ConsumerSecret string `yaml:"consumer_secret"`
}

// OmiseConfig holds Omise API keys.
type OmiseConfig struct {
	PublicKey string `yaml:"public_key"`
	SecretKey string `yaml:"secret_key"`
}

// StripeConfig holds Stripe keys.
type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// CryptoConfig holds the on-chain confirmation settings.
type CryptoConfig struct {
	Enabled bool   `yaml:"enabled"`
	RPCURL  string `yaml:"rpc_url"`
}

// NotifyConfig shapes merchant notification delivery.
type NotifyConfig struct {
	// SigningSecret keys the HMAC on outbound notifications. Empty
	// delivers unsigned.
	SigningSecret string `yaml:"signing_secret"`
	// OpsURL receives operational summaries (balance resets).
	OpsURL          string   `yaml:"ops_url"`
	PollInterval    Duration `yaml:"poll_interval"`    // default: 5s
	Timeout         Duration `yaml:"timeout"`          // default: 10s
	MaxAttempts     int      `yaml:"max_attempts"`     // default: 5
	InitialInterval Duration `yaml:"initial_interval"` // default: 30s
	MaxInterval     Duration `yaml:"max_interval"`     // default: 15m
	Multiplier      float64  `yaml:"multiplier"`       // default: 2.0
}

// SchedulerConfig binds the recurring jobs to wall-clock times in the
// hub's timezone.
type SchedulerConfig struct {
	Timezone string `yaml:"timezone"` // default: Asia/Bangkok

	// BalanceResetEnabled sweeps unspent tokens at ResetHour. Food courts
	// that sell multi-day cards leave this off.
	BalanceResetEnabled bool `yaml:"balance_reset_enabled"`
	ResetHour           int  `yaml:"reset_hour"`   // default: 0
	ResetMinute         int  `yaml:"reset_minute"` // default: 0

	SettlementHour   int `yaml:"settlement_hour"`   // default: 23
	SettlementMinute int `yaml:"settlement_minute"` // default: 0

	CryptoPollInterval Duration `yaml:"crypto_poll_interval"` // default: 5m
}

// MonitoringConfig holds the custody watchdog settings.
type MonitoringConfig struct {
	AlertURL      string            `yaml:"alert_url"` // Discord/Slack compatible; empty disables
	Headers       map[string]string `yaml:"headers"`
	BodyTemplate  string            `yaml:"body_template"`
	CheckInterval Duration          `yaml:"check_interval"` // default: 1h
	OverdueAfter  Duration          `yaml:"overdue_after"`  // default: 24h
	Timeout       Duration          `yaml:"timeout"`        // default: 10s
}

// RateLimitConfig holds the per-IP limiter settings.
type RateLimitConfig struct {
	Enabled bool     `yaml:"enabled"`
	Limit   int      `yaml:"limit"`  // requests per window
	Window  Duration `yaml:"window"` // default: 1m
	// SkipPrefixes bypass the limiter entirely: admin surfaces, signage
	// polling, and bank callback endpoints must never be throttled.
	SkipPrefixes []string `yaml:"skip_prefixes"`
}

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	Enabled bool                 `yaml:"enabled"`
	Rails   BreakerServiceConfig `yaml:"rails"`
	Solana  BreakerServiceConfig `yaml:"solana"`
	Notify  BreakerServiceConfig `yaml:"notify"`
}

// BreakerServiceConfig configures one breaker.
type BreakerServiceConfig struct {
	MaxRequests         uint32   `yaml:"max_requests"`
	Interval            Duration `yaml:"interval"`
	Timeout             Duration `yaml:"timeout"`
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"`
	FailureRatio        float64  `yaml:"failure_ratio"`
	MinRequests         uint32   `yaml:"min_requests"`
}
