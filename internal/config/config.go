package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cfg.parseFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  Duration{Duration: 15 * time.Second},
			WriteTimeout: Duration{Duration: 15 * time.Second},
			IdleTimeout:  Duration{Duration: 60 * time.Second},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Backend: "memory",
			Host:    "localhost",
			Port:    5432,
			User:    "foodcourt",
			Name:    "foodcourt",
			SSLMode: "disable",
			Pool: PoolConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: Duration{Duration: 5 * time.Minute},
			},
		},
		Crypto: CryptoConfig{
			RPCURL: "https://api.mainnet-beta.solana.com",
		},
		Notify: NotifyConfig{
			PollInterval:    Duration{Duration: 5 * time.Second},
			Timeout:         Duration{Duration: 10 * time.Second},
			MaxAttempts:     5,
			InitialInterval: Duration{Duration: 30 * time.Second},
			MaxInterval:     Duration{Duration: 15 * time.Minute},
			Multiplier:      2.0,
		},
		Scheduler: SchedulerConfig{
			Timezone:           "Asia/Bangkok",
			SettlementHour:     23,
			CryptoPollInterval: Duration{Duration: 5 * time.Minute},
		},
		Monitoring: MonitoringConfig{
			Headers:       make(map[string]string),
			CheckInterval: Duration{Duration: time.Hour},
			OverdueAfter:  Duration{Duration: 24 * time.Hour},
			Timeout:       Duration{Duration: 10 * time.Second},
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Limit:   120,
			Window:  Duration{Duration: time.Minute},
			SkipPrefixes: []string{
				"/admin",
				"/api/signage",
				"/api/payment-callback/stores/",
			},
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled: true,
			Rails: BreakerServiceConfig{
				MaxRequests:         3,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 30 * time.Second},
				ConsecutiveFailures: 5,
				FailureRatio:        0.5,
				MinRequests:         10,
			},
			Solana: BreakerServiceConfig{
				MaxRequests:         3,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 30 * time.Second},
				ConsecutiveFailures: 5,
				FailureRatio:        0.5,
				MinRequests:         10,
			},
			Notify: BreakerServiceConfig{
				MaxRequests:         5,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 60 * time.Second},
				ConsecutiveFailures: 10,
				FailureRatio:        0.7,
				MinRequests:         20,
			},
		},
	}
}

// parseFile reads and unmarshals a YAML configuration file.
func (c *Config) parseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// validate rejects configurations that cannot run.
func (c *Config) validate() error {
	switch c.Database.Backend {
	case "memory":
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "" {
			return fmt.Errorf("config: postgres backend requires host, name and user")
		}
	default:
		return fmt.Errorf("config: unknown database backend %q", c.Database.Backend)
	}

	if c.Scheduler.SettlementHour < 0 || c.Scheduler.SettlementHour > 23 {
		return fmt.Errorf("config: settlement_hour %d out of range", c.Scheduler.SettlementHour)
	}
	if c.Scheduler.ResetHour < 0 || c.Scheduler.ResetHour > 23 {
		return fmt.Errorf("config: reset_hour %d out of range", c.Scheduler.ResetHour)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.Scheduler.Timezone, err)
	}

	if c.RateLimit.Enabled && c.RateLimit.Limit <= 0 {
		return fmt.Errorf("config: rate limit enabled with non-positive limit")
	}
	if c.Crypto.Enabled && c.Crypto.RPCURL == "" {
		return fmt.Errorf("config: crypto watcher enabled without rpc_url")
	}
	return nil
}

// Location resolves the scheduler timezone. validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
