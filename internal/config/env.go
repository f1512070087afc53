package config

import (
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration.
// All env vars use the FOODCOURT_ prefix for namespace isolation.
func (c *Config) applyEnvOverrides() {
	// Server
	setIfEnv(&c.Server.Address, "FOODCOURT_SERVER_ADDRESS")
	setIfEnv(&c.Server.PublicBaseURL, "FOODCOURT_PUBLIC_BASE_URL")
	setIfEnv(&c.Server.AdminAPIKey, "FOODCOURT_ADMIN_API_KEY")
	if v := os.Getenv("FOODCOURT_CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.CORSAllowedOrigins = splitAndTrim(v)
	}

	// Logging
	setIfEnv(&c.Logging.Level, "FOODCOURT_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "FOODCOURT_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "FOODCOURT_ENVIRONMENT")

	// Database
	setIfEnv(&c.Database.Backend, "FOODCOURT_DB_BACKEND")
	setIfEnv(&c.Database.Host, "FOODCOURT_DB_HOST")
	setIntIfEnv(&c.Database.Port, "FOODCOURT_DB_PORT")
	setIfEnv(&c.Database.User, "FOODCOURT_DB_USER")
	setIfEnv(&c.Database.Password, "FOODCOURT_DB_PASSWORD")
	setIfEnv(&c.Database.Name, "FOODCOURT_DB_NAME")
	setIfEnv(&c.Database.SSLMode, "FOODCOURT_DB_SSLMODE")
	setIntIfEnv(&c.Database.Pool.MaxOpenConns, "FOODCOURT_DB_MAX_OPEN_CONNS")
	setIntIfEnv(&c.Database.Pool.MaxIdleConns, "FOODCOURT_DB_MAX_IDLE_CONNS")
	setDurationIfEnv(&c.Database.Pool.ConnMaxLifetime, "FOODCOURT_DB_CONN_MAX_LIFETIME")

	// Audit archive
	setIfEnv(&c.Audit.MongoURI, "FOODCOURT_AUDIT_MONGO_URI")
	setIfEnv(&c.Audit.MongoDatabase, "FOODCOURT_AUDIT_MONGO_DATABASE")

	// Rails
	setIfEnv(&c.Rails.SCB.APIKey, "FOODCOURT_SCB_API_KEY")
	setIfEnv(&c.Rails.SCB.APISecret, "FOODCOURT_SCB_API_SECRET")
	setIfEnv(&c.Rails.SCB.BillerID, "FOODCOURT_SCB_BILLER_ID")
	setIfEnv(&c.Rails.SCB.CallbackURL, "FOODCOURT_SCB_CALLBACK_URL")
	setIfEnv(&c.Rails.KBank.CustomerID, "FOODCOURT_KBANK_CUSTOMER_ID")
	setIfEnv(&c.Rails.KBank.ConsumerSecret, "FOODCOURT_KBANK_CONSUMER_SECRET")
	setIfEnv(&c.Rails.Omise.PublicKey, "FOODCOURT_OMISE_PUBLIC_KEY")
	setIfEnv(&c.Rails.Omise.SecretKey, "FOODCOURT_OMISE_SECRET_KEY")
	setIfEnv(&c.Rails.Stripe.SecretKey, "FOODCOURT_STRIPE_SECRET_KEY")
	setIfEnv(&c.Rails.Stripe.WebhookSecret, "FOODCOURT_STRIPE_WEBHOOK_SECRET")

	// Crypto
	setBoolIfEnv(&c.Crypto.Enabled, "FOODCOURT_CRYPTO_ENABLED")
	setIfEnv(&c.Crypto.RPCURL, "FOODCOURT_CRYPTO_RPC_URL")

	// Notify
	setIfEnv(&c.Notify.SigningSecret, "FOODCOURT_NOTIFY_SIGNING_SECRET")
	setIfEnv(&c.Notify.OpsURL, "FOODCOURT_NOTIFY_OPS_URL")
	setDurationIfEnv(&c.Notify.PollInterval, "FOODCOURT_NOTIFY_POLL_INTERVAL")
	setDurationIfEnv(&c.Notify.Timeout, "FOODCOURT_NOTIFY_TIMEOUT")
	setIntIfEnv(&c.Notify.MaxAttempts, "FOODCOURT_NOTIFY_MAX_ATTEMPTS")

	// Scheduler
	setIfEnv(&c.Scheduler.Timezone, "FOODCOURT_TIMEZONE")
	setBoolIfEnv(&c.Scheduler.BalanceResetEnabled, "FOODCOURT_BALANCE_RESET_ENABLED")
	setIntIfEnv(&c.Scheduler.ResetHour, "FOODCOURT_RESET_HOUR")
	setIntIfEnv(&c.Scheduler.SettlementHour, "FOODCOURT_SETTLEMENT_HOUR")
	setDurationIfEnv(&c.Scheduler.CryptoPollInterval, "FOODCOURT_CRYPTO_POLL_INTERVAL")

	// Monitoring
	setIfEnv(&c.Monitoring.AlertURL, "FOODCOURT_MONITORING_ALERT_URL")
	setDurationIfEnv(&c.Monitoring.CheckInterval, "FOODCOURT_MONITORING_CHECK_INTERVAL")
	setDurationIfEnv(&c.Monitoring.OverdueAfter, "FOODCOURT_MONITORING_OVERDUE_AFTER")
	setDurationIfEnv(&c.Monitoring.Timeout, "FOODCOURT_MONITORING_TIMEOUT")
	c.Monitoring.Headers = mergeHeaderEnv(c.Monitoring.Headers, "FOODCOURT_MONITORING_HEADER_")

	// Rate limit
	setBoolIfEnv(&c.RateLimit.Enabled, "FOODCOURT_RATE_LIMIT_ENABLED")
	setIntIfEnv(&c.RateLimit.Limit, "FOODCOURT_RATE_LIMIT")
	setDurationIfEnv(&c.RateLimit.Window, "FOODCOURT_RATE_LIMIT_WINDOW")
	if v := os.Getenv("FOODCOURT_RATE_LIMIT_SKIP_PREFIXES"); v != "" {
		c.RateLimit.SkipPrefixes = splitAndTrim(v)
	}

	// Circuit breaker
	setBoolIfEnv(&c.CircuitBreaker.Enabled, "FOODCOURT_CIRCUIT_BREAKER_ENABLED")
}

// setIfEnv sets a string pointer to the environment variable value if it exists.
func setIfEnv(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

// setBoolIfEnv sets a boolean pointer from an environment variable.
// Accepts "1", "true", "TRUE", "True" as true values.
func setBoolIfEnv(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

// setIntIfEnv sets an int pointer from an environment variable.
func setIntIfEnv(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

// setDurationIfEnv sets a Duration pointer from an environment variable.
// Uses time.ParseDuration to parse values like "5m", "120s", "1h30m".
func setDurationIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			*target = Duration{Duration: dur}
		}
	}
}

// splitAndTrim parses a comma-separated env value into a clean slice.
func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// mergeHeaderEnv collects PREFIX_* env vars into an HTTP header map, e.g.
// FOODCOURT_MONITORING_HEADER_X_API_KEY=abc -> "X-Api-Key: abc".
func mergeHeaderEnv(into map[string]string, prefix string) map[string]string {
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimPrefix(parts[0], prefix)
		if name == "" {
			continue
		}
		if into == nil {
			into = make(map[string]string)
		}
		headerName := textproto.CanonicalMIMEHeaderKey(strings.ReplaceAll(name, "_", "-"))
		into[headerName] = parts[1]
	}
	return into
}
