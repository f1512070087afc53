package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("address = %q", cfg.Server.Address)
	}
	if cfg.Database.Backend != "memory" {
		t.Errorf("backend = %q", cfg.Database.Backend)
	}
	if cfg.Scheduler.Timezone != "Asia/Bangkok" || cfg.Scheduler.SettlementHour != 23 {
		t.Errorf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.CryptoPollInterval.Duration != 5*time.Minute {
		t.Errorf("crypto poll = %v", cfg.Scheduler.CryptoPollInterval.Duration)
	}
	if len(cfg.RateLimit.SkipPrefixes) == 0 {
		t.Error("default skip prefixes missing")
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9000"
  read_timeout: 5s
database:
  backend: postgres
  host: db.internal
  port: 5433
  user: hub
  password: secret
  name: foodcourt_prod
  ssl_mode: require
scheduler:
  settlement_hour: 22
  balance_reset_enabled: true
rails:
  scb:
    api_key: scb-key
    biller_id: "099400015800000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Address != ":9000" || cfg.Server.ReadTimeout.Duration != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	wantDSN := "host=db.internal port=5433 user=hub password=secret dbname=foodcourt_prod sslmode=require"
	if got := cfg.Database.DSN(); got != wantDSN {
		t.Errorf("dsn = %q", got)
	}
	if !cfg.Scheduler.BalanceResetEnabled || cfg.Scheduler.SettlementHour != 22 {
		t.Errorf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Rails.SCB.APIKey != "scb-key" {
		t.Errorf("scb = %+v", cfg.Rails.SCB)
	}
	// Untouched sections keep their defaults.
	if cfg.Notify.MaxAttempts != 5 {
		t.Errorf("notify = %+v", cfg.Notify)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9000"
`)
	t.Setenv("FOODCOURT_SERVER_ADDRESS", ":7000")
	t.Setenv("FOODCOURT_DB_BACKEND", "postgres")
	t.Setenv("FOODCOURT_DB_HOST", "envhost")
	t.Setenv("FOODCOURT_DB_PORT", "6543")
	t.Setenv("FOODCOURT_KBANK_CUSTOMER_ID", "cust-env")
	t.Setenv("FOODCOURT_RATE_LIMIT_SKIP_PREFIXES", "/admin, /internal")
	t.Setenv("FOODCOURT_MONITORING_HEADER_X_API_KEY", "ops-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Address != ":7000" {
		t.Errorf("address = %q", cfg.Server.Address)
	}
	if cfg.Database.Host != "envhost" || cfg.Database.Port != 6543 {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Rails.KBank.CustomerID != "cust-env" {
		t.Errorf("kbank = %+v", cfg.Rails.KBank)
	}
	if len(cfg.RateLimit.SkipPrefixes) != 2 || cfg.RateLimit.SkipPrefixes[1] != "/internal" {
		t.Errorf("skip prefixes = %v", cfg.RateLimit.SkipPrefixes)
	}
	if cfg.Monitoring.Headers["X-Api-Key"] != "ops-token" {
		t.Errorf("headers = %v", cfg.Monitoring.Headers)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "database:\n  backend: sqlite\n"},
		{"postgres without host", "database:\n  backend: postgres\n  host: \"\"\n"},
		{"settlement hour out of range", "scheduler:\n  settlement_hour: 25\n"},
		{"bad timezone", "scheduler:\n  timezone: Mars/Olympus\n"},
		{"rate limit zero", "rate_limit:\n  enabled: true\n  limit: 0\n"},
		{"crypto without rpc", "crypto:\n  enabled: true\n  rpc_url: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			if _, err := Load(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDurationParsing(t *testing.T) {
	path := writeConfig(t, `
notify:
  poll_interval: 2s
  max_interval: 30
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Notify.PollInterval.Duration != 2*time.Second {
		t.Errorf("poll interval = %v", cfg.Notify.PollInterval.Duration)
	}
	// Bare numbers read as seconds.
	if cfg.Notify.MaxInterval.Duration != 30*time.Second {
		t.Errorf("max interval = %v", cfg.Notify.MaxInterval.Duration)
	}
}
