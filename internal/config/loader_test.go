package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Rate.SendOTP.Max != 3 || cfg.Rate.SendOTP.Interval != time.Minute {
		t.Errorf("expected send-otp limit 3/min, got %+v", cfg.Rate.SendOTP)
	}
	if cfg.Auth.OTPTTL != 5*time.Minute {
		t.Errorf("expected otp ttl 5m, got %v", cfg.Auth.OTPTTL)
	}
	if cfg.Plan.TrialTier != "pro" {
		t.Errorf("expected trial tier pro, got %s", cfg.Plan.TrialTier)
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	path := writeFile(t, "linkshop.yaml", `
server:
  port: "9090"
  base_domain: "linkshop.hk"
rate:
  send_otp:
    max: 5
    interval: 2m
plan:
  trial_tier: starter
`)

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.BaseDomain != "linkshop.hk" {
		t.Errorf("expected base domain linkshop.hk, got %s", cfg.Server.BaseDomain)
	}
	if cfg.Rate.SendOTP.Max != 5 || cfg.Rate.SendOTP.Interval != 2*time.Minute {
		t.Errorf("expected send-otp 5/2m, got %+v", cfg.Rate.SendOTP)
	}
	if cfg.Plan.TrialTier != "starter" {
		t.Errorf("expected trial tier starter, got %s", cfg.Plan.TrialTier)
	}
	// Unchanged fields keep defaults
	if cfg.Rate.Checkout.Max != 10 {
		t.Errorf("expected default checkout max, got %d", cfg.Rate.Checkout.Max)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, "/nonexistent/path.yaml"); err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	path := writeFile(t, "bad.yaml", "server: [")
	cfg := Defaults()
	if err := loadYAML(&cfg, path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverride(t *testing.T) {
	env := map[string]string{
		"LINKSHOP_PORT":            "7070",
		"DATABASE_URL":             "postgres://test:test@db:5432/test",
		"LINKSHOP_PG_MAX_CONNS":    "25",
		"LINKSHOP_LOG_LEVEL":       "warn",
		"LINKSHOP_BREAKER_TIMEOUT": "1m",
		"REDIS_ADDR":               "redis:6379",
		"LINKSHOP_OTEL_ENABLED":    "true",
		"LINKSHOP_PG_MIN_CONNS":    "not-a-number",
	}
	cfg := Defaults()
	loadEnv(&cfg, func(k string) string { return env[k] })

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if cfg.Postgres.MaxConns != 25 {
		t.Errorf("expected max_conns 25, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Postgres.MinConns != 2 {
		t.Errorf("unparsable value should keep default, got %d", cfg.Postgres.MinConns)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Breaker.Timeout != time.Minute {
		t.Errorf("expected breaker timeout 1m, got %v", cfg.Breaker.Timeout)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("expected redis addr, got %s", cfg.Redis.Addr)
	}
	if !cfg.OTEL.Enabled {
		t.Error("expected otel enabled")
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "empty DSN",
			modify: func(c *Config) { c.Postgres.DSN = "" },
			errMsg: "postgres.dsn is required",
		},
		{
			name:   "zero max_conns",
			modify: func(c *Config) { c.Postgres.MaxConns = 0 },
			errMsg: "postgres.max_conns must be >= 1",
		},
		{
			name:   "zero breaker failures",
			modify: func(c *Config) { c.Breaker.MaxFailures = 0 },
			errMsg: "breaker.max_failures must be >= 1",
		},
		{
			name:   "zero send-otp limit",
			modify: func(c *Config) { c.Rate.SendOTP.Max = 0 },
			errMsg: "rate.send_otp needs max >= 1 and a positive interval",
		},
		{
			name:   "unknown trial tier",
			modify: func(c *Config) { c.Plan.TrialTier = "gold" },
			errMsg: `plan.trial_tier "gold" is not a known plan`,
		},
		{
			name:   "http sms without url",
			modify: func(c *Config) { c.SMS.Provider = "http" },
			errMsg: "sms.url is required for the http provider",
		},
		{
			name:   "unknown sms provider",
			modify: func(c *Config) { c.SMS.Provider = "pigeon" },
			errMsg: `sms.provider "pigeon" must be log or http`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.errMsg)
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestLoadFrom_FullHierarchy(t *testing.T) {
	yamlPath := writeFile(t, "cfg.yaml", `
server:
  port: "9090"
logging:
  level: "debug"
  service: "from-yaml"
`)
	envPath := writeFile(t, ".env", "LINKSHOP_LOG_SERVICE=from-dotenv\nLINKSHOP_PORT=6060\n")

	t.Setenv("LINKSHOP_PORT", "7070")

	cfg, err := LoadFrom(yamlPath, envPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("process env should win: got port %q, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Service != "from-dotenv" {
		t.Errorf("dotenv should override YAML: got %q", cfg.Logging.Service)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("YAML should override defaults: got %q", cfg.Logging.Level)
	}
}

func TestLoadFrom_MissingFiles(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/linkshop.yaml", "/nonexistent/.env")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port == "" {
		t.Error("expected defaults")
	}
}

func TestLoadFrom_InvalidConfig(t *testing.T) {
	yamlPath := writeFile(t, "cfg.yaml", "postgres:\n  max_conns: 0\n")
	if _, err := LoadFrom(yamlPath, ""); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestOverridesWin(t *testing.T) {
	t.Setenv("LINKSHOP_PORT", "7070")
	t.Setenv("LINKSHOP_LOG_LEVEL", "warn")

	port := "3333"
	level := "error"
	cfg, err := LoadWithOverrides("", "", Overrides{Port: &port, LogLevel: &level})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "3333" {
		t.Errorf("expected override port 3333 to beat ENV 7070, got %s", cfg.Server.Port)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("expected override level error, got %s", cfg.Logging.Level)
	}
}

func TestApplyOverridesNil(t *testing.T) {
	cfg := Defaults()
	original := cfg
	applyOverrides(&cfg, Overrides{})
	if cfg.Server.Port != original.Server.Port || cfg.Postgres.DSN != original.Postgres.DSN {
		t.Error("nil overrides must change nothing")
	}
}

func TestTrustedProxyPrefixes(t *testing.T) {
	s := Server{TrustedProxies: " 10.0.0.0/8, 192.0.2.10 ,,::1"}
	got, err := s.TrustedProxyPrefixes()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"10.0.0.0/8", "192.0.2.10/32", "::1/128"}
	if len(got) != len(want) {
		t.Fatalf("expected %d prefixes, got %v", len(want), got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("prefix %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	if got, err := (Server{}).TrustedProxyPrefixes(); err != nil || len(got) != 0 {
		t.Errorf("empty list: got %v, %v", got, err)
	}

	cfg := Defaults()
	cfg.Server.TrustedProxies = "10.0.0.0/33"
	if err := validate(&cfg); err == nil {
		t.Error("expected an invalid trusted proxy to fail validation")
	}
}
