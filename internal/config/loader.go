package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Strob0t/linkshop/internal/domain/plan"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "linkshop.yaml"

// DefaultEnvFile is the dotenv file read when present.
const DefaultEnvFile = ".env"

// Overrides carries command line values. Nil fields leave the loaded value
// untouched; set fields win over every other source.
type Overrides struct {
	Port     *string
	LogLevel *string
	DSN      *string
	NatsURL  *string
}

// Load returns a Config using the hierarchy: defaults < YAML < .env < ENV.
// Both files are optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile, DefaultEnvFile)
}

// LoadFrom returns a Config loaded from the given YAML and dotenv paths.
func LoadFrom(yamlPath, envPath string) (*Config, error) {
	return LoadWithOverrides(yamlPath, envPath, Overrides{})
}

// LoadWithOverrides is LoadFrom followed by the command line overrides.
func LoadWithOverrides(yamlPath, envPath string, o Overrides) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	lookup, err := envLookup(envPath)
	if err != nil {
		return nil, fmt.Errorf("config dotenv: %w", err)
	}
	loadEnv(&cfg, lookup)
	applyOverrides(&cfg, o)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// envLookup returns a lookup that prefers the process environment and falls
// back to values from the dotenv file at path.
func envLookup(path string) (func(string) string, error) {
	fileVals := map[string]string{}
	if path != "" {
		vals, err := godotenv.Read(path)
		switch {
		case err == nil:
			fileVals = vals
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fileVals[key]
	}, nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty values override the current config.
func loadEnv(cfg *Config, get func(string) string) {
	e := envSetter{get: get}

	e.str(&cfg.Server.Port, "LINKSHOP_PORT")
	e.str(&cfg.Server.CORSOrigin, "LINKSHOP_CORS_ORIGIN")
	e.str(&cfg.Server.BaseDomain, "LINKSHOP_BASE_DOMAIN")
	e.duration(&cfg.Server.ShutdownTimeout, "LINKSHOP_SHUTDOWN_TIMEOUT")
	e.duration(&cfg.Server.RequestTimeout, "LINKSHOP_REQUEST_TIMEOUT")
	e.boolean(&cfg.Server.CookieSecure, "LINKSHOP_COOKIE_SECURE")
	e.str(&cfg.Server.TrustedProxies, "LINKSHOP_TRUSTED_PROXIES")

	e.str(&cfg.Postgres.DSN, "DATABASE_URL")
	e.int32(&cfg.Postgres.MaxConns, "LINKSHOP_PG_MAX_CONNS")
	e.int32(&cfg.Postgres.MinConns, "LINKSHOP_PG_MIN_CONNS")
	e.duration(&cfg.Postgres.MaxConnLifetime, "LINKSHOP_PG_MAX_CONN_LIFETIME")
	e.duration(&cfg.Postgres.MaxConnIdleTime, "LINKSHOP_PG_MAX_CONN_IDLE_TIME")
	e.duration(&cfg.Postgres.HealthCheck, "LINKSHOP_PG_HEALTH_CHECK")

	e.str(&cfg.NATS.URL, "NATS_URL")
	e.str(&cfg.NATS.Stream, "LINKSHOP_NATS_STREAM")

	e.str(&cfg.Redis.Addr, "REDIS_ADDR")
	e.str(&cfg.Redis.Password, "REDIS_PASSWORD")
	e.integer(&cfg.Redis.DB, "REDIS_DB")

	e.str(&cfg.Logging.Level, "LINKSHOP_LOG_LEVEL")
	e.str(&cfg.Logging.Service, "LINKSHOP_LOG_SERVICE")
	e.boolean(&cfg.Logging.Async, "LINKSHOP_LOG_ASYNC")

	e.integer(&cfg.Breaker.MaxFailures, "LINKSHOP_BREAKER_MAX_FAILURES")
	e.duration(&cfg.Breaker.Timeout, "LINKSHOP_BREAKER_TIMEOUT")

	e.integer(&cfg.Rate.SendOTP.Max, "LINKSHOP_RATE_SEND_OTP_MAX")
	e.duration(&cfg.Rate.SendOTP.Interval, "LINKSHOP_RATE_SEND_OTP_INTERVAL")
	e.integer(&cfg.Rate.SendOTPPhone.Max, "LINKSHOP_RATE_SEND_OTP_PHONE_MAX")
	e.duration(&cfg.Rate.SendOTPPhone.Interval, "LINKSHOP_RATE_SEND_OTP_PHONE_INTERVAL")
	e.integer(&cfg.Rate.Checkout.Max, "LINKSHOP_RATE_CHECKOUT_MAX")
	e.duration(&cfg.Rate.CleanupInterval, "LINKSHOP_RATE_CLEANUP_INTERVAL")
	e.duration(&cfg.Rate.MaxIdleTime, "LINKSHOP_RATE_MAX_IDLE_TIME")

	e.int64(&cfg.Cache.L1MaxSizeMB, "LINKSHOP_CACHE_L1_SIZE_MB")
	e.str(&cfg.Cache.L2Bucket, "LINKSHOP_CACHE_L2_BUCKET")
	e.duration(&cfg.Cache.L2TTL, "LINKSHOP_CACHE_L2_TTL")
	e.duration(&cfg.Cache.TenantTTL, "LINKSHOP_CACHE_TENANT_TTL")
	e.duration(&cfg.Idempotency.TTL, "LINKSHOP_IDEMPOTENCY_TTL")

	e.str(&cfg.Auth.TokenIssuer, "LINKSHOP_TOKEN_ISSUER")
	e.duration(&cfg.Auth.AccessTokenTTL, "LINKSHOP_ACCESS_TOKEN_TTL")
	e.duration(&cfg.Auth.SessionTTL, "LINKSHOP_SESSION_TTL")
	e.duration(&cfg.Auth.OTPTTL, "LINKSHOP_OTP_TTL")
	e.integer(&cfg.Auth.OTPMaxAttempts, "LINKSHOP_OTP_MAX_ATTEMPTS")

	e.str(&cfg.Plan.TrialTier, "LINKSHOP_TRIAL_TIER")

	e.boolean(&cfg.Recovery.Enabled, "LINKSHOP_RECOVERY_ENABLED")
	e.duration(&cfg.Recovery.IdleAfter, "LINKSHOP_RECOVERY_IDLE_AFTER")
	e.duration(&cfg.Recovery.Interval, "LINKSHOP_RECOVERY_INTERVAL")

	e.str(&cfg.SMS.Provider, "LINKSHOP_SMS_PROVIDER")
	e.str(&cfg.SMS.URL, "LINKSHOP_SMS_URL")
	e.str(&cfg.SMS.Sender, "LINKSHOP_SMS_SENDER")

	e.boolean(&cfg.OTEL.Enabled, "LINKSHOP_OTEL_ENABLED")
	e.str(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	e.str(&cfg.OTEL.ServiceName, "LINKSHOP_OTEL_SERVICE_NAME")
	e.boolean(&cfg.OTEL.Insecure, "LINKSHOP_OTEL_INSECURE")
	e.float64(&cfg.OTEL.SampleRate, "LINKSHOP_OTEL_SAMPLE_RATE")
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.Port != nil {
		cfg.Server.Port = *o.Port
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.DSN != nil {
		cfg.Postgres.DSN = *o.DSN
	}
	if o.NatsURL != nil {
		cfg.NATS.URL = *o.NatsURL
	}
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if _, err := cfg.Server.TrustedProxyPrefixes(); err != nil {
		return fmt.Errorf("server.trusted_proxies: %w", err)
	}
	for name, l := range map[string]Limit{
		"send_otp":       cfg.Rate.SendOTP,
		"send_otp_phone": cfg.Rate.SendOTPPhone,
		"verify_otp":     cfg.Rate.VerifyOTP,
		"order_search":   cfg.Rate.OrderSearch,
		"checkout":       cfg.Rate.Checkout,
	} {
		if l.Max < 1 || l.Interval <= 0 {
			return fmt.Errorf("rate.%s needs max >= 1 and a positive interval", name)
		}
	}
	if cfg.Auth.OTPMaxAttempts < 1 {
		return errors.New("auth.otp_max_attempts must be >= 1")
	}
	if !plan.IsValid(plan.Tier(cfg.Plan.TrialTier)) {
		return fmt.Errorf("plan.trial_tier %q is not a known plan", cfg.Plan.TrialTier)
	}
	switch cfg.SMS.Provider {
	case "log":
	case "http":
		if cfg.SMS.URL == "" {
			return errors.New("sms.url is required for the http provider")
		}
	default:
		return fmt.Errorf("sms.provider %q must be log or http", cfg.SMS.Provider)
	}
	if cfg.Recovery.Enabled && (cfg.Recovery.IdleAfter <= 0 || cfg.Recovery.Interval <= 0) {
		return errors.New("recovery.idle_after and recovery.interval must be positive")
	}
	return nil
}

type envSetter struct {
	get func(string) string
}

func (e envSetter) str(dst *string, key string) {
	if v := e.get(key); v != "" {
		*dst = v
	}
}

func (e envSetter) integer(dst *int, key string) {
	if v := e.get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (e envSetter) int32(dst *int32, key string) {
	if v := e.get(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func (e envSetter) int64(dst *int64, key string) {
	if v := e.get(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func (e envSetter) float64(dst *float64, key string) {
	if v := e.get(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func (e envSetter) boolean(dst *bool, key string) {
	if v := e.get(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func (e envSetter) duration(dst *time.Duration, key string) {
	if v := e.get(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
