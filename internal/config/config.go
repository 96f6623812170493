package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv                    string
	Port                      string
	DatabaseURL               string
	RedisURL                  string
	SessionSecret             string
	SessionTTL                time.Duration
	SessionCookieName         string
	CookieSecure              bool
	CSRFEnabled               bool
	CORSAllowedOrigins        []string
	BodyLimitBytes            int64
	IdempotencyTTL            time.Duration
	CartTTL                   time.Duration
	CartLockTTL               time.Duration
	CartLockRetry             time.Duration
	CartLockWait              time.Duration
	CartStockPolicy           string
	VoucherSource             string
	VoucherTable              string
	CatalogCacheTTL           time.Duration
	// CatalogMissTTL is how long an unknown product id stays cached as missing.
	CatalogMissTTL            time.Duration
	// CatalogBreakerMinRequests and CatalogBreakerOpenFor tune the circuit around catalog lookups.
	CatalogBreakerMinRequests int
	CatalogBreakerOpenFor     time.Duration
	RateLimitPromo            string
	SnapshotEnabled           bool
	SnapshotQueue             string
	SnapshotMaxRetry          int
	WorkerConcurrency         int
	ShutdownTimeout           time.Duration
	Obs                       ObsConfig
}

// ObsConfig groups the logging, metrics, tracing and profiling switches.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	// MetricsBuckets is a CSV of HTTP latency bounds in seconds.
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string
	ReadyTimeout     time.Duration
}

// Env is the raw environment view. Tools that need a single setting use it
// instead of Load so they do not trip over unrelated required keys.
type Env struct {
	k *koanf.Koanf
}

// LoadEnv reads optional .env files and the process environment.
func LoadEnv() (Env, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return Env{}, fmt.Errorf("load env: %w", err)
	}
	return Env{k: k}, nil
}

// String returns the trimmed value for key, or fallback when it is blank.
func (e Env) String(key, fallback string) string {
	if e.k == nil {
		return fallback
	}
	return valueOrDefault(strings.TrimSpace(e.k.String(key)), fallback)
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	e, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	k := e.k

	cfg := &Config{
		AppEnv:                    valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                      valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:               k.String("DATABASE_URL"),
		RedisURL:                  k.String("REDIS_URL"),
		SessionSecret:             k.String("SESSION_SECRET"),
		SessionTTL:                parseDuration(k.String("SESSION_TTL"), "720h"),
		SessionCookieName:         valueOrDefault(k.String("SESSION_COOKIE_NAME"), "cart_session"),
		CookieSecure:              parseBool(k.String("COOKIE_SECURE")),
		CSRFEnabled:               parseBool(k.String("CSRF_ENABLED")),
		CORSAllowedOrigins:        splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:            parseInt64(k.String("BODY_LIMIT_BYTES"), 1<<20),
		IdempotencyTTL:            parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CartTTL:                   parseDuration(k.String("CART_TTL"), "168h"),
		CartLockTTL:               parseDuration(k.String("CART_LOCK_TTL"), "5s"),
		CartLockRetry:             parseDuration(k.String("CART_LOCK_RETRY"), "25ms"),
		CartLockWait:              parseDuration(k.String("CART_LOCK_WAIT"), "2s"),
		CartStockPolicy:           strings.ToLower(valueOrDefault(k.String("CART_STOCK_POLICY"), "allow")),
		VoucherSource:             strings.ToLower(valueOrDefault(k.String("VOUCHER_SOURCE"), "static")),
		VoucherTable:              strings.TrimSpace(k.String("VOUCHER_TABLE")),
		CatalogCacheTTL:           parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		CatalogMissTTL:            parseDuration(k.String("CATALOG_CACHE_MISS_TTL"), "5s"),
		CatalogBreakerMinRequests: int(parseInt64(k.String("CATALOG_BREAKER_MIN_REQUESTS"), 10)),
		CatalogBreakerOpenFor:     parseDuration(k.String("CATALOG_BREAKER_OPEN_FOR"), "15s"),
		RateLimitPromo:            valueOrDefault(k.String("RATE_LIMIT_PROMO"), "20-M"),
		SnapshotEnabled:           parseBoolDefault(k.String("SNAPSHOT_ENABLED"), true),
		SnapshotQueue:             valueOrDefault(k.String("SNAPSHOT_QUEUE"), "default"),
		SnapshotMaxRetry:          int(parseInt64(k.String("SNAPSHOT_MAX_RETRY"), 5)),
		WorkerConcurrency:         int(parseInt64(k.String("WORKER_CONCURRENCY"), 10)),
		ShutdownTimeout:           parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:   parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS"),
			TracingEnabled:   parseBoolDefault(k.String("OBS_ENABLE_TRACING"), true),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     k.String("OBS_OTLP_ENDPOINT"),
			SamplingRatio:    parseRatio(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
			PprofEnabled:     parseBool(k.String("OBS_ENABLE_PPROF")),
			PprofUser:        k.String("SECURE_PPROF_BASIC_AUTH_USER"),
			PprofPass:        k.String("SECURE_PPROF_BASIC_AUTH_PASS"),
			ReadyTimeout:     parseDuration(k.String("HEALTH_READY_TIMEOUT"), "500ms"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	switch cfg.VoucherSource {
	case "static", "db":
	default:
		return nil, fmt.Errorf("VOUCHER_SOURCE must be static or db, got %q", cfg.VoucherSource)
	}
	switch cfg.CartStockPolicy {
	case "allow", "clamp", "reject":
	default:
		return nil, fmt.Errorf("CART_STOCK_POLICY must be allow, clamp or reject, got %q", cfg.CartStockPolicy)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt64(value string, fallback int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseRatio(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v <= 0 || v > 1 {
		return fallback
	}
	return v
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
