package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
)

// Verification fallback modes.
const (
	FallbackOptimistic  = "optimistic"
	FallbackUnconfirmed = "unconfirmed"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8090"`

	// Commerce backend (orders, payments, cart)
	BackendURL string `env:"BACKEND_URL" envDefault:"http://localhost:5000"`

	// Redis (wizard sessions, deferred actions, submit locks)
	RedisHost           string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort           int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword       string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB             int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize       int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
	SlowCommandThreshMs int    `env:"LOG_SLOW_REDIS_MS" envDefault:"100"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Session tokens issued by the auth service
	JWTSecret string `env:"JWT_SECRET" envDefault:"storefront-dev-secret-change-me"`

	// Checkout lifecycle. A zero DeferredActionTTL keeps pending actions
	// until they are overwritten or resumed.
	WizardTTL         time.Duration `env:"WIZARD_TTL" envDefault:"30m"`
	DeferredActionTTL time.Duration `env:"DEFERRED_ACTION_TTL" envDefault:"24h"`
	SubmitLockTTL     time.Duration `env:"SUBMIT_LOCK_TTL" envDefault:"2m"`

	// Defaults applied to blank address fields when creating an order
	DefaultState   string `env:"ADDRESS_DEFAULT_STATE" envDefault:"N/A"`
	DefaultCountry string `env:"ADDRESS_DEFAULT_COUNTRY" envDefault:"US"`

	// Post-payment verification fallback: optimistic or unconfirmed
	VerifyFallbackMode string `env:"VERIFY_FALLBACK_MODE" envDefault:"optimistic"`

	// Per-call backend timeouts. Zero means no timeout.
	OrderTimeout   time.Duration `env:"ORDER_TIMEOUT" envDefault:"0s"`
	PaymentTimeout time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"0s"`
	VerifyTimeout  time.Duration `env:"VERIFY_TIMEOUT" envDefault:"0s"`

	// Upper bound on each checkout event publish
	EventPublishTimeout time.Duration `env:"EVENT_PUBLISH_TIMEOUT" envDefault:"2s"`

	// HTTP client retries (idempotent methods only)
	BackendMaxRetries int `env:"BACKEND_MAX_RETRIES" envDefault:"2"`

	// Circuit breaker settings for backend calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Rate limit on payment submission, per user
	SubmitRateLimitRPS   float64 `env:"SUBMIT_RATE_LIMIT_RPS" envDefault:"1"`
	SubmitRateLimitBurst int     `env:"SUBMIT_RATE_LIMIT_BURST" envDefault:"3"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if _, err := url.ParseRequestURI(c.BackendURL); err != nil {
		return fmt.Errorf("invalid BACKEND_URL %q: %w", c.BackendURL, err)
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.RedisPort < 1 || c.RedisPort > 65535 {
		return fmt.Errorf("invalid REDIS_PORT: %d", c.RedisPort)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Environment == "production" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.WizardTTL <= 0 {
		return fmt.Errorf("WIZARD_TTL must be positive, got %s", c.WizardTTL)
	}
	if c.DeferredActionTTL < 0 {
		return fmt.Errorf("DEFERRED_ACTION_TTL must not be negative, got %s", c.DeferredActionTTL)
	}
	if c.SubmitLockTTL <= 0 {
		return fmt.Errorf("SUBMIT_LOCK_TTL must be positive, got %s", c.SubmitLockTTL)
	}
	if c.VerifyFallbackMode != FallbackOptimistic && c.VerifyFallbackMode != FallbackUnconfirmed {
		return fmt.Errorf("VERIFY_FALLBACK_MODE must be %q or %q, got %q",
			FallbackOptimistic, FallbackUnconfirmed, c.VerifyFallbackMode)
	}
	for name, d := range map[string]time.Duration{
		"ORDER_TIMEOUT":         c.OrderTimeout,
		"PAYMENT_TIMEOUT":       c.PaymentTimeout,
		"VERIFY_TIMEOUT":        c.VerifyTimeout,
		"EVENT_PUBLISH_TIMEOUT": c.EventPublishTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}
	if c.BackendMaxRetries < 0 {
		return fmt.Errorf("BACKEND_MAX_RETRIES must not be negative, got %d", c.BackendMaxRetries)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %f", c.CBFailureRatio)
	}
	if c.SubmitRateLimitRPS <= 0 || c.SubmitRateLimitBurst < 1 {
		return fmt.Errorf("submit rate limit must be positive, got %f rps burst %d",
			c.SubmitRateLimitRPS, c.SubmitRateLimitBurst)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// SlowCommandThreshold returns the Redis slow-command log threshold.
func (c *Config) SlowCommandThreshold() time.Duration {
	return time.Duration(c.SlowCommandThreshMs) * time.Millisecond
}
