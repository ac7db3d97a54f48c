package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port   string `env:"PORT" envDefault:"8080"`
	AppEnv string `env:"APP_ENV" envDefault:"production"`

	DBURL string `env:"DB_URL,required,notEmpty"`

	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	ProfileCacheTTL time.Duration `env:"PROFILE_CACHE_TTL" envDefault:"1m"`

	JWTSecret    string `env:"JWT_SECRET"`
	OIDCIssuer   string `env:"OIDC_ISSUER"`
	OIDCClientID string `env:"OIDC_CLIENT_ID"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	StripeProductID     string `env:"STRIPE_PRODUCT_ID"`

	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"http://localhost:3000"`

	TrialDays       int           `env:"TRIAL_DAYS" envDefault:"7"`
	RecheckInterval time.Duration `env:"RECHECK_INTERVAL" envDefault:"5m"`
	CoalesceWindow  time.Duration `env:"COALESCE_WINDOW" envDefault:"1500ms"`
	SessionIdleTTL  time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`

	// DotenvErr is set when no .env file could be loaded. Not fatal.
	DotenvErr error
}

var ErrNoAuthConfigured = errors.New("one of JWT_SECRET or OIDC_ISSUER must be set")

// LoadEnv reads .env when present, then the process environment.
func LoadEnv() (*Config, error) {
	dotenvErr := godotenv.Load()

	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	cfg.DotenvErr = dotenvErr
	return cfg, nil
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" && c.OIDCIssuer == "" {
		return ErrNoAuthConfigured
	}
	if c.TrialDays < 0 {
		return fmt.Errorf("TRIAL_DAYS must not be negative, got %d", c.TrialDays)
	}
	if c.RecheckInterval <= 0 || c.CoalesceWindow <= 0 || c.SessionIdleTTL <= 0 {
		return errors.New("RECHECK_INTERVAL, COALESCE_WINDOW and SESSION_IDLE_TTL must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != ""
}

func (c *Config) TrialLength() time.Duration {
	return time.Duration(c.TrialDays) * 24 * time.Hour
}
