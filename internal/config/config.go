package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Skotchmaster/galenos/internal/tokens"
)

var ErrConfig = errors.New("invalid configuration")

type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`

	SecretKey                string `mapstructure:"SECRET_KEY"`
	Algorithm                string `mapstructure:"ALGORITHM"`
	AccessTokenExpireMinutes int    `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	RefreshTokenExpireDays   int    `mapstructure:"REFRESH_TOKEN_EXPIRE_DAYS"`
	BcryptCost               int    `mapstructure:"BCRYPT_COST"`

	RateLimitEnabled  bool          `mapstructure:"RATE_LIMIT_ENABLED"`
	RateLimitAttempts int           `mapstructure:"RATE_LIMIT_ATTEMPTS"`
	RateLimitWindow   time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RedisURL          string        `mapstructure:"REDIS_URL"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	ESURL        string `mapstructure:"ES_URL"`
	ESUser       string `mapstructure:"ES_USER"`
	ESPassword   string `mapstructure:"ES_PASSWORD"`
	ESAuditIndex string `mapstructure:"ES_AUDIT_INDEX"`

	CORSOrigins string `mapstructure:"CORS_ORIGINS"`
	// TrustedProxies lists CIDRs whose X-Forwarded-For is believed. Empty
	// means the socket peer address is the client address.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`
}

var defaults = map[string]any{
	"APP_ENV":                     "development",
	"HTTP_ADDR":                   ":8000",
	"LOG_LEVEL":                   "info",
	"DATABASE_URL":                "sqlite:galenos.db",
	"ALGORITHM":                   "HS256",
	"ACCESS_TOKEN_EXPIRE_MINUTES": 30,
	"REFRESH_TOKEN_EXPIRE_DAYS":   7,
	"BCRYPT_COST":                 12,
	"RATE_LIMIT_ENABLED":          true,
	"RATE_LIMIT_ATTEMPTS":         5,
	"RATE_LIMIT_WINDOW":           "1m",
	"KAFKA_TOPIC":                 "auth_events",
	"ES_AUDIT_INDEX":              "audit-logs",
	"CORS_ORIGINS":                "http://localhost:3000",
}

var envOnly = []string{"SECRET_KEY", "REDIS_URL", "KAFKA_BROKERS", "ES_URL", "ES_USER", "ES_PASSWORD", "TRUSTED_PROXIES"}

// Load reads .env (when present) and the process environment. It does not
// validate the secret; see Validate.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: read .env: %v", ErrConfig, err)
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
		_ = v.BindEnv(key)
	}
	for _, key := range envOnly {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return cfg, nil
}

// Validate checks the settings the server cannot run without. An insecure
// SECRET_KEY is reported with tokens.ErrInsecureSecret in the chain.
func (c *Config) Validate() error {
	if err := tokens.ValidateSecret(c.SecretKey); err != nil {
		return fmt.Errorf("%w: SECRET_KEY: %w", ErrConfig, err)
	}
	if c.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("%w: ACCESS_TOKEN_EXPIRE_MINUTES must be positive", ErrConfig)
	}
	if c.RateLimitAttempts <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("%w: rate limit attempts and window must be positive", ErrConfig)
	}
	return nil
}

func (c *Config) IsDev() bool { return c.Env == "development" }

func (c *Config) TokenSettings() tokens.Settings {
	refreshDays := c.RefreshTokenExpireDays
	if refreshDays <= 0 {
		refreshDays = 7
	}
	return tokens.Settings{
		Secret:     []byte(c.SecretKey),
		Algorithm:  c.Algorithm,
		AccessTTL:  time.Duration(c.AccessTokenExpireMinutes) * time.Minute,
		RefreshTTL: time.Duration(refreshDays) * 24 * time.Hour,
	}
}

func (c *Config) Brokers() []string { return CSV(c.KafkaBrokers) }

func (c *Config) Origins() []string { return CSV(c.CORSOrigins) }

func (c *Config) Proxies() []string { return CSV(c.TrustedProxies) }

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
