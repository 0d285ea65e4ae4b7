// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Email provider names accepted in EMAIL_PROVIDER.
const (
	EmailProviderMailDev  = "maildev"
	EmailProviderSendGrid = "sendgrid"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// JWTAccessSecret signs access tokens with HS256 unless a key pair is configured.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`

	// RefreshTokenSecret keys the refresh token lookup digest.
	RefreshTokenSecret     string `mapstructure:"REFRESH_TOKEN_SECRET"`
	RefreshTokenExpiryDays int    `mapstructure:"REFRESH_TOKEN_EXPIRY_DAYS"`
	// BcryptCost is the bcrypt cost factor (4–31) for general secrets.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// RefreshBcryptCost is the bcrypt cost for refresh token digests; hashed on every rotation.
	RefreshBcryptCost int `mapstructure:"REFRESH_BCRYPT_COST"`

	// PasswordlessTTL is how long a magic link or OTP stays valid (e.g. "5m").
	PasswordlessTTL string `mapstructure:"PASSWORDLESS_TTL"`
	// PasswordlessRateLimit is the number of requests allowed per email per RateLimitWindow.
	PasswordlessRateLimit int    `mapstructure:"PASSWORDLESS_RATE_LIMIT"`
	RateLimitWindow       string `mapstructure:"RATE_LIMIT_WINDOW"`

	// EmailProvider selects the mail transport: "maildev" (SMTP) or "sendgrid".
	EmailProvider   string `mapstructure:"EMAIL_PROVIDER"`
	SendGridAPIKey  string `mapstructure:"SENDGRID_API_KEY"`
	SendGridBaseURL string `mapstructure:"SENDGRID_BASE_URL"`
	MailFromEmail   string `mapstructure:"MAIL_FROM_EMAIL"`
	MailFromName    string `mapstructure:"MAIL_FROM_NAME"`
	MailDevHost     string `mapstructure:"MAILDEV_HOST"`
	MailDevPort     int    `mapstructure:"MAILDEV_PORT"`
	// FrontendURL is the base of magic links (FRONTEND_URL/auth/verify?token=...).
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	// AuditKafkaBrokers is a comma-separated broker list; when set, audit events are also published to Kafka.
	AuditKafkaBrokers string `mapstructure:"AUDIT_KAFKA_BROKERS"`
	AuditKafkaTopic   string `mapstructure:"AUDIT_KAFKA_TOPIC"`

	// OTelEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// TokenSweepInterval is how often the worker purges expired refresh tokens (e.g. "1h").
	TokenSweepInterval string `mapstructure:"TOKEN_SWEEP_INTERVAL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "creatik-hub-api")
	v.SetDefault("JWT_AUDIENCE", "creatik-hub-frontend")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_SECRET", "")
	v.SetDefault("REFRESH_TOKEN_EXPIRY_DAYS", 30)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("REFRESH_BCRYPT_COST", 10)
	v.SetDefault("PASSWORDLESS_TTL", "5m")
	v.SetDefault("PASSWORDLESS_RATE_LIMIT", 5)
	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("EMAIL_PROVIDER", EmailProviderMailDev)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("SENDGRID_BASE_URL", "https://api.sendgrid.com")
	v.SetDefault("MAIL_FROM_EMAIL", "noreply@creatik-hub.local")
	v.SetDefault("MAIL_FROM_NAME", "Creatik Hub")
	v.SetDefault("MAILDEV_HOST", "localhost")
	v.SetDefault("MAILDEV_PORT", 1025)
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("AUDIT_KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "auth-audit")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("TOKEN_SWEEP_INTERVAL", "1h")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid or missing required setting.
func (c *Config) Validate() error {
	if c.GRPCAddr == "" {
		return errors.New("config: GRPC_ADDR must be set")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.RefreshBcryptCost == 0 {
		c.RefreshBcryptCost = 10
	}
	if c.RefreshBcryptCost < 4 || c.RefreshBcryptCost > 31 {
		return errors.New("config: REFRESH_BCRYPT_COST must be between 4 and 31")
	}
	if (c.JWTPrivateKey == "") != (c.JWTPublicKey == "") {
		return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}
	if c.JWTPrivateKey == "" && c.JWTAccessSecret == "" {
		return errors.New("config: JWT_ACCESS_SECRET or JWT_PRIVATE_KEY/JWT_PUBLIC_KEY must be set")
	}
	if c.RefreshTokenSecret == "" {
		return errors.New("config: REFRESH_TOKEN_SECRET must be set")
	}
	if c.IsProduction() && len(c.RefreshTokenSecret) < 32 {
		return errors.New("config: REFRESH_TOKEN_SECRET must be at least 32 bytes when APP_ENV=production")
	}
	if c.RefreshTokenExpiryDays <= 0 {
		return errors.New("config: REFRESH_TOKEN_EXPIRY_DAYS must be positive")
	}
	if c.PasswordlessRateLimit < 0 {
		return errors.New("config: PASSWORDLESS_RATE_LIMIT must not be negative")
	}
	switch c.EmailProvider {
	case EmailProviderMailDev:
	case EmailProviderSendGrid:
		if c.SendGridAPIKey == "" {
			return errors.New("config: SENDGRID_API_KEY must be set when EMAIL_PROVIDER=sendgrid")
		}
	default:
		return errors.New("config: EMAIL_PROVIDER must be maildev or sendgrid")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL returns the refresh token lifetime derived from RefreshTokenExpiryDays.
func (c *Config) RefreshTTL() time.Duration {
	days := c.RefreshTokenExpiryDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// CredentialTTL returns the magic link / OTP lifetime. Returns 5m if unset or invalid.
func (c *Config) CredentialTTL() time.Duration {
	return parseDuration(c.PasswordlessTTL, 5*time.Minute)
}

// RateWindow returns the rate limit window. Returns 15m if unset or invalid.
func (c *Config) RateWindow() time.Duration {
	return parseDuration(c.RateLimitWindow, 15*time.Minute)
}

// SweepInterval returns the refresh token purge interval. Returns 1h if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	return parseDuration(c.TokenSweepInterval, time.Hour)
}

// AuditKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the Kafka audit sink is enabled (non-empty list).
func (c *Config) AuditKafkaBrokersList() []string {
	if c == nil || c.AuditKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.AuditKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
