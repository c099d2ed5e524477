package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/learnhub/auth-service/pkg/config"
)

// defaultJWTSecret is only acceptable in development mode.
const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the auth service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"AUTH_HTTP_PORT" envDefault:"8001"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"learnhub"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"learnhub_secret"`
	PostgresDB   string `env:"AUTH_DB_NAME" envDefault:"auth_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT session tokens
	JWTSecret string `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTExpiry string `env:"JWT_EXPIRY" envDefault:"168h"`

	// Session cookie
	CookieExpiryDays int `env:"COOKIE_EXPIRY_DAYS" envDefault:"7"`

	// Single-use secret windows
	ResetTokenTTL string `env:"RESET_TOKEN_TTL" envDefault:"10m"`

	// Outbound email
	SMTPHost    string `env:"SMTP_HOST" envDefault:""`
	SMTPPort    int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser    string `env:"SMTP_USER" envDefault:""`
	SMTPPass    string `env:"SMTP_PASSWORD" envDefault:""`
	MailFrom    string `env:"MAIL_FROM" envDefault:"no-reply@learnhub.dev"`
	PublicURL   string `env:"PUBLIC_URL" envDefault:"http://localhost:3000"`
	MailerDebug bool   `env:"MAILER_DEBUG" envDefault:"false"`

	// Rate limiting on public auth endpoints
	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.CookieExpiryDays < 1 {
		return nil, fmt.Errorf("invalid cookie expiry days: %d", cfg.CookieExpiryDays)
	}

	if _, err := time.ParseDuration(cfg.JWTExpiry); err != nil {
		return nil, fmt.Errorf("parse JWT expiry %q: %w", cfg.JWTExpiry, err)
	}
	if _, err := time.ParseDuration(cfg.ResetTokenTTL); err != nil {
		return nil, fmt.Errorf("parse reset token TTL %q: %w", cfg.ResetTokenTTL, err)
	}

	// In non-development environments, require an explicitly set, strong JWT secret.
	if cfg.Environment != "development" {
		if cfg.JWTSecret == defaultJWTSecret {
			return nil, fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
		}
		if len(cfg.JWTSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(cfg.JWTSecret))
		}
	}

	return cfg, nil
}

// JWTExpiryDuration returns the parsed session token expiry window.
func (c *Config) JWTExpiryDuration() time.Duration {
	d, _ := time.ParseDuration(c.JWTExpiry)
	return d
}

// ResetTokenTTLDuration returns the parsed password reset token window.
func (c *Config) ResetTokenTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.ResetTokenTTL)
	return d
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
