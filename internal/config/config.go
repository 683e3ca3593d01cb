package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/portfolio-site/contactrelay/internal/mailer"
	"github.com/portfolio-site/contactrelay/internal/verify"
)

// Config holds all application configuration. It is loaded once at startup
// and passed by value; nothing mutates it afterwards.
type Config struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	Port      string `env:"PORT" envDefault:"8080"`
	LogFile   string `env:"LOG_FILE"`
	SentryDSN string `env:"SENTRY_DSN"`

	// AllowedOrigins lists browser origins allowed to post the form.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// Diagnostics mounts /contact/health and /contact/send-test.
	Diagnostics bool `env:"CONTACT_DIAGNOSTICS" envDefault:"true"`

	// RequireVerification rejects submissions when no verification secret
	// is configured, closing the tokenless path.
	RequireVerification bool `env:"VERIFICATION_REQUIRED" envDefault:"false"`

	Mail   mailer.Config
	Verify verify.Config
}

// Load reads .env files (when present) and the process environment.
func Load() (Config, error) {
	// Missing files are normal in production, where the platform injects
	// the environment directly.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Parse builds a Config from an explicit environment map.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Presence reports, per variable, whether a value is set. Values themselves
// are never exposed.
func (c Config) Presence() map[string]bool {
	return map[string]bool{
		"SMTP_HOST":            c.Mail.Host != "",
		"SMTP_PORT":            c.Mail.Port != 0,
		"SMTP_USER":            c.Mail.User != "",
		"SMTP_PASS":            c.Mail.Password != "",
		"SMTP_FROM":            c.Mail.From != "",
		"CONTACT_EMAIL":        c.Mail.Recipient != "",
		"TURNSTILE_SECRET_KEY": c.Verify.Secret != "",
	}
}
