// Package mailer delivers the contact notification over SMTP.
//
// A Provider moves through unconfigured -> configured -> connected -> sent.
// Each step can fail, and every failure leaves the package as an
// *outcome.Error carrying one of the taxonomy kinds.
package mailer

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/portfolio-site/contactrelay/internal/outcome"
)

// ImplicitTLSPort is the SMTPS port. Connections to it are TLS from the
// first byte; every other port starts plain and upgrades with STARTTLS.
const ImplicitTLSPort = 465

// EmailProvider is the contract the contact service depends on.
type EmailProvider interface {
	// Send delivers env and returns the Message-ID assigned to it.
	Send(ctx context.Context, env Envelope) (messageID string, err error)
}

// Envelope is one outbound message. From and To fall back to the configured
// sender and recipient when empty.
type Envelope struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string // optional parallel HTML body
	ReplyTo string
}

// Timeouts bound every phase of an SMTP exchange. Socket is an idle timeout
// applied to each read and write after the greeting.
type Timeouts struct {
	Connect  time.Duration `env:"SMTP_CONNECT_TIMEOUT" envDefault:"10s"`
	Greeting time.Duration `env:"SMTP_GREETING_TIMEOUT" envDefault:"10s"`
	Socket   time.Duration `env:"SMTP_SOCKET_TIMEOUT" envDefault:"10s"`
}

// DefaultTimeouts returns the production timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect:  10 * time.Second,
		Greeting: 10 * time.Second,
		Socket:   10 * time.Second,
	}
}

// Config is the process-wide SMTP configuration. It is loaded once and
// never mutated. Password is never logged.
type Config struct {
	Host      string `env:"SMTP_HOST" validate:"required"`
	Port      int    `env:"SMTP_PORT" validate:"required,min=1,max=65535"`
	User      string `env:"SMTP_USER" validate:"required"`
	Password  string `env:"SMTP_PASS" validate:"required"`
	From      string `env:"SMTP_FROM"`
	Recipient string `env:"CONTACT_EMAIL"`
	Timeouts  Timeouts
}

// ImplicitTLS reports whether the connection is TLS from the start.
func (c Config) ImplicitTLS() bool {
	return c.Port == ImplicitTLSPort
}

// Sender is the envelope sender, defaulting to the login user.
func (c Config) Sender() string {
	if c.From != "" {
		return c.From
	}
	return c.User
}

// To is the recipient of contact notifications, defaulting to the login user.
func (c Config) To() string {
	if c.Recipient != "" {
		return c.Recipient
	}
	return c.User
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their environment variable so operators know what to set.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("env"), ",")
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Missing lists the environment variables whose values are absent or invalid.
func (c Config) Missing() []string {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}
	return missing
}

// Validate returns a configuration error when any required value is absent.
func (c Config) Validate() error {
	missing := c.Missing()
	if len(missing) == 0 {
		return nil
	}
	return &outcome.Error{
		Kind: outcome.KindConfiguration,
		Op:   "mailer.config",
		Err:  errMissingConfig(missing),
	}
}

type errMissingConfig []string

func (e errMissingConfig) Error() string {
	return "missing or invalid: " + strings.Join(e, ", ")
}
