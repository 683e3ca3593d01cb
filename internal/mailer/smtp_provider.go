package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"github.com/portfolio-site/contactrelay/internal/outcome"
)

// SMTPProvider sends mail through one configured SMTP account.
//
// Every call opens its own connection: no state survives between sends, so a
// failed attempt never poisons the next one.
type SMTPProvider struct {
	cfg    Config
	dialer Dialer
	logger *slog.Logger
	now    func() time.Time
}

// Option customises an SMTPProvider.
type Option func(*SMTPProvider)

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) Option {
	return func(p *SMTPProvider) { p.dialer = d }
}

// WithLogger sets the logger used for delivery diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *SMTPProvider) { p.logger = l }
}

// WithClock overrides the Date header source.
func WithClock(now func() time.Time) Option {
	return func(p *SMTPProvider) { p.now = now }
}

// NewSMTPProvider builds a provider. Zero timeouts take the defaults.
// Configuration is not validated here; Send and Verify reject incomplete
// configuration before dialing.
func NewSMTPProvider(cfg Config, opts ...Option) *SMTPProvider {
	def := DefaultTimeouts()
	if cfg.Timeouts.Connect <= 0 {
		cfg.Timeouts.Connect = def.Connect
	}
	if cfg.Timeouts.Greeting <= 0 {
		cfg.Timeouts.Greeting = def.Greeting
	}
	if cfg.Timeouts.Socket <= 0 {
		cfg.Timeouts.Socket = def.Socket
	}

	p := &SMTPProvider{
		cfg:    cfg,
		dialer: NetDialer{},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the provider configuration.
func (p *SMTPProvider) Config() Config {
	return p.cfg
}

// Verify runs the full handshake (connect, greeting, STARTTLS, AUTH) and
// quits without sending.
func (p *SMTPProvider) Verify(ctx context.Context) error {
	if err := p.cfg.Validate(); err != nil {
		return err
	}

	sess, err := p.connect(ctx)
	if err != nil {
		p.logFailure("smtp_verify_failed", err)
		return err
	}
	defer sess.Close()

	if err := sess.Quit(); err != nil {
		p.logger.Debug("smtp_quit_failed", "error", err)
	}
	p.logger.Info("smtp_verify_succeeded", "host", p.cfg.Host, "port", p.cfg.Port, "implicit_tls", p.cfg.ImplicitTLS())
	return nil
}

// Send delivers env in a single attempt.
func (p *SMTPProvider) Send(ctx context.Context, env Envelope) (string, error) {
	// 1. configured
	if err := p.cfg.Validate(); err != nil {
		return "", err
	}
	if env.From == "" {
		env.From = p.cfg.Sender()
	}
	if env.To == "" {
		env.To = p.cfg.To()
	}

	from, err := sanitizeEmailAddress(env.From)
	if err != nil {
		return "", outcome.New(outcome.KindConfiguration, "mailer.from", err)
	}
	to, err := sanitizeEmailAddress(env.To)
	if err != nil {
		return "", outcome.New(outcome.KindConfiguration, "mailer.to", err)
	}
	var replyTo *mail.Address
	if env.ReplyTo != "" {
		if replyTo, err = sanitizeEmailAddress(env.ReplyTo); err != nil {
			return "", outcome.New(outcome.KindAddress, "mailer.reply_to", err)
		}
	}

	// 2. connected
	sess, err := p.connect(ctx)
	if err != nil {
		p.logFailure("smtp_connect_failed", err)
		return "", err
	}
	defer sess.Close()

	// 3. compose
	msg := message{
		From:      from,
		To:        to,
		ReplyTo:   replyTo,
		Subject:   env.Subject,
		MessageID: fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(from)),
		Date:      p.now(),
		Text:      env.Text,
		HTML:      env.HTML,
	}
	raw, err := msg.bytes()
	if err != nil {
		return "", outcome.New(outcome.KindDelivery, opCompose, err)
	}

	// 4. sent
	if err := p.transmit(sess, from.Address, to.Address, raw); err != nil {
		p.logFailure("smtp_send_failed", err)
		return "", err
	}
	if err := sess.Quit(); err != nil {
		p.logger.Debug("smtp_quit_failed", "error", err)
	}

	p.logger.Info("email_sent",
		"to_hash", HashRecipient(to.Address),
		"message_id", msg.MessageID,
	)
	return msg.MessageID, nil
}

// SendTest delivers the fixed diagnostic message to the configured recipient.
func (p *SMTPProvider) SendTest(ctx context.Context) (string, error) {
	stamp := p.now().UTC().Format(time.RFC3339)

	// SMTP_FROM may already carry a display name; only the name is replaced.
	// An unparseable sender is passed through and rejected by Send.
	from := p.cfg.Sender()
	if addr, err := mail.ParseAddress(from); err == nil {
		addr.Name = "Portfolio Contact Form"
		from = addr.String()
	}

	return p.Send(ctx, Envelope{
		From:    from,
		Subject: "Test Email from Portfolio Contact Form",
		Text: "This is a test email from your portfolio contact form.\n\n" +
			"If you received this email, your SMTP configuration is working correctly!\n\n" +
			"Time: " + stamp,
		HTML: "<h2>Test Email Successful!</h2>" +
			"<p>This is a test email from your portfolio contact form.</p>" +
			"<p>If you received this email, your SMTP configuration is working correctly!</p>" +
			"<p><strong>Time:</strong> " + stamp + "</p>",
	})
}

// connect dials and authenticates. The returned session is ready for MAIL.
func (p *SMTPProvider) connect(ctx context.Context) (Session, error) {
	sess, err := p.dialer.Dial(ctx, p.cfg)
	if err != nil {
		return nil, classify(opDial, err)
	}

	if !p.cfg.ImplicitTLS() {
		if ok, _ := sess.Extension("STARTTLS"); ok {
			if err := sess.StartTLS(tlsConfig(p.cfg.Host)); err != nil {
				sess.Close()
				return nil, classify(opStartTLS, err)
			}
		}
	}

	auth := smtp.PlainAuth("", p.cfg.User, p.cfg.Password, p.cfg.Host)
	if err := sess.Auth(auth); err != nil {
		sess.Close()
		return nil, classify(opAuth, err)
	}
	return sess, nil
}

func (p *SMTPProvider) transmit(sess Session, from, to string, raw []byte) error {
	if err := sess.Mail(from); err != nil {
		return classify(opMail, err)
	}
	if err := sess.Rcpt(to); err != nil {
		return classify(opRcpt, err)
	}
	w, err := sess.Data()
	if err != nil {
		return classify(opData, err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return classify(opData, err)
	}
	if err := w.Close(); err != nil {
		return classify(opData, err)
	}
	return nil
}

// logFailure records the full diagnostic context. None of it reaches clients.
func (p *SMTPProvider) logFailure(event string, err error) {
	attrs := []any{
		"kind", outcome.KindOf(err),
		"host", p.cfg.Host,
		"port", p.cfg.Port,
		"error", err,
	}
	var oe *outcome.Error
	if errors.As(err, &oe) {
		attrs = append(attrs, "command", oe.Op, "code", oe.Code)
	}
	p.logger.Error(event, attrs...)
}
