package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/portfolio-site/contactrelay/internal/outcome"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession scripts SMTP replies per command.
type fakeSession struct {
	extensions map[string]bool

	startTLSErr error
	authErr     error
	mailErr     error
	rcptErr     error
	dataErr     error

	startTLSCalled bool
	mailFrom       string
	rcptTo         string
	data           bytes.Buffer
	quit           bool
	closed         bool
}

func (s *fakeSession) Extension(ext string) (bool, string) { return s.extensions[ext], "" }
func (s *fakeSession) StartTLS(*tls.Config) error {
	s.startTLSCalled = true
	return s.startTLSErr
}
func (s *fakeSession) Auth(smtp.Auth) error { return s.authErr }
func (s *fakeSession) Mail(from string) error {
	s.mailFrom = from
	return s.mailErr
}
func (s *fakeSession) Rcpt(to string) error {
	s.rcptTo = to
	return s.rcptErr
}
func (s *fakeSession) Data() (io.WriteCloser, error) {
	if s.dataErr != nil {
		return nil, s.dataErr
	}
	return nopWriteCloser{&s.data}, nil
}
func (s *fakeSession) Quit() error {
	s.quit = true
	return nil
}
func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// fakeDialer hands out sessions in order and counts dials.
type fakeDialer struct {
	sessions []*fakeSession
	err      error
	calls    int
}

func (d *fakeDialer) Dial(ctx context.Context, cfg Config) (Session, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	s := d.sessions[0]
	if len(d.sessions) > 1 {
		d.sessions = d.sessions[1:]
	}
	return s, nil
}

func validConfig() Config {
	return Config{
		Host:     "smtp.example.com",
		Port:     587,
		User:     "site@example.com",
		Password: "secret",
	}
}

func contactEnvelope() Envelope {
	return Envelope{
		Subject: "New Contact Form Submission from A",
		Text:    "Name: A\nPhone: +218912345678",
		HTML:    HTMLFromText("Name: A\nPhone: +218912345678"),
		ReplyTo: "a@b.com",
	}
}

func TestConfigValidate_MissingValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		missing string
	}{
		{"Host", func(c *Config) { c.Host = "" }, "SMTP_HOST"},
		{"Port", func(c *Config) { c.Port = 0 }, "SMTP_PORT"},
		{"User", func(c *Config) { c.User = "" }, "SMTP_USER"},
		{"Password", func(c *Config) { c.Password = "" }, "SMTP_PASS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, outcome.KindConfiguration, outcome.KindOf(err))
			assert.Equal(t, []string{tt.missing}, cfg.Missing())
		})
	}

	assert.NoError(t, validConfig().Validate())
}

func TestConfigDefaults(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "site@example.com", cfg.To())
	assert.Equal(t, "site@example.com", cfg.Sender())

	cfg.Recipient = "owner@example.com"
	cfg.From = "noreply@example.com"
	assert.Equal(t, "owner@example.com", cfg.To())
	assert.Equal(t, "noreply@example.com", cfg.Sender())

	assert.False(t, cfg.ImplicitTLS())
	cfg.Port = 465
	assert.True(t, cfg.ImplicitTLS())
}

func TestSend_MissingConfigNeverDials(t *testing.T) {
	dialer := &fakeDialer{sessions: []*fakeSession{{}}}
	cfg := validConfig()
	cfg.Password = ""
	p := NewSMTPProvider(cfg, WithDialer(dialer))

	_, err := p.Send(context.Background(), contactEnvelope())

	require.Error(t, err)
	assert.Equal(t, outcome.KindConfiguration, outcome.KindOf(err))
	assert.Equal(t, 0, dialer.calls)
}

func TestSend_Success(t *testing.T) {
	sess := &fakeSession{extensions: map[string]bool{"STARTTLS": true}}
	dialer := &fakeDialer{sessions: []*fakeSession{sess}}
	date := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := NewSMTPProvider(validConfig(), WithDialer(dialer), WithClock(func() time.Time { return date }))

	id, err := p.Send(context.Background(), contactEnvelope())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "<"))
	assert.True(t, strings.HasSuffix(id, "@example.com>"))
	assert.True(t, sess.startTLSCalled, "587 must upgrade when STARTTLS is offered")
	assert.Equal(t, "site@example.com", sess.mailFrom)
	assert.Equal(t, "site@example.com", sess.rcptTo)
	assert.True(t, sess.quit)
	assert.True(t, sess.closed)

	raw := sess.data.String()
	assert.Contains(t, raw, "Reply-To: <a@b.com>\r\n")
	assert.Contains(t, raw, "Message-ID: "+id+"\r\n")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "text/plain; charset=UTF-8")
	assert.Contains(t, raw, "text/html; charset=UTF-8")
	assert.Contains(t, raw, "+218912345678")
	assert.Contains(t, raw, "Name: A<br>Phone")
}

func TestSend_ImplicitTLSSkipsStartTLS(t *testing.T) {
	sess := &fakeSession{extensions: map[string]bool{"STARTTLS": true}}
	cfg := validConfig()
	cfg.Port = 465
	p := NewSMTPProvider(cfg, WithDialer(&fakeDialer{sessions: []*fakeSession{sess}}))

	_, err := p.Send(context.Background(), contactEnvelope())

	require.NoError(t, err)
	assert.False(t, sess.startTLSCalled)
}

func TestSend_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name    string
		dialErr error
		session *fakeSession
		kind    outcome.Kind
		op      string
	}{
		{
			name:    "Dial refused",
			dialErr: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			kind:    outcome.KindConnectivity,
			op:      opDial,
		},
		{
			name:    "Greeting timeout",
			dialErr: context.DeadlineExceeded,
			kind:    outcome.KindConnectivity,
			op:      opDial,
		},
		{
			name:    "STARTTLS handshake",
			session: &fakeSession{extensions: map[string]bool{"STARTTLS": true}, startTLSErr: errors.New("tls: handshake failure")},
			kind:    outcome.KindConnectivity,
			op:      opStartTLS,
		},
		{
			name:    "Bad credentials",
			session: &fakeSession{authErr: &textproto.Error{Code: 535, Msg: "5.7.8 Username and Password not accepted"}},
			kind:    outcome.KindAuthentication,
			op:      opAuth,
		},
		{
			name:    "Sender rejected",
			session: &fakeSession{mailErr: &textproto.Error{Code: 553, Msg: "sender not owned by user"}},
			kind:    outcome.KindAddress,
			op:      opMail,
		},
		{
			name:    "Recipient unknown",
			session: &fakeSession{rcptErr: &textproto.Error{Code: 550, Msg: "no such user"}},
			kind:    outcome.KindAddress,
			op:      opRcpt,
		},
		{
			name:    "Server closing",
			session: &fakeSession{mailErr: &textproto.Error{Code: 421, Msg: "too many connections"}},
			kind:    outcome.KindConnectivity,
			op:      opMail,
		},
		{
			name:    "Content rejected",
			session: &fakeSession{dataErr: &textproto.Error{Code: 554, Msg: "message rejected as spam"}},
			kind:    outcome.KindDelivery,
			op:      opData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := &fakeDialer{err: tt.dialErr}
			if tt.session != nil {
				dialer.sessions = []*fakeSession{tt.session}
			}
			p := NewSMTPProvider(validConfig(), WithDialer(dialer))

			_, err := p.Send(context.Background(), contactEnvelope())

			require.Error(t, err)
			var oe *outcome.Error
			require.True(t, errors.As(err, &oe))
			assert.Equal(t, tt.kind, oe.Kind)
			assert.Equal(t, tt.op, oe.Op)
			if tt.session != nil {
				assert.True(t, tt.session.closed, "session must be closed on failure")
			}
		})
	}
}

func TestSend_InvalidReplyTo(t *testing.T) {
	dialer := &fakeDialer{sessions: []*fakeSession{{}}}
	p := NewSMTPProvider(validConfig(), WithDialer(dialer))

	env := contactEnvelope()
	env.ReplyTo = "a@b.com\r\nBcc: victim@example.com"
	_, err := p.Send(context.Background(), env)

	assert.Equal(t, outcome.KindAddress, outcome.KindOf(err))
	assert.Equal(t, 0, dialer.calls)
}

func TestVerifyFailureDoesNotAffectNextSend(t *testing.T) {
	broken := &fakeSession{authErr: &textproto.Error{Code: 454, Msg: "temporary authentication failure"}}
	healthy := &fakeSession{}
	dialer := &fakeDialer{sessions: []*fakeSession{broken, healthy}}
	p := NewSMTPProvider(validConfig(), WithDialer(dialer))

	err := p.Verify(context.Background())
	assert.Equal(t, outcome.KindAuthentication, outcome.KindOf(err))

	id, err := p.Send(context.Background(), contactEnvelope())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 2, dialer.calls)
}

func TestSendTest(t *testing.T) {
	sess := &fakeSession{}
	cfg := validConfig()
	cfg.Recipient = "owner@example.com"
	p := NewSMTPProvider(cfg, WithDialer(&fakeDialer{sessions: []*fakeSession{sess}}))

	id, err := p.SendTest(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, "owner@example.com", sess.rcptTo)
	assert.Contains(t, sess.data.String(), `From: "Portfolio Contact Form" <site@example.com>`)
	assert.Contains(t, sess.data.String(), "Test Email from Portfolio Contact Form")
}

func TestSendTest_KeepsSenderAddressWithDisplayName(t *testing.T) {
	sess := &fakeSession{}
	cfg := validConfig()
	cfg.From = "Site <site@example.com>"
	p := NewSMTPProvider(cfg, WithDialer(&fakeDialer{sessions: []*fakeSession{sess}}))

	_, err := p.SendTest(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "site@example.com", sess.mailFrom)
	assert.Contains(t, sess.data.String(), `From: "Portfolio Contact Form" <site@example.com>`)
}

func TestHTMLFromText(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt;<br>c<br>d", HTMLFromText("a <b>\nc\r\nd"))
}

func TestHashRecipient(t *testing.T) {
	assert.Equal(t, HashRecipient("A@B.com"), HashRecipient(" a@b.com "))
	assert.Len(t, HashRecipient("a@b.com"), 64)
}
