package mailer

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"sync/atomic"
	"time"
)

// Session is the subset of *smtp.Client the provider drives. It exists so
// tests can script server replies without a network.
type Session interface {
	Extension(ext string) (bool, string)
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer opens a Session that has already consumed the server greeting.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Session, error)
}

// NetDialer dials real SMTP servers.
type NetDialer struct{}

// Dial connects to cfg.Host:cfg.Port. Port 465 negotiates TLS before the
// greeting. The greeting must arrive within Timeouts.Greeting, and afterwards
// every read or write must complete within Timeouts.Socket. Cancelling ctx
// aborts any blocked I/O.
func (NetDialer) Dial(ctx context.Context, cfg Config) (Session, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	nd := &net.Dialer{Timeout: cfg.Timeouts.Connect}

	raw, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// The deadline wrapper sits under TLS so that net/smtp still sees a
	// *tls.Conn and allows PLAIN auth on implicit-TLS connections.
	conn := &deadlineConn{Conn: raw}
	stop := context.AfterFunc(ctx, conn.abort)
	fail := func(err error) (Session, error) {
		stop()
		raw.Close()
		return nil, err
	}

	if err := conn.SetDeadline(time.Now().Add(cfg.Timeouts.Greeting)); err != nil {
		return fail(err)
	}

	var c net.Conn = conn
	if cfg.ImplicitTLS() {
		tc := tls.Client(conn, tlsConfig(cfg.Host))
		if err := tc.HandshakeContext(ctx); err != nil {
			return fail(err)
		}
		c = tc
	}

	client, err := smtp.NewClient(c, cfg.Host)
	if err != nil {
		return fail(err)
	}
	conn.idle.Store(int64(cfg.Timeouts.Socket))

	return &clientSession{Client: client, stop: stop}, nil
}

type clientSession struct {
	*smtp.Client
	stop func() bool
}

func (s *clientSession) Close() error {
	s.stop()
	return s.Client.Close()
}

// deadlineConn pushes the deadline forward before every read and write once
// idle is set, turning a fixed deadline into an idle timeout.
type deadlineConn struct {
	net.Conn
	idle    atomic.Int64
	aborted atomic.Bool
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if err := c.refresh(); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if err := c.refresh(); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

func (c *deadlineConn) refresh() error {
	if c.aborted.Load() {
		return context.Canceled
	}
	if idle := time.Duration(c.idle.Load()); idle > 0 {
		return c.Conn.SetDeadline(time.Now().Add(idle))
	}
	return nil
}

func (c *deadlineConn) abort() {
	c.aborted.Store(true)
	c.Conn.SetDeadline(time.Unix(1, 0))
}

func tlsConfig(host string) *tls.Config {
	return &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}
}
