// Package verify checks bot-challenge tokens against the provider before any
// mail is sent.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/portfolio-site/contactrelay/internal/outcome"
)

// DefaultEndpoint is Cloudflare Turnstile's server-side validation URL.
const DefaultEndpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

var (
	ErrTokenMissing = errors.New("challenge token is required")
	ErrRejected     = errors.New("challenge token rejected by provider")
)

// Config configures the gateway.
type Config struct {
	Secret   string        `env:"TURNSTILE_SECRET_KEY"`
	Endpoint string        `env:"TURNSTILE_VERIFY_URL" envDefault:"https://challenges.cloudflare.com/turnstile/v0/siteverify"`
	Timeout  time.Duration `env:"VERIFY_TIMEOUT" envDefault:"10s"`
}

// Gateway validates challenge tokens. Any failure, including failure to reach
// the provider, rejects the request.
type Gateway struct {
	secret   string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewGateway builds a gateway. A nil client gets one bounded by cfg.Timeout.
func NewGateway(cfg Config, client *http.Client, logger *slog.Logger) *Gateway {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		secret:   cfg.Secret,
		endpoint: cfg.Endpoint,
		client:   client,
		logger:   logger,
	}
}

// Enabled reports whether a secret is configured. Without one the gateway
// cannot verify anything and the caller decides whether to proceed.
func (g *Gateway) Enabled() bool {
	return g.secret != ""
}

// siteverifyResponse is the provider's reply.
type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes,omitempty"`
	Hostname   string   `json:"hostname,omitempty"`
	Action     string   `json:"action,omitempty"`
}

// Verify validates token for the client at remoteIP. It makes exactly one
// provider call and never retries.
func (g *Gateway) Verify(ctx context.Context, token, remoteIP string) error {
	if !g.Enabled() {
		return outcome.New(outcome.KindConfiguration, "verify.secret", errors.New("verification secret not configured"))
	}
	if strings.TrimSpace(token) == "" {
		return outcome.New(outcome.KindBotVerification, "verify.token", ErrTokenMissing)
	}

	form := url.Values{}
	form.Set("secret", g.secret)
	form.Set("response", token)
	form.Set("remoteip", remoteIP)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return outcome.New(outcome.KindBotVerification, "verify.request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("bot_verification_unreachable", "error", err)
		return outcome.New(outcome.KindBotVerification, "verify.call", err)
	}
	defer resp.Body.Close()

	var result siteverifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&result); err != nil {
		g.logger.Error("bot_verification_bad_response", "status", resp.StatusCode, "error", err)
		return outcome.New(outcome.KindBotVerification, "verify.decode", fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}

	if !result.Success {
		g.logger.Warn("bot_verification_rejected",
			"error_codes", result.ErrorCodes,
			"remote_ip", remoteIP,
		)
		return outcome.New(outcome.KindBotVerification, "verify.result", fmt.Errorf("%w: %v", ErrRejected, result.ErrorCodes))
	}

	g.logger.Debug("bot_verification_passed", "hostname", result.Hostname)
	return nil
}
