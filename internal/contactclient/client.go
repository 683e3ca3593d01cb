// Package contactclient posts contact submissions to the relay server.
package contactclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/portfolio-site/contactrelay/internal/contact"
	"github.com/portfolio-site/contactrelay/internal/outcome"
)

// DefaultTimeout bounds one submission. The server may spend up to three
// SMTP timeouts plus the verification call before answering.
const DefaultTimeout = 45 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 64 << 10

var ErrUnexpectedStatus = errors.New("unexpected response status")

// Client submits to a single endpoint. It never retries.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// New returns a client for endpoint (e.g. https://example.com/contact).
// A nil httpClient gets one with DefaultTimeout.
func New(endpoint string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{endpoint: endpoint, http: httpClient, logger: logger}
}

// Submit posts req and returns the server's response on 2xx.
//
// Every failure is an *outcome.Error: network failures are connectivity,
// other statuses carry the kind the server reported (delivery when the body
// is unreadable). The raw body is logged, never returned.
func (c *Client) Submit(ctx context.Context, req contact.Request) (outcome.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return outcome.Response{}, outcome.New(outcome.KindValidation, "client.encode", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return outcome.Response{}, outcome.New(outcome.KindConfiguration, "client.request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("contact_post_failed", "error", err)
		return outcome.Response{}, outcome.New(outcome.KindConnectivity, "client.post", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Warn("contact_response_read_failed", "status", resp.StatusCode, "error", err)
		return outcome.Response{}, outcome.New(outcome.KindConnectivity, "client.read", err)
	}

	var out outcome.Response
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if decodeErr != nil {
			c.logger.Warn("contact_response_invalid", "status", resp.StatusCode, "body", string(raw))
			return outcome.Response{}, outcome.New(outcome.KindDelivery, "client.decode", decodeErr)
		}
		return out, nil
	}

	c.logger.Warn("contact_submission_failed",
		"status", resp.StatusCode,
		"body", string(raw),
	)

	kind := outcome.KindDelivery
	if decodeErr == nil && out.Error.Valid() {
		kind = out.Error
	}
	return outcome.Response{}, &outcome.Error{
		Kind: kind,
		Op:   "client.status",
		Code: resp.StatusCode,
		Err:  fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode),
	}
}
