package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/portfolio-site/contactrelay/internal/config"
	"github.com/portfolio-site/contactrelay/internal/contact"
	"github.com/portfolio-site/contactrelay/internal/mailer"
	"github.com/portfolio-site/contactrelay/internal/metrics"
	"github.com/portfolio-site/contactrelay/internal/outcome"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	mu    sync.Mutex
	err   error
	calls int
	ip    string
}

func (v *stubVerifier) Enabled() bool { return true }
func (v *stubVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	v.ip = remoteIP
	return v.err
}

type stubMailer struct {
	mu      sync.Mutex
	sendErr error
	verify  error
	calls   int
	tests   int
}

func (m *stubMailer) Send(ctx context.Context, env mailer.Envelope) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.sendErr != nil {
		return "", m.sendErr
	}
	return "<abc@example.com>", nil
}

func (m *stubMailer) Verify(ctx context.Context) error {
	return m.verify
}

func (m *stubMailer) SendTest(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests++
	if m.sendErr != nil {
		return "", m.sendErr
	}
	return "<test@example.com>", nil
}

func testConfig() config.Config {
	return config.Config{
		Env:         "test",
		Diagnostics: true,
		Mail: mailer.Config{
			Host:     "smtp.private-host.example",
			Port:     465,
			User:     "owner@private-host.example",
			Password: "hunter2-secret",
		},
	}
}

type harness struct {
	srv      *Server
	verifier *stubVerifier
	mail     *stubMailer
	metrics  *metrics.Metrics
}

func newHarness(cfg config.Config) *harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := &stubVerifier{}
	m := &stubMailer{}
	met := metrics.New()
	svc := contact.NewService(v, m, contact.Options{}, logger)
	return &harness{
		srv:      NewServer(cfg, svc, m, met, logger),
		verifier: v,
		mail:     m,
		metrics:  met,
	}
}

func (h *harness) post(t *testing.T, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.srv.ServeHTTP(rr, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return rr, out
}

const validBody = `{"name":"A","email":"a@b.com","phone":"0912345678","message":"hi","token":"tok"}`

func TestSubmitContact_Success(t *testing.T) {
	h := newHarness(testConfig())

	rr, out := h.post(t, validBody, map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "<abc@example.com>", out["messageId"])
	assert.Equal(t, 1, h.verifier.calls)
	assert.Equal(t, "203.0.113.9", h.verifier.ip)
	assert.Equal(t, 1, h.mail.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Submissions().WithLabelValues("sent")))
}

func TestSubmitContact_ValidationMakesNoDownstreamCalls(t *testing.T) {
	bodies := map[string]string{
		"Missing name":  `{"email":"a@b.com","message":"hi","token":"tok"}`,
		"Blank message": `{"name":"A","email":"a@b.com","message":"   ","token":"tok"}`,
		"Empty body":    ``,
		"Not JSON":      `name=A`,
		"Unknown field": `{"name":"A","email":"a@b.com","message":"hi","admin":true}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			h := newHarness(testConfig())
			rr, out := h.post(t, body, nil)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "validation", out["error"])
			assert.NotEmpty(t, out["details"])
			assert.Zero(t, h.verifier.calls)
			assert.Zero(t, h.mail.calls)
		})
	}
}

func TestSubmitContact_MissingTokenIsBotVerification(t *testing.T) {
	h := newHarness(testConfig())

	rr, out := h.post(t, `{"name":"A","email":"a@b.com","message":"hi"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "bot-verification", out["error"])
	assert.Zero(t, h.verifier.calls)
	assert.Zero(t, h.mail.calls)
}

func TestSubmitContact_RejectedTokenNeverSends(t *testing.T) {
	h := newHarness(testConfig())
	h.verifier.err = errors.New("provider unreachable")

	rr, out := h.post(t, validBody, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "bot-verification", out["error"])
	assert.Equal(t, 1, h.verifier.calls)
	assert.Zero(t, h.mail.calls)
}

func TestSubmitContact_MailFailuresMapTo500WithoutLeaking(t *testing.T) {
	for _, kind := range []outcome.Kind{
		outcome.KindConfiguration,
		outcome.KindConnectivity,
		outcome.KindAuthentication,
		outcome.KindAddress,
		outcome.KindDelivery,
	} {
		t.Run(string(kind), func(t *testing.T) {
			h := newHarness(testConfig())
			h.mail.sendErr = &outcome.Error{
				Kind: kind,
				Op:   "smtp.auth",
				Code: 535,
				Err:  errors.New("535 5.7.8 owner@private-host.example hunter2-secret rejected"),
			}

			rr, out := h.post(t, validBody, nil)

			assert.Equal(t, http.StatusInternalServerError, rr.Code)
			assert.Equal(t, string(kind), out["error"])
			assert.Equal(t, kind.SafeDetail(), out["details"])
			assert.NotContains(t, rr.Body.String(), "hunter2-secret")
			assert.NotContains(t, rr.Body.String(), "private-host")
			assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Submissions().WithLabelValues(string(kind))))
		})
	}
}

func TestSubmitContact_FailureIsNotSticky(t *testing.T) {
	h := newHarness(testConfig())
	h.mail.sendErr = outcome.New(outcome.KindConnectivity, "smtp.dial", errors.New("timeout"))

	rr, _ := h.post(t, validBody, nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	h.mail.sendErr = nil
	rr, out := h.post(t, validBody, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, out["success"])
}

func TestContactHealth(t *testing.T) {
	t.Run("Incomplete config skips the live check", func(t *testing.T) {
		cfg := testConfig()
		cfg.Mail.Password = ""
		h := newHarness(cfg)
		h.mail.verify = errors.New("must not be called")

		rr := httptest.NewRecorder()
		h.srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/contact/health", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		var out ContactHealthResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		assert.Equal(t, "error", out.Status)
		assert.Contains(t, out.Missing, "SMTP_PASS")
		assert.False(t, out.Env["SMTP_PASS"])
		assert.True(t, out.Env["SMTP_HOST"])
		assert.Nil(t, out.Error)
	})

	t.Run("Healthy", func(t *testing.T) {
		h := newHarness(testConfig())

		rr := httptest.NewRecorder()
		h.srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/contact/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var out ContactHealthResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		assert.Equal(t, "success", out.Status)
		assert.True(t, out.Secure)
		assert.Len(t, out.Env, 7)
		assert.NotContains(t, rr.Body.String(), "private-host")
		assert.NotContains(t, rr.Body.String(), "hunter2")
	})

	t.Run("Auth failure is summarized", func(t *testing.T) {
		h := newHarness(testConfig())
		h.mail.verify = &outcome.Error{
			Kind: outcome.KindAuthentication,
			Op:   "smtp.auth",
			Code: 535,
			Err:  errors.New("535 bad credentials for owner@private-host.example"),
		}

		rr := httptest.NewRecorder()
		h.srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/contact/health", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		var out ContactHealthResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		require.NotNil(t, out.Error)
		assert.Equal(t, outcome.KindAuthentication, out.Error.Kind)
		assert.Equal(t, 535, out.Error.Code)
		assert.NotContains(t, rr.Body.String(), "private-host")
	})
}

func TestSendTest(t *testing.T) {
	h := newHarness(testConfig())

	rr := httptest.NewRecorder()
	h.srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/contact/send-test", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var out SendTestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, "<test@example.com>", out.MessageID)
	assert.Equal(t, 1, h.mail.tests)
}

func TestDiagnosticsCanBeDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Diagnostics = false
	h := newHarness(cfg)

	for _, path := range []string{"/contact/health", "/contact/send-test"} {
		rr := httptest.NewRecorder()
		h.srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}
	assert.Zero(t, h.mail.tests)
}

func TestLivenessAndMetrics(t *testing.T) {
	h := newHarness(testConfig())

	rr := httptest.NewRecorder()
	h.srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "contact_submissions_total")
}
