package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/portfolio-site/contactrelay/internal/api/helpers"
	"github.com/portfolio-site/contactrelay/internal/api/middleware"
	"github.com/portfolio-site/contactrelay/internal/outcome"
)

// DiagnosticTimeout bounds the live SMTP check behind /contact/health.
const DiagnosticTimeout = 30 * time.Second

// HealthHandler returns the liveness check handler.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		helpers.RespondJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
		})
	}
}

// ErrorSummary is the display-safe part of a diagnostic failure.
type ErrorSummary struct {
	Kind    outcome.Kind `json:"kind"`
	Details string       `json:"details"`
	Code    int          `json:"code,omitempty"`
}

// ContactHealthResponse reports which variables are present, never their
// values.
type ContactHealthResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Env     map[string]bool `json:"env"`
	Missing []string        `json:"missing,omitempty"`
	Secure  bool            `json:"secure"`
	Error   *ErrorSummary   `json:"error,omitempty"`
}

// ContactHealth handles GET /contact/health. The live connection check only
// runs when every required mail variable is present.
func (s *Server) ContactHealth(w http.ResponseWriter, r *http.Request) {
	resp := ContactHealthResponse{
		Env:    s.Config.Presence(),
		Secure: s.Config.Mail.ImplicitTLS(),
	}

	if missing := s.Config.Mail.Missing(); len(missing) > 0 {
		resp.Status = "error"
		resp.Message = "SMTP configuration is incomplete"
		resp.Missing = missing
		helpers.RespondJSON(w, http.StatusInternalServerError, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DiagnosticTimeout)
	defer cancel()

	if err := s.Mail.Verify(ctx); err != nil {
		s.Logger.Error("smtp_health_check_failed", "kind", outcome.KindOf(err), "error", err)
		middleware.ReportError(r.Context(), err)

		resp.Status = "error"
		resp.Message = "SMTP connection failed"
		resp.Error = summarize(err)
		helpers.RespondJSON(w, http.StatusInternalServerError, resp)
		return
	}

	resp.Status = "success"
	resp.Message = "SMTP configuration is valid and connection successful"
	helpers.RespondJSON(w, http.StatusOK, resp)
}

// SendTestResponse is the body of GET /contact/send-test.
type SendTestResponse struct {
	Status    string        `json:"status"`
	Message   string        `json:"message"`
	MessageID string        `json:"messageId,omitempty"`
	Error     *ErrorSummary `json:"error,omitempty"`
}

// SendTest handles GET /contact/send-test.
func (s *Server) SendTest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), DiagnosticTimeout)
	defer cancel()

	id, err := s.Mail.SendTest(ctx)
	if err != nil {
		s.Logger.Error("smtp_send_test_failed", "kind", outcome.KindOf(err), "error", err)
		middleware.ReportError(r.Context(), err)

		helpers.RespondJSON(w, http.StatusInternalServerError, SendTestResponse{
			Status:  "error",
			Message: "Failed to send test email",
			Error:   summarize(err),
		})
		return
	}

	helpers.RespondJSON(w, http.StatusOK, SendTestResponse{
		Status:    "success",
		Message:   "Test email sent successfully",
		MessageID: id,
	})
}

// summarize keeps the kind and SMTP reply code but drops the server text,
// which can echo addresses or credentials.
func summarize(err error) *ErrorSummary {
	kind := outcome.KindOf(err)
	sum := &ErrorSummary{Kind: kind, Details: kind.SafeDetail()}
	var oe *outcome.Error
	if errors.As(err, &oe) {
		sum.Code = oe.Code
	}
	return sum
}
