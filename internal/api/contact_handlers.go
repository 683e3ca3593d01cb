package api

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/portfolio-site/contactrelay/internal/api/helpers"
	"github.com/portfolio-site/contactrelay/internal/api/middleware"
	"github.com/portfolio-site/contactrelay/internal/contact"
	"github.com/portfolio-site/contactrelay/internal/outcome"
)

// SubmitContact handles POST /contact.
//
// Clients only ever see the outcome kind and its safe detail text. The raw
// cause stays in the logs and, for operator-facing kinds, in Sentry.
func (s *Server) SubmitContact(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req contact.Request
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, start, outcome.New(outcome.KindValidation, "contact.decode", err))
		return
	}

	id, err := s.Contact.Submit(r.Context(), req, helpers.ClientIP(r))
	if err != nil {
		s.fail(w, r, start, err)
		return
	}

	s.Metrics.ObserveSubmission(nil, time.Since(start))
	helpers.RespondJSON(w, http.StatusOK, outcome.Success(id))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, start time.Time, err error) {
	s.Metrics.ObserveSubmission(err, time.Since(start))

	kind := outcome.KindOf(err)
	attrs := []any{
		"kind", kind,
		"error", err,
		"req_id", chimw.GetReqID(r.Context()),
	}
	if kind.UserRecoverable() {
		s.Logger.Warn("contact_submission_rejected", attrs...)
	} else {
		s.Logger.Error("contact_submission_failed", attrs...)
		middleware.ReportError(r.Context(), err)
	}

	helpers.RespondOutcome(w, err)
}
