package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/portfolio-site/contactrelay/internal/outcome"
)

var errPanic = errors.New("panic while handling request")

// PanicRecovery captures panics, logs them with a stack trace and answers
// with the generic delivery failure body so clients always get JSON.
func PanicRecovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("panic_recovered",
					"error", rec,
					"path", r.URL.Path,
					"method", r.Method,
					"req_id", middleware.GetReqID(r.Context()),
					"stack", string(debug.Stack()),
				)

				if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
					hub.Recover(rec)
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(outcome.Failure(outcome.New(outcome.KindDelivery, "http.panic", errPanic)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
