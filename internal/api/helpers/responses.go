package helpers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/portfolio-site/contactrelay/internal/outcome"
)

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// RespondOutcome writes the display-safe failure body for err with the
// status of its kind.
func RespondOutcome(w http.ResponseWriter, err error) {
	RespondJSON(w, outcome.KindOf(err).Status(), outcome.Failure(err))
}
