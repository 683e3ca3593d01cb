// Package outcome defines the closed error taxonomy of the contact pipeline
// and the response object that crosses the server/client boundary.
//
// Every failure surfaced at the request boundary carries exactly one Kind.
// The Kind decides the HTTP status and the only text the end user ever sees
// (SafeDetail). The wrapped cause stays server-side for logs and Sentry.
package outcome

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindBotVerification Kind = "bot-verification"
	KindConfiguration   Kind = "configuration"
	KindConnectivity    Kind = "connectivity"
	KindAuthentication  Kind = "authentication"
	KindAddress         Kind = "address"
	KindDelivery        Kind = "delivery"
)

// Kinds lists every member of the taxonomy.
var Kinds = []Kind{
	KindValidation,
	KindBotVerification,
	KindConfiguration,
	KindConnectivity,
	KindAuthentication,
	KindAddress,
	KindDelivery,
}

// Valid reports whether k is a member of the taxonomy.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// UserRecoverable reports whether the submitter can fix the failure by
// editing input and retrying. All other kinds are operator-facing.
func (k Kind) UserRecoverable() bool {
	return k == KindValidation || k == KindBotVerification
}

// Status maps the kind to its HTTP status code.
func (k Kind) Status() int {
	if k.UserRecoverable() {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// SafeDetail is the generic, display-safe text for the kind.
func (k Kind) SafeDetail() string {
	switch k {
	case KindValidation:
		return "Please fill in your name, email and message."
	case KindBotVerification:
		return "We could not verify your submission. Please try again."
	default:
		return "Your message could not be sent right now. Please try again later."
	}
}

// Error is a classified pipeline failure.
//
// Op names the step that failed (e.g. "smtp.auth"), Code holds the provider
// reply code when one exists. Neither is ever returned to the client.
type Error struct {
	Kind Kind
	Op   string
	Code int
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " (" + e.Op + ")"
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" [%d]", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so callers can write
// errors.Is(err, &outcome.Error{Kind: outcome.KindAddress}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// New returns a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the kind of err. Unclassified errors are delivery failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e.Kind.Valid() {
		return e.Kind
	}
	return KindDelivery
}

// Response is the JSON body returned by the contact endpoint.
// Success responses carry MessageID; failures carry Error and Details.
type Response struct {
	Success   bool   `json:"success,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Error     Kind   `json:"error,omitempty"`
	Details   string `json:"details,omitempty"`
}

// Success builds the response for a delivered message.
func Success(messageID string) Response {
	return Response{Success: true, MessageID: messageID}
}

// Failure builds the display-safe response for err.
func Failure(err error) Response {
	kind := KindOf(err)
	return Response{Error: kind, Details: kind.SafeDetail()}
}
