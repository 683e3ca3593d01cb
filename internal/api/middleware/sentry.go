package middleware

import (
	"context"
	"errors"

	"github.com/getsentry/sentry-go"
	"github.com/portfolio-site/contactrelay/internal/outcome"
)

// ReportError sends err to Sentry with the outcome kind and op as tags.
// It uses the request hub installed by sentryhttp, falling back to the
// current hub. Without an initialised client this is a no-op.
func ReportError(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("outcome_kind", string(outcome.KindOf(err)))
		var oe *outcome.Error
		if errors.As(err, &oe) && oe.Op != "" {
			scope.SetTag("outcome_op", oe.Op)
		}
		hub.CaptureException(err)
	})
}
