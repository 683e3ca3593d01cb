package api

import (
	"context"
	"log/slog"
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	customMiddleware "github.com/portfolio-site/contactrelay/internal/api/middleware"
	"github.com/portfolio-site/contactrelay/internal/config"
	"github.com/portfolio-site/contactrelay/internal/contact"
	"github.com/portfolio-site/contactrelay/internal/metrics"
)

// ContactSubmitter handles one contact submission end to end.
type ContactSubmitter interface {
	Submit(ctx context.Context, req contact.Request, remoteIP string) (string, error)
}

// MailDiagnostics backs the operator routes.
type MailDiagnostics interface {
	Verify(ctx context.Context) error
	SendTest(ctx context.Context) (string, error)
}

type Server struct {
	Router  *chi.Mux
	Config  config.Config
	Contact ContactSubmitter
	Mail    MailDiagnostics
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func NewServer(cfg config.Config, svc ContactSubmitter, diag MailDiagnostics, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}

	s := &Server{
		Router:  chi.NewRouter(),
		Config:  cfg,
		Contact: svc,
		Mail:    diag,
		Metrics: m,
		Logger:  logger,
	}
	r := s.Router

	// 1. Core Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// 2. Sentry Middleware (must wrap Panic Recovery to capture panics)
	sentryHandler := sentryhttp.New(sentryhttp.Options{
		Repanic: true,
	})
	r.Use(sentryHandler.Handle)

	// 3. Logger & Recovery
	r.Use(customMiddleware.RequestLogger(logger))
	r.Use(customMiddleware.PanicRecovery(logger))

	// 4. Browser access
	r.Use(customMiddleware.StaticCors(cfg.AllowedOrigins, logger))

	r.Get("/health", s.HealthHandler())
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/contact", func(r chi.Router) {
		r.Post("/", s.SubmitContact)

		if cfg.Diagnostics && diag != nil {
			r.Get("/health", s.ContactHealth)
			r.Get("/send-test", s.SendTest)
		}
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
