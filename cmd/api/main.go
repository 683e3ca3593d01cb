package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/portfolio-site/contactrelay/internal/api"
	"github.com/portfolio-site/contactrelay/internal/config"
	"github.com/portfolio-site/contactrelay/internal/contact"
	"github.com/portfolio-site/contactrelay/internal/mailer"
	"github.com/portfolio-site/contactrelay/internal/metrics"
	"github.com/portfolio-site/contactrelay/internal/verify"
	"github.com/portfolio-site/contactrelay/pkg/logger"
)

func main() {
	// 0. Load Configuration (.env files are optional, the platform injects env vars)
	cfg, err := config.Load()
	if err != nil {
		logger.Setup("production", logger.Options{}).Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	// 1. Setup Global Logger
	log := logger.Setup(cfg.Env, logger.Options{File: cfg.LogFile})
	log.Info("application_startup", "env", cfg.Env)

	// 2. Setup Sentry
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
			Environment:      cfg.Env,
		})
		if err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	} else {
		log.Warn("sentry_dsn_missing", "details", "skipping_init")
	}

	// 3. Mail Dispatch. Incomplete config is not fatal: submissions fail
	// with a configuration outcome and /contact/health says what is missing.
	provider := mailer.NewSMTPProvider(cfg.Mail, mailer.WithLogger(log))
	if missing := cfg.Mail.Missing(); len(missing) > 0 {
		log.Warn("smtp_config_incomplete", "missing", missing)
	} else {
		log.Info("smtp_configured",
			"port", cfg.Mail.Port,
			"implicit_tls", cfg.Mail.ImplicitTLS(),
			"to_hash", mailer.HashRecipient(cfg.Mail.To()),
		)
	}

	// 4. Verification Gateway
	gateway := verify.NewGateway(cfg.Verify, nil, log)
	switch {
	case gateway.Enabled():
		log.Info("bot_verification_enabled")
	case cfg.RequireVerification:
		log.Error("bot_verification_secret_missing", "details", "all_submissions_rejected")
	default:
		log.Warn("bot_verification_disabled", "details", "tokenless_submissions_accepted")
	}

	// 5. Contact Service
	service := contact.NewService(gateway, provider, contact.Options{
		RequireVerification: cfg.RequireVerification,
	}, log)

	if len(cfg.AllowedOrigins) == 0 {
		log.Warn("cors_origins_empty", "details", "browser_requests_with_origin_rejected")
	}

	// 6. Setup HTTP Server
	server := api.NewServer(cfg, service, provider, metrics.New(), log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Verification plus three SMTP phases can take a while.
		WriteTimeout: 60 * time.Second,
	}

	// 7. Start Server with Graceful Shutdown
	serverErrors := make(chan error, 1)

	go func() {
		log.Info("server_listening", "port", cfg.Port, "diagnostics", cfg.Diagnostics)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	// 8. Block for Shutdown Signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig)

		// In-flight submissions may be mid-SMTP; give them time to finish.
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			if err := srv.Close(); err != nil {
				log.Error("server_force_close_failed", "error", err)
			}
		}

		log.Info("server_shutdown_complete")
	}
}
