package contact

import (
	"context"
	"errors"
	"log/slog"

	"github.com/portfolio-site/contactrelay/internal/mailer"
	"github.com/portfolio-site/contactrelay/internal/outcome"
)

var (
	ErrTokenMissing        = errors.New("challenge token missing")
	ErrVerificationMissing = errors.New("verification required but no secret configured")
)

// Verifier checks a bot-challenge token.
type Verifier interface {
	Enabled() bool
	Verify(ctx context.Context, token, remoteIP string) error
}

// Options tune the service.
type Options struct {
	// RequireVerification refuses every submission when the verifier has no
	// secret, instead of silently accepting tokenless requests.
	RequireVerification bool
}

// Service orchestrates one submission. It holds no per-request state.
type Service struct {
	verifier Verifier
	mail     mailer.EmailProvider
	opts     Options
	logger   *slog.Logger
}

func NewService(verifier Verifier, mail mailer.EmailProvider, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		verifier: verifier,
		mail:     mail,
		opts:     opts,
		logger:   logger,
	}
}

// VerificationEnabled reports whether submissions must carry a token.
func (s *Service) VerificationEnabled() bool {
	return s.verifier != nil && s.verifier.Enabled()
}

// Submit validates req, verifies its token and sends the notification.
// It returns the Message-ID, or an *outcome.Error.
func (s *Service) Submit(ctx context.Context, req Request, remoteIP string) (string, error) {
	req = req.Normalized()

	if err := req.Validate(); err != nil {
		return "", err
	}

	if err := s.verify(ctx, req.Token, remoteIP); err != nil {
		return "", err
	}

	id, err := s.mail.Send(ctx, BuildEnvelope(req))
	if err != nil {
		var oe *outcome.Error
		if !errors.As(err, &oe) {
			err = outcome.New(outcome.KindDelivery, "contact.send", err)
		}
		return "", err
	}
	return id, nil
}

func (s *Service) verify(ctx context.Context, token, remoteIP string) error {
	if !s.VerificationEnabled() {
		if s.opts.RequireVerification {
			return outcome.New(outcome.KindConfiguration, "contact.verify", ErrVerificationMissing)
		}
		s.logger.Warn("bot_verification_skipped", "reason", "secret_not_configured")
		return nil
	}

	if token == "" {
		return outcome.New(outcome.KindBotVerification, "contact.verify", ErrTokenMissing)
	}

	if err := s.verifier.Verify(ctx, token, remoteIP); err != nil {
		if outcome.KindOf(err) == outcome.KindBotVerification {
			return err
		}
		// Whatever went wrong, an unverified request never reaches the mailer.
		return outcome.New(outcome.KindBotVerification, "contact.verify", err)
	}
	return nil
}
