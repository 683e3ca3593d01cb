package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/portfolio-site/contactrelay/internal/challenge"
	"github.com/portfolio-site/contactrelay/internal/config"
	"github.com/portfolio-site/contactrelay/internal/contactclient"
	"github.com/portfolio-site/contactrelay/internal/form"
	"github.com/portfolio-site/contactrelay/internal/mailer"
	"github.com/portfolio-site/contactrelay/internal/outcome"
	"github.com/portfolio-site/contactrelay/pkg/logger"
	"github.com/spf13/cobra"
)

// Turnstile's documented always-pass test credentials.
const (
	testSiteKey = "1x00000000000000000000AA"
	testToken   = "XXXX.DUMMY.TOKEN"
)

var log *slog.Logger

var rootCmd = &cobra.Command{
	Use:   "control",
	Short: "Operator tools for the contact relay",
	Long: `control talks to a running contact relay (health, send-test, submit)
or checks the local SMTP settings directly (smtp-check).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		env := "production"
		if verbose {
			env = "development"
		}
		// Logs go to stderr so command output stays pipeable.
		log = slog.New(logger.NewHandler(env, os.Stderr))
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show which mail settings the server has and test its SMTP connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getDiagnostic(cmd, "/contact/health")
	},
}

var sendTestCmd = &cobra.Command{
	Use:   "send-test",
	Short: "Ask the server to send the diagnostic email",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getDiagnostic(cmd, "/contact/send-test")
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit the contact form end to end, as a browser would",
	Long: `submit fills the contact form, obtains a challenge token and posts it.

Without --site-key no challenge is used, which only works against servers
that have no verification secret. The default token is Turnstile's test
token, accepted by the test secret keys.

Example:
  control submit --name "Ada" --email ada@example.com --message "Hello" \
    --phone 0912345678 --site-key 1x00000000000000000000AA`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		siteKey, _ := cmd.Flags().GetString("site-key")
		token, _ := cmd.Flags().GetString("token")

		var widget challenge.Widget
		if siteKey != "" {
			widget = &challenge.FixedWidget{Token: token}
		}
		adapter := challenge.NewAdapter(siteKey, widget, log)
		client := contactclient.New(endpoint(server, "/contact"), &http.Client{Timeout: timeout}, log)

		var sent outcome.Response
		ctrl := form.NewController(adapter, client, form.Options{
			Logger:    log,
			OnSuccess: func(r outcome.Response) { sent = r },
		})

		for field, flag := range map[form.Field]string{
			form.FieldName:    "name",
			form.FieldEmail:   "email",
			form.FieldPhone:   "phone",
			form.FieldMessage: "message",
		} {
			v, _ := cmd.Flags().GetString(flag)
			if err := ctrl.SetField(field, v); err != nil {
				return err
			}
		}

		err := ctrl.Submit(cmd.Context())
		out := cmd.OutOrStdout()
		switch {
		case errors.Is(err, form.ErrInvalid):
			for field, msg := range ctrl.Errors() {
				fmt.Fprintf(out, "%s: %s\n", field, msg)
			}
			return err
		case err != nil:
			kind := outcome.KindOf(err)
			fmt.Fprintf(out, "❌ %s: %s\n", kind, kind.SafeDetail())
			return err
		}

		fmt.Fprintf(out, "✅ Sent, Message-ID %s\n", sent.MessageID)
		return nil
	},
}

var smtpCheckCmd = &cobra.Command{
	Use:   "smtp-check",
	Short: "Verify the SMTP settings from the local environment without sending",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, name := range []string{"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "SMTP_FROM", "CONTACT_EMAIL", "TURNSTILE_SECRET_KEY"} {
			fmt.Fprintf(out, "%-22s %v\n", name, cfg.Presence()[name])
		}

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		provider := mailer.NewSMTPProvider(cfg.Mail, mailer.WithLogger(log))
		if err := provider.Verify(ctx); err != nil {
			fmt.Fprintf(out, "❌ %s\n", err)
			return err
		}
		fmt.Fprintln(out, "✅ SMTP connection and login succeeded")
		return nil
	},
}

// getDiagnostic fetches a diagnostic route and pretty-prints its JSON.
func getDiagnostic(cmd *cobra.Command, path string) error {
	server, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, endpoint(server, path), nil)
	if err != nil {
		return err
	}
	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") != nil {
		pretty.Reset()
		pretty.Write(raw)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", path, resp.StatusCode)
	}
	return nil
}

func endpoint(server, path string) string {
	return strings.TrimRight(server, "/") + path
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(sendTestCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(smtpCheckCmd)

	rootCmd.PersistentFlags().String("server", envOr("CONTACT_SERVER", "http://localhost:8080"), "Base URL of the contact relay")
	rootCmd.PersistentFlags().Duration("timeout", contactclient.DefaultTimeout, "Timeout for each operation")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Human-readable debug logging")

	submitCmd.Flags().String("name", "", "Sender name")
	submitCmd.Flags().String("email", "", "Sender email")
	submitCmd.Flags().String("phone", "", "Sender phone (optional)")
	submitCmd.Flags().String("message", "", "Message body")
	submitCmd.Flags().String("site-key", "", "Challenge site key, e.g. "+testSiteKey)
	submitCmd.Flags().String("token", testToken, "Token the challenge widget issues")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
