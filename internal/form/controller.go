// Package form holds the client-side state of the contact form: field
// values, validation errors and the submission lifecycle.
package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/portfolio-site/contactrelay/internal/contact"
	"github.com/portfolio-site/contactrelay/internal/outcome"
)

var (
	ErrInvalid      = errors.New("form has validation errors")
	ErrInFlight     = errors.New("a submission is already in flight")
	ErrUnknownField = errors.New("unknown form field")
)

type Field string

const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldPhone   Field = "phone"
	FieldMessage Field = "message"
)

// Fields are the raw values as typed. Phone is stored unnormalized.
type Fields struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// Errors maps a field to its display message. Only failing fields appear.
type Errors map[Field]string

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Messages are the validation texts shown next to each field.
type Messages struct {
	NameRequired    string
	EmailRequired   string
	EmailInvalid    string
	MessageRequired string
}

func DefaultMessages() Messages {
	return Messages{
		NameRequired:    "Name is required",
		EmailRequired:   "Email is required",
		EmailInvalid:    "Please enter a valid email address",
		MessageRequired: "Message is required",
	}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// TokenSource supplies the bot-challenge token. *challenge.Adapter
// implements it.
type TokenSource interface {
	AwaitToken(ctx context.Context, timeout time.Duration) (string, error)
	Consume()
}

// Transport delivers a submission. *contactclient.Client implements it.
type Transport interface {
	Submit(ctx context.Context, req contact.Request) (outcome.Response, error)
}

type Options struct {
	Messages Messages

	// TokenWait bounds how long Submit waits for a challenge token.
	TokenWait time.Duration

	// OnSuccess runs after a successful submission, outside the lock.
	OnSuccess func(outcome.Response)

	Logger *slog.Logger
}

// Controller is safe for concurrent use. Widget callbacks and Submit may
// run on different goroutines.
type Controller struct {
	tokens    TokenSource
	transport Transport
	opts      Options
	logger    *slog.Logger

	mu       sync.Mutex
	fields   Fields
	errors   Errors
	state    State
	inFlight bool
	lastErr  error
}

// NewController wires the controller. tokens may be nil when no challenge
// is configured.
func NewController(tokens TokenSource, transport Transport, opts Options) *Controller {
	if opts.Messages == (Messages{}) {
		opts.Messages = DefaultMessages()
	}
	if opts.TokenWait <= 0 {
		opts.TokenWait = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		tokens:    tokens,
		transport: transport,
		opts:      opts,
		logger:    logger,
		errors:    Errors{},
	}
}

// SetField stores value verbatim and clears that field's error.
func (c *Controller) SetField(field Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch field {
	case FieldName:
		c.fields.Name = value
	case FieldEmail:
		c.fields.Email = value
	case FieldPhone:
		c.fields.Phone = value
	case FieldMessage:
		c.fields.Message = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	delete(c.errors, field)
	return nil
}

// Validate recomputes the error set from the current fields.
func (c *Controller) Validate() Errors {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = c.validate(c.fields)
	return c.errors.clone()
}

func (c *Controller) validate(f Fields) Errors {
	msgs := c.opts.Messages
	errs := Errors{}

	if strings.TrimSpace(f.Name) == "" {
		errs[FieldName] = msgs.NameRequired
	}

	email := strings.TrimSpace(f.Email)
	switch {
	case email == "":
		errs[FieldEmail] = msgs.EmailRequired
	case !emailPattern.MatchString(email):
		errs[FieldEmail] = msgs.EmailInvalid
	}

	if strings.TrimSpace(f.Message) == "" {
		errs[FieldMessage] = msgs.MessageRequired
	}
	return errs
}

// Submit validates, obtains a challenge token and posts the form.
//
// It returns ErrInvalid without any network call when validation fails and
// ErrInFlight while another submission runs. The token source is consumed
// after every post whatever the outcome, and after a failed token wait. On
// success the fields are cleared; on failure they are kept so the user can
// retry.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrInFlight
	}
	c.errors = c.validate(c.fields)
	if len(c.errors) > 0 {
		c.mu.Unlock()
		return ErrInvalid
	}
	c.inFlight = true
	fields := c.fields
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	var token string
	if c.tokens != nil {
		tok, err := c.tokens.AwaitToken(ctx, c.opts.TokenWait)
		if err != nil {
			c.logger.Warn("contact_form_token_unavailable", "error", err)
			// Reset the widget so a retry can obtain a fresh token.
			c.tokens.Consume()
			c.finish(StateError, err)
			return fmt.Errorf("await challenge token: %w", err)
		}
		token = tok
	}

	c.mu.Lock()
	c.state = StateSubmitting
	c.lastErr = nil
	c.mu.Unlock()

	resp, err := c.transport.Submit(ctx, contact.Request{
		Name:    fields.Name,
		Email:   fields.Email,
		Phone:   contact.NormalizePhone(fields.Phone),
		Message: fields.Message,
		Token:   token,
	})
	if c.tokens != nil {
		c.tokens.Consume()
	}

	if err != nil {
		c.logger.Warn("contact_form_submit_failed", "kind", outcome.KindOf(err), "error", err)
		c.finish(StateError, err)
		return err
	}

	c.mu.Lock()
	c.fields = Fields{}
	c.errors = Errors{}
	c.mu.Unlock()
	c.finish(StateSuccess, nil)

	if c.opts.OnSuccess != nil {
		c.opts.OnSuccess(resp)
	}
	return nil
}

func (c *Controller) finish(state State, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.lastErr = err
}

// Reset returns a finished form (success or error) to idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSuccess || c.state == StateError {
		c.state = StateIdle
		c.lastErr = nil
	}
}

func (c *Controller) Fields() Fields {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields
}

func (c *Controller) Errors() Errors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors.clone()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err is the failure behind StateError, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (e Errors) clone() Errors {
	out := make(Errors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
