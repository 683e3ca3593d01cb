package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTokenWait is how long AwaitToken waits for the widget callback
// before falling back to polling the widget directly.
const DefaultTokenWait = time.Second

var ErrNoToken = errors.New("challenge token unavailable")

type State int

const (
	StateUnrendered State = iota
	StateRendering
	StateReady
	StateConsumed
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateUnrendered:
		return "unrendered"
	case StateRendering:
		return "rendering"
	case StateReady:
		return "ready"
	case StateConsumed:
		return "consumed"
	case StateExpired:
		return "expired"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Adapter owns the widget lifecycle and the single token it holds.
//
// The widget is never called with the mutex held: real widgets invoke the
// callbacks synchronously from Render and Reset.
type Adapter struct {
	widget  Widget
	siteKey string
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	widgetID string
	token    string
	lastErr  error
	notify   chan struct{}
}

// NewAdapter returns an adapter for the given site key. With no site key
// or no widget the adapter runs degraded: it never renders and AwaitToken
// returns an empty token, leaving the decision to the server.
func NewAdapter(siteKey string, w Widget, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		widget:  w,
		siteKey: siteKey,
		logger:  logger,
		notify:  make(chan struct{}),
	}
}

// Enabled reports whether a challenge widget is in use.
func (a *Adapter) Enabled() bool {
	return a.siteKey != "" && a.widget != nil
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Err returns the last failure reported by the widget, if any.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Render mounts the widget exactly once. Calls made while a render is in
// progress, or after it succeeded, return nil without touching the widget.
// A failed render can be retried.
func (a *Adapter) Render() error {
	if !a.Enabled() {
		return nil
	}

	a.mu.Lock()
	if a.state != StateUnrendered || a.widgetID != "" {
		a.mu.Unlock()
		return nil
	}
	a.state = StateRendering
	a.lastErr = nil
	a.mu.Unlock()

	id, err := a.widget.Render(RenderOptions{
		SiteKey:         a.siteKey,
		Size:            SizeInvisible,
		Execution:       ExecutionRender,
		Callback:        a.onToken,
		ErrorCallback:   a.onError,
		ExpiredCallback: a.onExpired,
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.state = StateUnrendered
		a.lastErr = err
		a.logger.Warn("challenge_render_failed", "error", err)
		return fmt.Errorf("render challenge widget: %w", err)
	}
	a.widgetID = id
	a.state = StateReady
	return nil
}

func (a *Adapter) onToken(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = token
	a.lastErr = nil
	if a.state == StateConsumed || a.state == StateExpired {
		a.state = StateReady
	}
	a.signal()
}

func (a *Adapter) onError(err error) {
	a.mu.Lock()
	a.token = ""
	a.lastErr = err
	a.signal()
	a.mu.Unlock()

	a.logger.Warn("challenge_widget_error", "error", err)
}

func (a *Adapter) onExpired() {
	a.mu.Lock()
	a.token = ""
	a.state = StateExpired
	id := a.widgetID
	a.mu.Unlock()

	a.logger.Debug("challenge_token_expired")
	if id != "" {
		a.widget.Reset(id)
	}
}

// signal wakes every waiter. Callers hold a.mu.
func (a *Adapter) signal() {
	close(a.notify)
	a.notify = make(chan struct{})
}

// AwaitToken returns the held token, waiting up to timeout for the widget
// callback and then asking the widget directly. It returns ErrNoToken when
// neither produced one, and returns it at once, joined with the cause, when
// the widget has reported an error. Consume clears that error and resets
// the widget for the next attempt. A non-positive timeout uses
// DefaultTokenWait.
func (a *Adapter) AwaitToken(ctx context.Context, timeout time.Duration) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	if err := a.Render(); err != nil {
		return "", errors.Join(ErrNoToken, err)
	}

	a.mu.Lock()
	if a.token != "" {
		tok := a.token
		a.mu.Unlock()
		return tok, nil
	}
	if err := a.lastErr; err != nil {
		a.mu.Unlock()
		return "", errors.Join(ErrNoToken, err)
	}
	wait := a.notify
	a.mu.Unlock()

	if timeout <= 0 {
		timeout = DefaultTokenWait
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-wait:
	case <-timer.C:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	a.mu.Lock()
	if a.token != "" {
		tok := a.token
		a.mu.Unlock()
		return tok, nil
	}
	if err := a.lastErr; err != nil {
		a.mu.Unlock()
		return "", errors.Join(ErrNoToken, err)
	}
	id := a.widgetID
	a.mu.Unlock()

	if id != "" {
		if tok := a.widget.GetResponse(id); tok != "" {
			a.mu.Lock()
			a.token = tok
			a.mu.Unlock()
			return tok, nil
		}
	}
	return "", ErrNoToken
}

// Consume drops the held token and any widget error, then resets the widget
// so the next submission gets a fresh token. Tokens are single-use on the
// provider side.
func (a *Adapter) Consume() {
	if !a.Enabled() {
		return
	}

	a.mu.Lock()
	a.token = ""
	a.lastErr = nil
	id := a.widgetID
	if id != "" {
		a.state = StateConsumed
	}
	a.mu.Unlock()

	if id == "" {
		return
	}
	a.widget.Reset(id)

	a.mu.Lock()
	if a.state == StateConsumed {
		a.state = StateReady
	}
	a.mu.Unlock()
}
