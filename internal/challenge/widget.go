// Package challenge adapts an invisible bot-challenge widget (Cloudflare
// Turnstile in production) to a token source the form controller can await.
package challenge

import (
	"errors"
	"sync"
)

// Execution modes understood by the widget.
const (
	ExecutionRender  = "render"
	ExecutionExecute = "execute"
)

// SizeInvisible renders the widget without any visible element.
const SizeInvisible = "invisible"

// RenderOptions is what the adapter hands to the widget on render.
type RenderOptions struct {
	SiteKey   string
	Size      string
	Execution string

	// Callback receives a fresh token.
	Callback func(token string)

	// ErrorCallback reports a widget failure. The held token is dropped.
	ErrorCallback func(err error)

	// ExpiredCallback fires when the held token is no longer valid.
	ExpiredCallback func()
}

// Widget is the capability the hosting environment provides.
type Widget interface {
	Render(opts RenderOptions) (widgetID string, err error)
	GetResponse(widgetID string) string
	Reset(widgetID string)
}

var ErrEmptyToken = errors.New("fixed widget has no token configured")

// FixedWidget issues a preconfigured token on every render and reset.
// Provider test keys accept any token, which makes it useful for driving
// a deployment end to end without a browser.
type FixedWidget struct {
	Token string

	mu     sync.Mutex
	opts   RenderOptions
	issued string
	resets int
}

func (w *FixedWidget) Render(opts RenderOptions) (string, error) {
	if w.Token == "" {
		return "", ErrEmptyToken
	}
	w.mu.Lock()
	w.opts = opts
	w.issued = w.Token
	w.mu.Unlock()

	if opts.Callback != nil {
		opts.Callback(w.Token)
	}
	return "fixed-widget", nil
}

func (w *FixedWidget) GetResponse(string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.issued
}

// Reset issues the token again, as a real widget does after solving a new
// challenge.
func (w *FixedWidget) Reset(string) {
	w.mu.Lock()
	w.resets++
	w.issued = w.Token
	cb := w.opts.Callback
	w.mu.Unlock()

	if cb != nil {
		cb(w.Token)
	}
}

// Resets reports how many times the widget was reset.
func (w *FixedWidget) Resets() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resets
}
