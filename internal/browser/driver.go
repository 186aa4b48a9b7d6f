// Package browser drives the headless Chrome session the workflow runs in.
package browser

import (
	"context"
	"errors"
)

var (
	// ErrLaunch indicates the browser process could not be started.
	ErrLaunch = errors.New("browser launch failed")
	// ErrNoSuchNode indicates a selector matched fewer nodes than required.
	ErrNoSuchNode = errors.New("no such node")
)

// Driver is the set of page operations the workflow performs. Nodes are
// addressed by CSS selector and, where the page offers no stable identifier,
// by their position among the selector's matches.
type Driver interface {
	// Navigate loads url in the current tab.
	Navigate(ctx context.Context, url string) error
	// Count returns how many nodes currently match selector.
	Count(ctx context.Context, selector string) (int, error)
	// TypeAt focuses the index-th match of selector and types text into it.
	TypeAt(ctx context.Context, selector string, index int, text string) error
	// Submit clicks the index-th match of selector. When the click starts a
	// navigation, Submit returns after the new document has loaded.
	Submit(ctx context.Context, selector string, index int) error
	// EvaluateAndSettle runs a script in the page, discarding its result, and
	// waits out any navigation the script starts.
	EvaluateAndSettle(ctx context.Context, script string) error
	// SelectByLabel picks the option whose visible text equals label in the
	// first <select> matching selector. It reports false when no option matches.
	SelectByLabel(ctx context.Context, selector, label string) (bool, error)
	// WaitReady blocks until selector matches a node that is ready.
	WaitReady(ctx context.Context, selector string) error
	// WaitVisible blocks until selector matches a node that is visible.
	WaitVisible(ctx context.Context, selector string) error
	// Text returns the text content of the first match of selector.
	Text(ctx context.Context, selector string) (string, error)
	// HTML returns the rendered document.
	HTML(ctx context.Context) (string, error)
}

// Session is a Driver bound to one browser process.
type Session interface {
	Driver
	// Logout submits the first node matching selector.
	Logout(ctx context.Context, selector string) error
	// Close terminates the browser. It is safe to call more than once.
	Close() error
}
