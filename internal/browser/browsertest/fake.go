// Package browsertest provides an in-memory browser.Session for tests.
package browsertest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/agrishikyo-relay/internal/browser"
)

const defaultWaitTimeout = 200 * time.Millisecond

// Call records one operation performed against the fake. Page is the
// navigation generation the fake was showing when the call was made.
type Call struct {
	Op       string
	Selector string
	Index    int
	Text     string
	Page     int
}

// Fake is a scripted browser.Session. Counts, Options and Pages describe the
// page; Errors injects failures per operation name.
//
// Every submit, settled script and selection replaces the page and bumps its
// generation. With NavDelay set the replacement lands late: Submit and
// EvaluateAndSettle block until it does, the way a loading page would, while a
// selection re-renders in the background after the call has returned.
type Fake struct {
	mu sync.Mutex

	// Counts maps a selector to the number of nodes it matches.
	Counts map[string]int
	// Options maps a select selector to its visible option labels.
	Options map[string][]string
	// Pages maps a selected option label to the HTML rendered afterwards.
	Pages map[string]string
	// DefaultHTML is returned when no option has been selected.
	DefaultHTML string
	// Errors maps an operation name ("navigate", "type", ...) to a failure.
	Errors map[string]error
	// NavDelay is how long a page replacement takes to land.
	NavDelay time.Duration
	// WaitTimeout bounds WaitVisible; it defaults to 200ms.
	WaitTimeout time.Duration

	calls    []Call
	page     int
	selected string
	closed   int
}

var _ browser.Session = (*Fake)(nil)

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		Counts:  map[string]int{},
		Options: map[string][]string{},
		Pages:   map[string]string{},
		Errors:  map[string]error{},
	}
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.Page = f.page
	f.calls = append(f.calls, c)
	return f.Errors[c.Op]
}

// Navigate implements browser.Driver.
func (f *Fake) Navigate(_ context.Context, url string) error {
	return f.record(Call{Op: "navigate", Text: url})
}

// Count implements browser.Driver.
func (f *Fake) Count(_ context.Context, selector string) (int, error) {
	if err := f.record(Call{Op: "count", Selector: selector}); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Counts[selector], nil
}

// SetCount changes how many nodes selector matches while the fake is in use.
func (f *Fake) SetCount(selector string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Counts[selector] = n
}

// TypeAt implements browser.Driver.
func (f *Fake) TypeAt(_ context.Context, selector string, index int, text string) error {
	if err := f.record(Call{Op: "type", Selector: selector, Index: index, Text: text}); err != nil {
		return err
	}
	return f.checkIndex(selector, index)
}

// Submit implements browser.Driver.
func (f *Fake) Submit(ctx context.Context, selector string, index int) error {
	if err := f.record(Call{Op: "submit", Selector: selector, Index: index}); err != nil {
		return err
	}
	if err := f.checkIndex(selector, index); err != nil {
		return err
	}
	return f.load(ctx)
}

// EvaluateAndSettle implements browser.Driver.
func (f *Fake) EvaluateAndSettle(ctx context.Context, script string) error {
	if err := f.record(Call{Op: "evaluate", Text: script}); err != nil {
		return err
	}
	return f.load(ctx)
}

// SelectByLabel implements browser.Driver.
func (f *Fake) SelectByLabel(_ context.Context, selector, label string) (bool, error) {
	if err := f.record(Call{Op: "select", Selector: selector, Text: label}); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	opts, ok := f.Options[selector]
	if !ok {
		return false, fmt.Errorf("%w: %s", browser.ErrNoSuchNode, selector)
	}
	if !slices.Contains(opts, label) {
		return false, nil
	}
	if f.NavDelay <= 0 {
		f.selected = label
		f.page++
		return true, nil
	}
	time.AfterFunc(f.NavDelay, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.selected = label
		f.page++
	})
	return true, nil
}

// WaitReady implements browser.Driver.
func (f *Fake) WaitReady(_ context.Context, selector string) error {
	return f.record(Call{Op: "wait", Selector: selector})
}

// WaitVisible implements browser.Driver. It polls Counts until selector
// matches or WaitTimeout passes.
func (f *Fake) WaitVisible(ctx context.Context, selector string) error {
	if err := f.record(Call{Op: "wait-visible", Selector: selector}); err != nil {
		return err
	}
	timeout := f.WaitTimeout
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		f.mu.Lock()
		n := f.Counts[selector]
		f.mu.Unlock()
		if n > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s never became visible: %w", browser.ErrNoSuchNode, selector, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Text implements browser.Driver by querying the current HTML.
func (f *Fake) Text(_ context.Context, selector string) (string, error) {
	if err := f.record(Call{Op: "text", Selector: selector}); err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.current()))
	if err != nil {
		return "", fmt.Errorf("parse fake page: %w", err)
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", browser.ErrNoSuchNode, selector)
	}
	return sel.Text(), nil
}

// HTML implements browser.Driver.
func (f *Fake) HTML(_ context.Context) (string, error) {
	if err := f.record(Call{Op: "html"}); err != nil {
		return "", err
	}
	return f.current(), nil
}

// Logout implements browser.Session.
func (f *Fake) Logout(_ context.Context, selector string) error {
	if err := f.record(Call{Op: "logout", Selector: selector}); err != nil {
		return err
	}
	return f.checkIndex(selector, 0)
}

// Close implements browser.Session.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// Calls returns a copy of the recorded operations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallsOf returns the recorded operations named op.
func (f *Fake) CallsOf(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Page returns the current navigation generation.
func (f *Fake) Page() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

// Closed reports how many times Close was called.
func (f *Fake) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// load waits out NavDelay and then replaces the page.
func (f *Fake) load(ctx context.Context) error {
	if f.NavDelay > 0 {
		t := time.NewTimer(f.NavDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.page++
	return nil
}

func (f *Fake) current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page, ok := f.Pages[f.selected]; ok {
		return page
	}
	return f.DefaultHTML
}

func (f *Fake) checkIndex(selector string, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.Counts[selector]; index < 0 || index >= n {
		return fmt.Errorf("%w: %s[%d] (matched %d)", browser.ErrNoSuchNode, selector, index, n)
	}
	return nil
}
