package browser

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls how the headless browser is started.
type Config struct {
	ExecPath      string
	UserAgent     string
	Headless      bool
	ActionTimeout time.Duration
	// NavigationGrace is how long a click or script may take to start a
	// navigation before it is treated as staying on the page.
	NavigationGrace time.Duration
}

const (
	defaultActionTimeout   = 30 * time.Second
	defaultNavigationGrace = 2 * time.Second
)

// Chromedp is a Session backed by chromedp and headless Chrome.
type Chromedp struct {
	cfg           Config
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	closeOnce     sync.Once
}

var _ Session = (*Chromedp)(nil)

// Launch starts Chrome and opens startURL. The returned session owns the
// browser process; callers must Close it.
func Launch(ctx context.Context, cfg Config, startURL string, logger *zap.Logger) (*Chromedp, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = defaultActionTimeout
	}
	if cfg.NavigationGrace <= 0 {
		cfg.NavigationGrace = defaultNavigationGrace
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	sugar := logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	)
	s := &Chromedp{
		cfg:           cfg,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
	if err := ctx.Err(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	// The first Run allocates the browser and must use the long-lived context.
	if err := chromedp.Run(browserCtx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: chromedp warmup: %w", ErrLaunch, err)
	}
	if startURL != "" {
		if err := s.Navigate(ctx, startURL); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
		}
	}
	logger.Info("browser launched", zap.Bool("headless", cfg.Headless), zap.String("start_url", startURL))
	return s, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Close cancels the browser and allocator contexts, terminating Chrome.
func (s *Chromedp) Close() error {
	s.closeOnce.Do(func() {
		s.browserCancel()
		s.allocCancel()
		s.logger.Info("browser closed")
	})
	return nil
}

// Navigate loads url and waits for the body to be ready.
func (s *Chromedp) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Count returns the number of nodes matching selector without waiting.
func (s *Chromedp) Count(ctx context.Context, selector string) (int, error) {
	nodes, err := s.nodes(ctx, selector)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// TypeAt sends text as key events to the index-th match of selector.
func (s *Chromedp) TypeAt(ctx context.Context, selector string, index int, text string) error {
	node, err := s.nodeAt(ctx, selector, index)
	if err != nil {
		return err
	}
	if err := s.run(ctx, chromedp.KeyEventNode(node, text)); err != nil {
		return fmt.Errorf("type into %s[%d]: %w", selector, index, err)
	}
	return nil
}

// Submit clicks the index-th match of selector and waits for the navigation
// the click starts, if any.
func (s *Chromedp) Submit(ctx context.Context, selector string, index int) error {
	node, err := s.nodeAt(ctx, selector, index)
	if err != nil {
		return err
	}
	if err := s.settle(ctx, chromedp.MouseClickNode(node)); err != nil {
		return fmt.Errorf("submit %s[%d]: %w", selector, index, err)
	}
	return nil
}

// EvaluateAndSettle runs script in the page and waits for the navigation it
// starts, if any.
func (s *Chromedp) EvaluateAndSettle(ctx context.Context, script string) error {
	if err := s.settle(ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("evaluate %q: %w", script, err)
	}
	return nil
}

const (
	selectOK       = "ok"
	selectMissing  = "missing"
	selectNoOption = "no-option"
)

// selectScript matches option text after trimming, the way a user reads the
// dropdown, and fires change so the page re-renders its report.
const selectScript = `(function(sel, label) {
	const el = document.querySelector(sel);
	if (!el) { return %q; }
	for (const opt of el.options) {
		if (opt.text.trim() === label) {
			el.value = opt.value;
			el.dispatchEvent(new Event("change", { bubbles: true }));
			return %q;
		}
	}
	return %q;
})(%s, %s)`

// SelectByLabel chooses the option whose visible text equals label.
func (s *Chromedp) SelectByLabel(ctx context.Context, selector, label string) (bool, error) {
	script := fmt.Sprintf(selectScript, selectMissing, selectOK, selectNoOption,
		strconv.Quote(selector), strconv.Quote(label))
	var result string
	if err := s.run(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return false, fmt.Errorf("select %q in %s: %w", label, selector, err)
	}
	switch result {
	case selectOK:
		return true, nil
	case selectMissing:
		return false, fmt.Errorf("%w: %s", ErrNoSuchNode, selector)
	default:
		return false, nil
	}
}

// WaitReady blocks until selector is present and ready.
func (s *Chromedp) WaitReady(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

// WaitVisible blocks until selector is present and visible.
func (s *Chromedp) WaitVisible(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for visible %s: %w", selector, err)
	}
	return nil
}

const textScript = `(function(sel) {
	const el = document.querySelector(sel);
	return el ? { found: true, text: el.textContent } : { found: false, text: "" };
})(%s)`

// Text returns the text content of the first node matching selector.
func (s *Chromedp) Text(ctx context.Context, selector string) (string, error) {
	var res struct {
		Found bool   `json:"found"`
		Text  string `json:"text"`
	}
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(textScript, strconv.Quote(selector)), &res)); err != nil {
		return "", fmt.Errorf("read text of %s: %w", selector, err)
	}
	if !res.Found {
		return "", fmt.Errorf("%w: %s", ErrNoSuchNode, selector)
	}
	return res.Text, nil
}

// HTML returns the outer HTML of the document element.
func (s *Chromedp) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document html: %w", err)
	}
	return html, nil
}

// Logout clicks the first node matching selector and waits for the signed-out
// page.
func (s *Chromedp) Logout(ctx context.Context, selector string) error {
	if err := s.Submit(ctx, selector, 0); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.Info("logged out")
	return nil
}

func (s *Chromedp) nodes(ctx context.Context, selector string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	return nodes, nil
}

func (s *Chromedp) nodeAt(ctx context.Context, selector string, index int) (*cdp.Node, error) {
	nodes, err := s.nodes(ctx, selector)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(nodes) {
		return nil, fmt.Errorf("%w: %s[%d] (matched %d)", ErrNoSuchNode, selector, index, len(nodes))
	}
	return nodes[index], nil
}

// run executes actions against the browser tab, bounded by the action
// timeout and cancelled together with ctx.
func (s *Chromedp) run(ctx context.Context, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.ActionTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

// settle runs trigger and, when the main frame starts loading within the
// navigation grace period, waits until the new document is ready.
func (s *Chromedp) settle(ctx context.Context, trigger chromedp.Action) error {
	taskCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.ActionTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	frame := mainFrame(taskCtx)
	started := make(chan struct{}, 1)
	stopped := make(chan struct{}, 1)
	chromedp.ListenTarget(taskCtx, func(ev any) {
		switch e := ev.(type) {
		case *page.EventFrameStartedLoading:
			if frame == "" || e.FrameID == frame {
				signal(started)
			}
		case *page.EventFrameStoppedLoading:
			if frame == "" || e.FrameID == frame {
				signal(stopped)
			}
		}
	})

	if err := chromedp.Run(taskCtx, trigger); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}

	grace := time.NewTimer(s.cfg.NavigationGrace)
	defer grace.Stop()
	select {
	case <-started:
	case <-grace.C:
		return nil
	case <-taskCtx.Done():
		return fmt.Errorf("await navigation: %w", taskCtx.Err())
	}
	select {
	case <-stopped:
	case <-taskCtx.Done():
		return fmt.Errorf("await page load: %w", taskCtx.Err())
	}
	if err := chromedp.Run(taskCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

// mainFrame returns the id of the tab's top-level frame, which Chrome gives
// the same id as its target.
func mainFrame(ctx context.Context) cdp.FrameID {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return ""
	}
	return cdp.FrameID(c.Target.TargetID)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
