// Package pipeline runs one end-to-end relay: sign in, extract each
// commodity's report, combine, deliver, sign out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/agrishikyo-relay/internal/auth"
	"github.com/JakeFAU/agrishikyo-relay/internal/browser"
	"github.com/JakeFAU/agrishikyo-relay/internal/config"
	"github.com/JakeFAU/agrishikyo-relay/internal/logging"
	"github.com/JakeFAU/agrishikyo-relay/internal/market"
	"github.com/JakeFAU/agrishikyo-relay/internal/notify"
	"github.com/JakeFAU/agrishikyo-relay/internal/report"
)

// ErrNoKeywords indicates a run was requested with nothing to query.
var ErrNoKeywords = errors.New("no keywords configured")

const logoutTimeout = 15 * time.Second

// Launcher starts a browser session positioned on the login page.
type Launcher func(ctx context.Context) (browser.Session, error)

// Clock supplies time and cancellable waits.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Recorder receives run and extraction measurements.
type Recorder interface {
	ObserveRun(err error, started time.Time, duration time.Duration)
	ObserveRows(item string, rows int)
}

// Config holds everything a run needs besides its collaborators.
type Config struct {
	Keywords        []string
	Cities          []string
	Schema          report.Schema
	Navigator       report.NavigatorConfig
	Layout          auth.Layout
	Credentials     config.Credentials
	SettleDelay     time.Duration
	KeywordInterval time.Duration
	RunTimeout      time.Duration
}

// FromConfig derives a run Config from the application configuration.
func FromConfig(cfg config.Config) Config {
	return Config{
		Keywords:  cfg.Keywords(),
		Cities:    cfg.Report.Cities,
		Schema:    cfg.Report.Schema,
		Navigator: cfg.Navigator(),
		Layout: auth.Layout{
			Input:  cfg.Site.LoginInput,
			Logout: cfg.LogoutSelector(),
		},
		Credentials:     cfg.Auth,
		SettleDelay:     cfg.Browser.SettleDelay,
		KeywordInterval: cfg.Browser.KeywordInterval,
		RunTimeout:      cfg.Browser.RunTimeout,
	}
}

// Deps are the Runner's collaborators. Metrics may be nil.
type Deps struct {
	Launch   Launcher
	Notifier notify.Notifier
	Clock    Clock
	IDs      IDGenerator
	Metrics  Recorder
	Logger   *zap.Logger
}

// Result summarizes a successful run.
type Result struct {
	RunID    string
	Table    market.Table
	Started  time.Time
	Duration time.Duration
}

// Runner executes relay runs. Runs are sequential; callers must not invoke
// Run concurrently on the same Runner.
type Runner struct {
	cfg  Config
	deps Deps
}

// New constructs a Runner.
func New(cfg Config, deps Deps) (*Runner, error) {
	switch {
	case deps.Launch == nil:
		return nil, errors.New("pipeline: launcher is required")
	case deps.Notifier == nil:
		return nil, errors.New("pipeline: notifier is required")
	case deps.Clock == nil:
		return nil, errors.New("pipeline: clock is required")
	case deps.IDs == nil:
		return nil, errors.New("pipeline: id generator is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, deps: deps}, nil
}

// Run performs one relay. The browser session is always closed, and a
// signed-in session is always logged out, whatever the outcome.
func (r *Runner) Run(ctx context.Context) (res Result, err error) {
	logger := r.deps.Logger
	started := r.deps.Clock.Now()
	res = Result{Started: started}

	defer func() {
		res.Duration = r.deps.Clock.Now().Sub(started)
		if r.deps.Metrics != nil {
			r.deps.Metrics.ObserveRun(err, started, res.Duration)
		}
		if err != nil {
			logger.Error("relay failed", zap.Error(err), zap.Duration("duration", res.Duration))
			return
		}
		logger.Info("relay finished", zap.Int("rows", res.Table.Len()), zap.Duration("duration", res.Duration))
	}()

	if len(r.cfg.Keywords) == 0 {
		return res, ErrNoKeywords
	}
	res.RunID, err = r.deps.IDs.NewID()
	if err != nil {
		return res, fmt.Errorf("run id: %w", err)
	}
	logger = logging.ForRun(logger, res.RunID)

	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	logger.Info("relay started", zap.Strings("keywords", r.cfg.Keywords))
	session, err := r.deps.Launch(ctx)
	if err != nil {
		return res, fmt.Errorf("launch: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close browser: %w", cerr))
		}
	}()

	authn := auth.New(session, r.cfg.Credentials, r.cfg.Layout, logger)
	if err = authn.Login(ctx); err != nil {
		return res, fmt.Errorf("login: %w", err)
	}
	defer func() {
		if lerr := r.logout(ctx, session, logger); lerr != nil {
			err = errors.Join(err, lerr)
		}
	}()

	if err = r.deps.Clock.Sleep(ctx, r.cfg.SettleDelay); err != nil {
		return res, fmt.Errorf("settle after login: %w", err)
	}

	table, err := r.extractAll(ctx, session, logger)
	if err != nil {
		return res, err
	}
	res.Table = table

	if err = r.deps.Clock.Sleep(ctx, r.cfg.SettleDelay); err != nil {
		return res, fmt.Errorf("settle after extraction: %w", err)
	}
	if err = r.deps.Notifier.Notify(ctx, table); err != nil {
		return res, fmt.Errorf("notify: %w", err)
	}
	return res, nil
}

// extractAll opens each keyword's report in turn and combines the fragments.
func (r *Runner) extractAll(ctx context.Context, driver browser.Driver, logger *zap.Logger) (market.Table, error) {
	nav := report.NewNavigator(driver, r.cfg.Navigator, r.cfg.Schema, logger)
	ext := report.NewExtractor(r.cfg.Schema, r.cfg.Cities, logger)

	limit := rate.Inf
	if r.cfg.KeywordInterval > 0 {
		limit = rate.Every(r.cfg.KeywordInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	fragments := make([]market.Table, 0, len(r.cfg.Keywords))
	for _, keyword := range r.cfg.Keywords {
		if err := limiter.Wait(ctx); err != nil {
			return market.Table{}, fmt.Errorf("pace %s: %w", keyword, err)
		}
		if err := nav.Open(ctx, keyword); err != nil {
			return market.Table{}, fmt.Errorf("open %s: %w", keyword, err)
		}
		html, err := nav.Snapshot(ctx)
		if err != nil {
			return market.Table{}, fmt.Errorf("%s: %w", keyword, err)
		}
		fragment, err := ext.Extract(keyword, html)
		if err != nil {
			return market.Table{}, fmt.Errorf("extract %s: %w", keyword, err)
		}
		if r.deps.Metrics != nil {
			r.deps.Metrics.ObserveRows(keyword, fragment.Len())
		}
		fragments = append(fragments, fragment)
	}

	combined, err := market.Combine(fragments...)
	if err != nil {
		return market.Table{}, fmt.Errorf("combine: %w", err)
	}
	return combined, nil
}

// logout runs even when ctx is already cancelled so the site session is
// released.
func (r *Runner) logout(ctx context.Context, session browser.Session, logger *zap.Logger) error {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
	defer cancel()
	if err := session.Logout(lctx, r.cfg.Layout.Logout); err != nil {
		logger.Warn("logout failed", zap.Error(err))
		return fmt.Errorf("logout: %w", err)
	}
	logger.Info("logged out")
	return nil
}
