// Package app wires configuration into the long-lived services of a relay
// process: the run pipeline, metrics, the schedule and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/agrishikyo-relay/internal/api"
	"github.com/JakeFAU/agrishikyo-relay/internal/browser"
	"github.com/JakeFAU/agrishikyo-relay/internal/clock/system"
	"github.com/JakeFAU/agrishikyo-relay/internal/config"
	"github.com/JakeFAU/agrishikyo-relay/internal/id/uuid"
	"github.com/JakeFAU/agrishikyo-relay/internal/metrics"
	"github.com/JakeFAU/agrishikyo-relay/internal/notify"
	"github.com/JakeFAU/agrishikyo-relay/internal/notify/console"
	"github.com/JakeFAU/agrishikyo-relay/internal/notify/slack"
	"github.com/JakeFAU/agrishikyo-relay/internal/pipeline"
	"github.com/JakeFAU/agrishikyo-relay/internal/schedule"
)

const shutdownTimeout = 10 * time.Second

// Options adjust how the App is assembled.
type Options struct {
	// DryRun prints the table to Out instead of posting it.
	DryRun bool
	// Out receives dry-run output; nil means stdout.
	Out io.Writer
	// Launch overrides the headless Chrome launcher.
	Launch pipeline.Launcher
	// Notifier overrides the configured delivery.
	Notifier notify.Notifier
}

// App holds the shared services for one process.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Recorder
	clock   *system.Clock
	tracker *schedule.Tracker
	runner  *pipeline.Runner
}

// New assembles an App from validated configuration.
func New(cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clk, err := system.New(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	rec := metrics.New()

	launch := opts.Launch
	if launch == nil {
		launch = chromeLauncher(cfg, logger)
	}
	notifier := opts.Notifier
	switch {
	case notifier != nil:
	case opts.DryRun:
		notifier = console.New(opts.Out)
	default:
		notifier = slack.NewSender(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			IconEmoji:  cfg.Slack.IconEmoji,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Slack.Timeout,
			Intro: slack.Intro{
				SiteURL:  cfg.Slack.SiteURL,
				SheetURL: cfg.Slack.SheetURL,
			},
		}, rec, logger)
	}

	runner, err := pipeline.New(pipeline.FromConfig(cfg), pipeline.Deps{
		Launch:   launch,
		Notifier: notifier,
		Clock:    clk,
		IDs:      uuid.New(),
		Metrics:  rec,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		metrics: rec,
		clock:   clk,
		tracker: schedule.NewTracker(),
		runner:  runner,
	}, nil
}

func chromeLauncher(cfg config.Config, logger *zap.Logger) pipeline.Launcher {
	bcfg := browser.Config{
		ExecPath:      cfg.Browser.ExecPath,
		UserAgent:     cfg.Browser.UserAgent,
		Headless:      cfg.Browser.Headless,
		ActionTimeout: cfg.Browser.ActionTimeout,
	}
	return func(ctx context.Context) (browser.Session, error) {
		session, err := browser.Launch(ctx, bcfg, cfg.Site.LoginURL, logger.Named("browser"))
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// Logger returns the process logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Status returns the outcome of the most recent run.
func (a *App) Status() schedule.Status {
	return a.tracker.Snapshot()
}

// RunOnce performs a single relay and, when configured, pushes the run's
// metrics to the Pushgateway.
func (a *App) RunOnce(ctx context.Context) (pipeline.Result, error) {
	res, err := a.run(ctx)
	if url := a.cfg.Metrics.PushgatewayURL; url != "" {
		if perr := a.metrics.Push(context.WithoutCancel(ctx), url, a.cfg.Metrics.Job); perr != nil {
			a.logger.Warn("metrics push failed", zap.Error(perr))
		}
	}
	return res, err
}

func (a *App) run(ctx context.Context) (pipeline.Result, error) {
	a.tracker.Begin()
	res, err := a.runner.Run(ctx)
	a.tracker.Finish(res.RunID, res.Started, res.Duration, err)
	return res, err
}

// Handler returns the daemon's HTTP handler. next may be nil.
func (a *App) Handler(next api.NextRun) http.Handler {
	return api.NewServer(a.tracker, next, a.metrics.Handler(), a.metrics.Middleware, a.logger).Handler()
}

// Serve runs the schedule and the HTTP surface until ctx is cancelled or
// the process receives SIGINT or SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.metrics.WithProcessCollectors()
	sched, err := schedule.New(schedule.Config{
		Spec:       a.cfg.Schedule.Cron,
		Location:   a.clock.Location(),
		RunOnStart: a.cfg.Schedule.RunOnStart,
	}, func(ctx context.Context) error {
		_, err := a.run(ctx)
		return err
	}, a.logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(sched),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
			stop()
		}
	}()

	sched.Start(ctx)
	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	<-sched.Done()

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

// Close flushes the logger.
func (a *App) Close() {
	// Sync fails on some terminals; nothing useful can be done about it.
	_ = a.logger.Sync()
}
