// Package schedule runs the relay on a cron schedule for daemon mode.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job performs one relay run.
type Job func(ctx context.Context) error

// Config configures the Scheduler.
type Config struct {
	// Spec is a five-field cron expression or a descriptor such as @daily.
	Spec string
	// Location interprets Spec; nil means UTC.
	Location *time.Location
	// RunOnStart triggers one run as soon as the scheduler starts.
	RunOnStart bool
}

// Scheduler fires Job on Spec, skipping a tick while the previous run is
// still in progress.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	job      Job
	logger   *zap.Logger
	entryID  cron.EntryID
	ctx      context.Context
	stopOnce sync.Once
	stopped  chan struct{}
	// running tracks runs started outside cron's own scheduling loop.
	running sync.WaitGroup
}

// New validates the cron spec and builds a Scheduler.
func New(cfg Config, job Job, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	logger = logger.Named("schedule")
	cl := cronLogger{sugar: logger.Sugar()}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Scheduler{
		cron:    c,
		cfg:     cfg,
		job:     job,
		logger:  logger,
		ctx:     context.Background(),
		stopped: make(chan struct{}),
	}
	id, err := c.AddFunc(cfg.Spec, s.fire)
	if err != nil {
		return nil, fmt.Errorf("schedule.cron %q: %w", cfg.Spec, err)
	}
	s.entryID = id
	return s, nil
}

// Start begins firing. Runs receive ctx, and the scheduler stops once ctx is
// done.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("cron", s.cfg.Spec),
		zap.String("location", s.cfg.Location.String()),
		zap.Time("next", s.Next()))

	if s.cfg.RunOnStart {
		// Goes through the entry's wrapped job so it shares the skip guard.
		job := s.cron.Entry(s.entryID).WrappedJob
		s.running.Add(1)
		go func() {
			defer s.running.Done()
			job.Run()
		}()
	}
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts the schedule and waits for a running job to finish. It is safe
// to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("scheduler stopping")
		<-s.cron.Stop().Done()
		s.running.Wait()
		close(s.stopped)
		s.logger.Info("scheduler stopped")
	})
}

// Done is closed once the scheduler has fully stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

// Next returns the next activation time after now.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Schedule.Next(time.Now().In(s.cfg.Location))
}

func (s *Scheduler) fire() {
	if err := s.ctx.Err(); err != nil {
		return
	}
	if err := s.job(s.ctx); err != nil {
		s.logger.Warn("scheduled run failed", zap.Error(err), zap.Time("next", s.Next()))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
