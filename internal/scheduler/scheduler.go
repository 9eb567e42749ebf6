// Package scheduler runs the update on a cron schedule inside one process,
// and optionally whenever a watched export directory changes. Runs never
// overlap: a trigger that fires while the previous run is still going is
// skipped.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled run.
type Job func(ctx context.Context) error

// Scheduler wraps a cron instance with a single entry.
type Scheduler struct {
	spec   string
	job    Job
	runNow bool
	logger *slog.Logger
	cron   *cron.Cron

	watchDirs []string
	debounce  time.Duration
}

// Option tweaks a Scheduler.
type Option func(*Scheduler)

// WithRunNow runs the job once immediately when Run starts.
func WithRunNow(v bool) Option { return func(s *Scheduler) { s.runNow = v } }

// WithLocation evaluates the schedule in loc instead of time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.cron = newCron(s.logger, cron.WithLocation(loc))
		}
	}
}

// New validates spec, a standard five-field cron expression or a
// descriptor such as "@daily".
func New(spec string, job Job, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Scheduler{spec: spec, job: job, logger: logger}
	s.cron = newCron(logger)
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func newCron(logger *slog.Logger, opts ...cron.Option) *cron.Cron {
	l := cronLogger{logger}
	return cron.New(append([]cron.Option{
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	}, opts...)...)
}

// Run blocks until ctx is canceled, then waits for a running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() { s.execute(ctx) })
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	job := s.cron.Entry(id).WrappedJob

	// Runs started outside cron are not awaited by Stop.
	var wg sync.WaitGroup
	if len(s.watchDirs) > 0 {
		w, err := s.startWatch(ctx, &wg, job)
		if err != nil {
			return err
		}
		defer w.Close()
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.spec, "next", s.cron.Entry(id).Next)

	if s.runNow {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job.Run()
		}()
	}

	<-ctx.Done()
	s.logger.Info("scheduler stopping, waiting for the running job")
	<-s.cron.Stop().Done()
	wg.Wait()
	return nil
}

func (s *Scheduler) execute(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	if err := s.job(ctx); err != nil {
		s.logger.Error("scheduled run failed", "error", err, "elapsed", time.Since(started))
		return
	}
	s.logger.Info("scheduled run finished", "elapsed", time.Since(started))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
