// Package scheduler runs the recurring-transaction sweep on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"

	"github.com/robfig/cron/v3"
)

// DefaultSpec runs the sweep daily at 02:00.
const DefaultSpec = "0 2 * * *"

// Sweeper generates due recurring transactions up to asOf.
type Sweeper interface {
	GenerateDue(ctx context.Context, asOf core.Date, scope services.Scope) (services.GenerationResult, error)
}

type Options struct {
	// Spec is a standard five-field cron expression.
	Spec string
	// Location is the timezone of both Spec and the sweep date.
	Location *time.Location
	// RunOnStart sweeps once before waiting for the first tick.
	RunOnStart bool
	// Timeout bounds a single sweep; zero means no limit.
	Timeout time.Duration
	Clock   func() time.Time
	Logger  *slog.Logger
}

type Scheduler struct {
	sweeper Sweeper
	cron    *cron.Cron
	loc     *time.Location
	now     func() time.Time
	timeout time.Duration
	onStart bool
	logger  *slog.Logger

	// one sweep at a time, whether from a tick or RunOnce
	mu sync.Mutex
}

func New(sweeper Sweeper, opts Options) (*Scheduler, error) {
	if sweeper == nil {
		return nil, errors.New("scheduler: nil sweeper")
	}
	if opts.Spec == "" {
		opts.Spec = DefaultSpec
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	cl := cronLogger{opts.Logger}
	c := cron.New(
		cron.WithLocation(opts.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s := &Scheduler{
		sweeper: sweeper,
		cron:    c,
		loc:     opts.Location,
		now:     opts.Clock,
		timeout: opts.Timeout,
		onStart: opts.RunOnStart,
		logger:  opts.Logger,
	}
	if _, err := c.AddFunc(opts.Spec, s.tick); err != nil {
		return nil, fmt.Errorf("scheduler: invalid cron spec %q: %w", opts.Spec, err)
	}
	return s, nil
}

// RunOnce sweeps every user up to today in the scheduler's timezone.
func (s *Scheduler) RunOnce(ctx context.Context) (services.GenerationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	asOf := core.DateOf(s.now().In(s.loc))
	started := time.Now()
	res, err := s.sweeper.GenerateDue(ctx, asOf, services.AllUsers)
	if err != nil {
		s.logger.ErrorContext(ctx, "Recurring sweep failed", "as_of", asOf.String(), "error", err)
		return res, err
	}
	s.logger.InfoContext(ctx, "Recurring sweep finished",
		"as_of", asOf.String(),
		"generated", res.Generated,
		"errors", len(res.Errors),
		"duration_ms", time.Since(started).Milliseconds())
	return res, nil
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for
// a sweep in progress to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.onStart {
		_, _ = s.RunOnce(ctx)
	}
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("Recurring scheduler started", "next_run", e.Next.Format(time.RFC3339))
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Recurring scheduler stopped")
	return nil
}

func (s *Scheduler) tick() {
	_, _ = s.RunOnce(context.Background())
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
