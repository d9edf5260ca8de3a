// Package scheduler runs datasource commands on cron schedules.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/config"
	"github.com/kylinctl/kylinctl/internal/datasource"
)

// Resolver loads the datasource a schedule targets. *kylin.Project
// satisfies it.
type Resolver interface {
	SourceTypes() []datasource.Kind
	Datasource(ctx context.Context, name string, kind datasource.Kind) (datasource.Datasource, error)
}

// Invoker is a datasource with a command table, i.e. a cube or a model.
type Invoker interface {
	Commands() []string
	Invoke(ctx context.Context, name string, a datasource.Args) (json.RawMessage, error)
}

// Entry is one loaded schedule.
type Entry struct {
	Schedule config.ScheduleConfig
	Next     time.Time
	Prev     time.Time
}

// Scheduler manages cron-based datasource commands.
type Scheduler struct {
	cron     *cron.Cron
	resolver Resolver
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[cron.EntryID]config.ScheduleConfig
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTimeout bounds each run. The default is one hour.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// WithClock overrides the clock used for build windows.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a scheduler. A run still in progress when its next tick
// fires is skipped rather than overlapped.
func New(resolver Resolver, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger}
	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		resolver: resolver,
		logger:   logger,
		timeout:  time.Hour,
		now:      time.Now,
		entries:  make(map[cron.EntryID]config.ScheduleConfig),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load adds schedules. Invalid entries are skipped and reported together;
// the valid ones stay scheduled.
func (s *Scheduler) Load(schedules []config.ScheduleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, sc := range schedules {
		if err := validate(sc); err != nil {
			errs = append(errs, err)
			continue
		}
		sc := sc
		id, err := s.cron.AddFunc(sc.Cron, func() { s.fire(sc) })
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %s %s: invalid cron %q: %w", sc.Datasource, sc.Action, sc.Cron, err))
			continue
		}
		s.entries[id] = sc
		s.logger.Info("scheduled", "datasource", sc.Datasource, "action", sc.Action, "cron", sc.Cron)
	}
	return errors.Join(errs...)
}

func validate(sc config.ScheduleConfig) error {
	if sc.Datasource == "" || sc.Action == "" {
		return fmt.Errorf("schedule %q: datasource and action are required", sc.Cron)
	}
	if sc.Kind != "" {
		if _, err := datasource.ParseKind(sc.Kind); err != nil {
			return fmt.Errorf("schedule %s %s: %w", sc.Datasource, sc.Action, err)
		}
	}
	return nil
}

// Start starts the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "entries", len(s.Entries()))
}

// Stop stops the scheduler and waits for running commands to finish, or
// for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stopped with commands still running")
	}
	s.logger.Info("scheduler stopped")
}

// Entries lists the loaded schedules in firing order.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, e := range s.cron.Entries() {
		if sc, ok := s.entries[e.ID]; ok {
			out = append(out, Entry{Schedule: sc, Next: e.Next, Prev: e.Prev})
		}
	}
	return out
}

func (s *Scheduler) fire(sc config.ScheduleConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := s.now()
	if _, err := s.Run(ctx, sc); err != nil {
		s.logger.Warn("scheduled command failed",
			"datasource", sc.Datasource,
			"action", sc.Action,
			"error", err,
		)
		return
	}
	s.logger.Info("scheduled command submitted",
		"datasource", sc.Datasource,
		"action", sc.Action,
		"elapsed", s.now().Sub(start),
	)
}

// Run resolves the schedule's datasource and invokes its action once.
// A build covers the last cron period up to now.
func (s *Scheduler) Run(ctx context.Context, sc config.ScheduleConfig) (json.RawMessage, error) {
	if err := validate(sc); err != nil {
		return nil, err
	}
	kind := s.resolver.SourceTypes()[0]
	if sc.Kind != "" {
		kind = datasource.Kind(sc.Kind)
	}

	ds, err := s.resolver.Datasource(ctx, sc.Datasource, kind)
	if err != nil {
		return nil, err
	}
	inv, ok := ds.(Invoker)
	if !ok {
		return nil, fmt.Errorf("%s %s has no commands: %w", kind, sc.Datasource, apperrors.ErrUnsupportedAPI)
	}

	args := datasource.Args{End: s.now()}
	if sched, err := cron.ParseStandard(sc.Cron); err == nil {
		args.Start = windowStart(sched, args.End)
	}
	return inv.Invoke(ctx, sc.Action, args)
}

// maxLookback bounds the search for earlier activations, matching the
// five years cron itself searches forward.
const maxLookback = 5 * 365 * 24 * time.Hour

// windowStart returns end minus the period that ended with the latest
// activation of sched at or before end.
func windowStart(sched cron.Schedule, end time.Time) time.Time {
	if every, ok := sched.(cron.ConstantDelaySchedule); ok {
		return end.Add(-every.Delay)
	}
	last := prevActivation(sched, end.Add(time.Nanosecond))
	if last.IsZero() {
		return time.Time{}
	}
	prev := prevActivation(sched, last)
	if prev.IsZero() {
		return time.Time{}
	}
	return end.Add(-last.Sub(prev))
}

// prevActivation returns the latest activation of sched strictly before t,
// or the zero time when there is none within maxLookback. The lookback
// doubles until it holds an activation, which is then walked forward.
func prevActivation(sched cron.Schedule, t time.Time) time.Time {
	for back := time.Minute; back <= 2*maxLookback; back *= 2 {
		a := sched.Next(t.Add(-back))
		if a.IsZero() || !a.Before(t) {
			continue
		}
		for {
			n := sched.Next(a)
			if n.IsZero() || !n.Before(t) {
				return a
			}
			a = n
		}
	}
	return time.Time{}
}

// cronLogger adapts slog to cron's logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
