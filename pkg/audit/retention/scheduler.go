package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers Pruner.Prune from a cron expression. Overlapping runs
// are skipped rather than queued.
type Scheduler struct {
	pruner *Pruner
	logger *slog.Logger

	mu    sync.Mutex
	cron  *cron.Cron
	entry cron.EntryID
	halt  chan struct{}
}

func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		logger: pruner.logger.With("component", "audit.scheduler"),
	}
}

// Start schedules pruning with the pruner's five-field PruneSchedule (cron
// descriptors such as @hourly are accepted). It does nothing when no
// schedule is configured. The schedule stops with ctx or Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	spec := s.pruner.config.PruneSchedule
	if spec == "" {
		s.logger.Info("no prune schedule configured")
		return nil
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("prune schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("scheduler already running")
	}

	cl := cronLogger{s.logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	s.entry = c.Schedule(sched, cron.FuncJob(func() { s.run(ctx) }))
	c.Start()
	s.cron = c
	s.halt = make(chan struct{})

	s.logger.Info("prune schedule active",
		"schedule", spec,
		"retention_days", s.pruner.config.RetentionDays,
		"max_records", s.pruner.config.MaxRecords,
	)

	go func(halt <-chan struct{}) {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-halt:
		}
	}(s.halt)
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	n, err := s.pruner.Prune(ctx)
	if err != nil {
		s.logger.Error("scheduled prune failed", "error", err)
		return
	}
	s.logger.Info("scheduled prune done", "deleted_count", n)
}

// Stop cancels the schedule, waiting for an in-flight prune to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, halt := s.cron, s.halt
	s.cron, s.halt = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	close(halt)
	<-c.Stop().Done()
	s.logger.Info("prune schedule stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// NextRun is the time of the next scheduled prune, nil when not scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return nil
	}
	next := s.cron.Entry(s.entry).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// cronLogger routes cron's own diagnostics to slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
