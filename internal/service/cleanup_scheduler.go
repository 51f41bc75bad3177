package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"bookwyrm/internal/domain"
)

// CleanupScheduler runs the retention sweep on a cron schedule inside the server process.
type CleanupScheduler struct {
	cleanup       *CleanupService
	schedule      string
	retentionDays int
	cron          *cron.Cron
	logger        *slog.Logger

	mu      sync.Mutex
	running bool
}

func NewCleanupScheduler(cleanup *CleanupService, schedule string, retentionDays int, logger *slog.Logger) *CleanupScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "retention.scheduler")

	cl := cronLogger{logger: logger}
	return &CleanupScheduler{
		cleanup:       cleanup,
		schedule:      schedule,
		retentionDays: retentionDays,
		cron:          cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:        logger,
	}
}

// Start registers the sweep job and starts the cron loop. An empty schedule
// leaves the scheduler idle. The scheduler stops itself when ctx is done.
func (s *CleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("trash cleanup schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule trash cleanup: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("trash cleanup scheduler started",
		"schedule", s.schedule,
		"retention_days", s.retentionDays,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *CleanupScheduler) run(ctx context.Context) {
	s.logger.Info("starting scheduled trash cleanup")

	report, err := s.cleanup.Sweep(ctx, s.retentionDays, false)
	if err != nil {
		if errors.Is(err, domain.ErrSweepInProgress) {
			s.logger.Info("trash cleanup already running elsewhere, skipping")
			return
		}
		s.logger.Error("scheduled trash cleanup failed", "error", err)
		return
	}

	s.logger.Info("scheduled trash cleanup completed",
		"candidates", len(report.Candidates),
		"deleted", report.Deleted,
		"failed", len(report.Failures),
	)
}

// Stop stops the cron loop and waits for a running sweep to finish.
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("trash cleanup scheduler stopped")
	}
}

func (s *CleanupScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep, or nil when nothing is scheduled.
func (s *CleanupScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
