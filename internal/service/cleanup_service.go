package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookwyrm/internal/domain"
	"bookwyrm/internal/metrics"
)

const sweepLockName = "trash_retention_sweep"

// CleanupService permanently removes books that have been in the trash longer
// than the retention window. Only one sweep runs at a time: an in-process
// mutex covers the scheduler, the optional RunLocker covers other processes.
type CleanupService struct {
	books   BookStore
	trash   *TrashService
	locker  RunLocker
	lockTTL time.Duration
	owner   string
	metrics *metrics.Trash
	logger  *slog.Logger
	now     func() time.Time

	mu sync.Mutex
}

func NewCleanupService(
	books BookStore,
	trash *TrashService,
	locker RunLocker,
	lockTTL time.Duration,
	m *metrics.Trash,
	logger *slog.Logger,
) *CleanupService {
	if m == nil {
		m = metrics.NewTrash(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if lockTTL <= 0 {
		lockTTL = time.Hour
	}

	host, _ := os.Hostname()
	return &CleanupService{
		books:   books,
		trash:   trash,
		locker:  locker,
		lockTTL: lockTTL,
		owner:   fmt.Sprintf("%s/%d/%s", host, os.Getpid(), uuid.NewString()),
		metrics: m,
		logger:  logger.With("component", "retention"),
		now:     time.Now,
	}
}

// Sweep finds trashed books whose deleted_at is older than retentionDays and,
// unless dryRun is set, deletes them one by one. A failed deletion is recorded
// in the report and the sweep moves on to the next candidate. The returned
// error is non-nil only when the sweep could not run or was cancelled.
func (s *CleanupService) Sweep(ctx context.Context, retentionDays int, dryRun bool) (*domain.SweepReport, error) {
	if retentionDays < 0 {
		return nil, &domain.SweepError{
			RetentionDays: retentionDays,
			Cause:         fmt.Errorf("%w: retention days must not be negative", domain.ErrValidation),
		}
	}

	if !s.mu.TryLock() {
		s.metrics.SweepRuns.WithLabelValues(metrics.ResultSkipped).Inc()
		return nil, domain.ErrSweepInProgress
	}
	defer s.mu.Unlock()

	if s.locker != nil {
		acquired, err := s.locker.TryAcquire(ctx, sweepLockName, s.owner, s.lockTTL)
		if err != nil {
			s.metrics.SweepRuns.WithLabelValues(metrics.ResultError).Inc()
			return nil, &domain.SweepError{RetentionDays: retentionDays, Cause: err}
		}
		if !acquired {
			s.metrics.SweepRuns.WithLabelValues(metrics.ResultSkipped).Inc()
			return nil, domain.ErrSweepInProgress
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), sweepLockName, s.owner); err != nil {
				s.logger.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	started := time.Now()
	report, err := s.sweep(ctx, retentionDays, dryRun)
	s.metrics.SweepDuration.Observe(time.Since(started).Seconds())

	switch {
	case err != nil:
		s.metrics.SweepRuns.WithLabelValues(metrics.ResultError).Inc()
	case dryRun:
		s.metrics.SweepRuns.WithLabelValues(metrics.ResultDryRun).Inc()
	case len(report.Failures) > 0:
		s.metrics.SweepRuns.WithLabelValues(metrics.ResultPartial).Inc()
	default:
		s.metrics.SweepRuns.WithLabelValues(metrics.ResultSuccess).Inc()
	}
	if report != nil && !dryRun {
		s.metrics.SweepFailures.Add(float64(len(report.Failures)))
	}
	if err == nil {
		s.metrics.LastSweepUnix.SetToCurrentTime()
	}

	return report, err
}

func (s *CleanupService) sweep(ctx context.Context, retentionDays int, dryRun bool) (*domain.SweepReport, error) {
	now := s.now().UTC()
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)

	report := &domain.SweepReport{
		RetentionDays: retentionDays,
		Cutoff:        cutoff,
		DryRun:        dryRun,
		Candidates:    []domain.SweepCandidate{},
	}

	books, err := s.books.FindWhere(ctx, domain.TrashedBefore(cutoff))
	if err != nil {
		return nil, &domain.SweepError{RetentionDays: retentionDays, Cause: err}
	}

	for i := range books {
		b := &books[i]
		candidate := domain.SweepCandidate{
			ID:          b.ID,
			Title:       b.Title,
			Author:      b.Author,
			DaysInTrash: b.DaysInTrash(now),
		}
		if b.DeletedAt != nil {
			candidate.DeletedAt = *b.DeletedAt
		}
		report.Candidates = append(report.Candidates, candidate)
	}

	if len(report.Candidates) == 0 {
		s.logger.Info("no books to delete", "retention_days", retentionDays, "cutoff", cutoff)
		return report, nil
	}

	if dryRun {
		s.logger.Info("dry run: books past retention",
			"count", len(report.Candidates),
			"retention_days", retentionDays,
			"cutoff", cutoff,
		)
		for _, c := range report.Candidates {
			s.logger.Info("would delete book",
				"book_id", c.ID,
				"title", c.Title,
				"author", c.Author,
				"days_in_trash", c.DaysInTrash,
			)
		}
		return report, nil
	}

	eligible := domain.TrashedBefore(cutoff)
	for i, c := range report.Candidates {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("sweep cancelled",
				"deleted", report.Deleted,
				"skipped", report.Skipped,
				"remaining", len(report.Candidates)-i,
			)
			return report, &domain.SweepError{RetentionDays: retentionDays, Cause: err}
		}

		s.logger.Info("permanently deleting book",
			"book_id", c.ID,
			"title", c.Title,
			"author", c.Author,
			"days_in_trash", c.DaysInTrash,
		)

		if err := s.trash.purge(ctx, c.ID, purgeSweep, eligible); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				s.logger.Warn("book disappeared before the sweep reached it", "book_id", c.ID)
				report.Skipped++
				continue
			case errors.Is(err, domain.ErrInvalidState):
				s.logger.Warn("book left the trash before the sweep reached it", "book_id", c.ID, "title", c.Title)
				report.Skipped++
				continue
			}
			s.logger.Error("failed to delete book", "book_id", c.ID, "title", c.Title, "error", err)
			report.Failures = append(report.Failures, domain.SweepFailure{
				ID:    c.ID,
				Title: c.Title,
				Error: err.Error(),
			})
			continue
		}
		report.Deleted++
	}

	s.logger.Info(report.Summary(),
		"deleted", report.Deleted,
		"failed", len(report.Failures),
		"skipped", report.Skipped,
		"retention_days", retentionDays,
	)
	return report, nil
}
