package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookwyrm/internal/domain"
)

// ReadingDayStore persists reading days.
type ReadingDayStore interface {
	Create(ctx context.Context, readDate string) (*domain.ReadingDay, error)
	Exists(ctx context.Context, readDate string) (bool, error)
	CountBetween(ctx context.Context, from, to string) (int64, error)
}

// ReadingService keeps the per-year count of days the user read.
type ReadingService struct {
	days   ReadingDayStore
	logger *slog.Logger
	now    func() time.Time
}

func NewReadingService(days ReadingDayStore, logger *slog.Logger) *ReadingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingService{days: days, logger: logger.With("component", "reading"), now: time.Now}
}

// Stats counts the reading days of the current calendar year.
func (s *ReadingService) Stats(ctx context.Context) (*domain.ReadingStats, error) {
	year := s.now().Year()
	total, err := s.countYear(ctx, year)
	if err != nil {
		return nil, err
	}
	return &domain.ReadingStats{TotalDaysRead: total, CurrentYear: year}, nil
}

// Record marks readDate (YYYY-MM-DD, today when empty) as a reading day.
// Recording the same day twice is rejected.
func (s *ReadingService) Record(ctx context.Context, readDate string) (*domain.ReadingDayRecorded, error) {
	var day time.Time
	readDate = strings.TrimSpace(readDate)
	if readDate == "" {
		day = s.now()
	} else {
		parsed, err := time.Parse(domain.ReadingDateLayout, readDate)
		if err != nil {
			return nil, fmt.Errorf("%w: read_date must be in YYYY-MM-DD format", domain.ErrValidation)
		}
		day = parsed
	}
	date := day.Format(domain.ReadingDateLayout)

	exists, err := s.days.Exists(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to check reading day: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: reading already recorded for this date", domain.ErrInvalidState)
	}

	if _, err := s.days.Create(ctx, date); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: reading already recorded for this date", domain.ErrInvalidState)
		}
		return nil, fmt.Errorf("failed to record reading day: %w", err)
	}

	total, err := s.countYear(ctx, day.Year())
	if err != nil {
		return nil, err
	}

	s.logger.Info("reading day recorded", "read_date", date, "total_days_read", total)
	return &domain.ReadingDayRecorded{Success: true, ReadDate: date, TotalDaysRead: total}, nil
}

func (s *ReadingService) countYear(ctx context.Context, year int) (int64, error) {
	from := fmt.Sprintf("%04d-01-01", year)
	to := fmt.Sprintf("%04d-12-31", year)
	total, err := s.days.CountBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to count reading days: %w", err)
	}
	return total, nil
}
