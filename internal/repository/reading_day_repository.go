package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"bookwyrm/internal/domain"
)

type ReadingDayRepository struct {
	db *sqlx.DB
}

func NewReadingDayRepository(db *sqlx.DB) *ReadingDayRepository {
	return &ReadingDayRepository{db: db}
}

// Create stores a reading day. A second record for the same date is an ErrConflict.
func (r *ReadingDayRepository) Create(ctx context.Context, readDate string) (*domain.ReadingDay, error) {
	day := &domain.ReadingDay{ReadDate: readDate, CreatedAt: time.Now().UTC()}

	query := r.db.Rebind(`INSERT INTO reading_days (read_date, created_at) VALUES (?, ?) RETURNING id`)
	if err := r.db.QueryRowxContext(ctx, query, day.ReadDate, day.CreatedAt).Scan(&day.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: reading already recorded for %s", domain.ErrConflict, readDate)
		}
		return nil, domain.NewStoreError("create reading day", err)
	}
	return day, nil
}

func (r *ReadingDayRepository) Exists(ctx context.Context, readDate string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM reading_days WHERE read_date = ?`), readDate)
	if err != nil {
		return false, domain.NewStoreError("check reading day", err)
	}
	return count > 0, nil
}

// CountBetween counts reading days in the inclusive date range.
func (r *ReadingDayRepository) CountBetween(ctx context.Context, from, to string) (int64, error) {
	var count int64
	query := r.db.Rebind(`SELECT COUNT(*) FROM reading_days WHERE read_date >= ? AND read_date <= ?`)
	if err := r.db.GetContext(ctx, &count, query, from, to); err != nil {
		return 0, domain.NewStoreError("count reading days", err)
	}
	return count, nil
}
