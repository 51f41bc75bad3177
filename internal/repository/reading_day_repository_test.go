package repository

import (
	"context"
	"errors"
	"testing"

	"bookwyrm/internal/domain"
	"bookwyrm/internal/repository/sqlitetest"
)

func TestReadingDayRepository(t *testing.T) {
	repo := NewReadingDayRepository(sqlitetest.Open(t))
	ctx := context.Background()

	for _, d := range []string{"2025-12-31", "2026-01-01", "2026-03-15"} {
		day, err := repo.Create(ctx, d)
		if err != nil {
			t.Fatalf("Create(%s) failed: %v", d, err)
		}
		if day.ID == 0 {
			t.Errorf("Create(%s) did not assign an id", d)
		}
	}

	if _, err := repo.Create(ctx, "2026-01-01"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate day: expected ErrConflict, got %v", err)
	}

	exists, err := repo.Exists(ctx, "2026-03-15")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v; want true", exists, err)
	}
	exists, err = repo.Exists(ctx, "2026-03-16")
	if err != nil || exists {
		t.Errorf("Exists() = %v, %v; want false", exists, err)
	}

	count, err := repo.CountBetween(ctx, "2026-01-01", "2026-12-31")
	if err != nil {
		t.Fatalf("CountBetween() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("CountBetween() = %d, want 2", count)
	}
}
