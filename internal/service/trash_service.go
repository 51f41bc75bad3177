package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bookwyrm/internal/domain"
	"bookwyrm/internal/metrics"
	"bookwyrm/internal/service/s3"
)

// Purge paths, used as a metrics label and in logs.
const (
	purgeDirect     = "direct"
	purgeEmptyTrash = "empty_trash"
	purgeSweep      = "sweep"
)

// TrashService moves books between active, trashed and destroyed.
type TrashService struct {
	books         BookStore
	photos        *PhotoService
	blobs         s3.Storage
	retentionDays int
	metrics       *metrics.Trash
	logger        *slog.Logger
	now           func() time.Time
}

func NewTrashService(
	books BookStore,
	photos *PhotoService,
	blobs s3.Storage,
	retentionDays int,
	m *metrics.Trash,
	logger *slog.Logger,
) *TrashService {
	if m == nil {
		m = metrics.NewTrash(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TrashService{
		books:         books,
		photos:        photos,
		blobs:         blobs,
		retentionDays: retentionDays,
		metrics:       m,
		logger:        logger.With("component", "trash"),
		now:           time.Now,
	}
}

// RetentionDays is the window a trashed book is kept for.
func (s *TrashService) RetentionDays() int {
	return s.retentionDays
}

// MoveToTrash soft-deletes a book. Trashing a trashed book refreshes deleted_at.
func (s *TrashService) MoveToTrash(ctx context.Context, id uuid.UUID) error {
	now := s.now().UTC()
	if err := s.books.SetDeletion(ctx, id, &now); err != nil {
		return fmt.Errorf("failed to move book %s to trash: %w", id, err)
	}

	s.metrics.BooksTrashed.Inc()
	s.logger.Info("book moved to trash", "book_id", id, "deleted_at", now)
	return nil
}

// Restore brings a trashed book back and returns it as re-read from the store.
func (s *TrashService) Restore(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get book %s: %w", id, err)
	}

	if !book.IsDeleted {
		return nil, fmt.Errorf("%w: This book is not in trash.", domain.ErrInvalidState)
	}

	s.logger.Info("restoring book", "book_id", id, "title", book.Title)

	if err := s.books.SetDeletion(ctx, id, nil); err != nil {
		return nil, fmt.Errorf("failed to restore book %s: %w", id, err)
	}

	restored, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read restored book %s: %w", id, err)
	}
	if restored.IsDeleted || restored.DeletedAt != nil {
		s.metrics.RestoreFailed.Inc()
		s.logger.Error("book is still marked as deleted after restore",
			"book_id", id,
			"title", restored.Title,
			"author", restored.Author,
			"is_deleted", restored.IsDeleted,
			"deleted_at", restored.DeletedAt,
		)
		return nil, fmt.Errorf("%w: book %s is still marked as deleted", domain.ErrRestoreFailed, id)
	}

	if s.photos != nil {
		if err := s.photos.AttachTo(ctx, []*domain.Book{restored}); err != nil {
			return nil, err
		}
	}

	s.metrics.BooksRestored.Inc()
	s.logger.Info("book restored", "book_id", id)
	return restored, nil
}

// DeletePermanently destroys a book, active or trashed, with all of its photos.
func (s *TrashService) DeletePermanently(ctx context.Context, id uuid.UUID) error {
	return s.purge(ctx, id, purgeDirect, domain.BookFilter{})
}

// purge deletes the book only while it still matches filter, so a book
// restored after it was selected survives.
func (s *TrashService) purge(ctx context.Context, id uuid.UUID, path string, filter domain.BookFilter) error {
	photos, err := s.books.DeleteByIDWhere(ctx, id, filter)
	if err != nil {
		return fmt.Errorf("failed to delete book %s permanently: %w", id, err)
	}

	s.metrics.BooksPurged.WithLabelValues(path).Inc()
	s.logger.Info("book permanently deleted", "book_id", id, "path", path, "photos", len(photos))

	s.reclaimBlobs(ctx, photos)
	return nil
}

// EmptyTrash destroys every trashed book and returns how many were removed.
func (s *TrashService) EmptyTrash(ctx context.Context) (int64, error) {
	expected, err := s.books.CountWhere(ctx, domain.TrashedBooks())
	if err != nil {
		return 0, fmt.Errorf("failed to count trash: %w", err)
	}
	if expected == 0 {
		return 0, nil
	}

	deleted, photos, err := s.books.DeleteWhere(ctx, domain.TrashedBooks())
	if err != nil {
		return 0, fmt.Errorf("failed to empty trash: %w", err)
	}
	if deleted != expected {
		s.logger.Warn("trash changed while it was being emptied",
			"counted", expected,
			"deleted", deleted,
		)
	}

	s.metrics.BooksPurged.WithLabelValues(purgeEmptyTrash).Add(float64(deleted))
	s.logger.Info("trash emptied", "deleted_count", deleted, "photos", len(photos))

	s.reclaimBlobs(ctx, photos)
	return deleted, nil
}

// ListTrash returns the trashed books, most recently deleted first.
func (s *TrashService) ListTrash(ctx context.Context) ([]domain.TrashItem, error) {
	books, err := s.books.FindWhere(ctx, domain.TrashedBooks())
	if err != nil {
		return nil, fmt.Errorf("failed to get trash items: %w", err)
	}

	ptrs := make([]*domain.Book, len(books))
	for i := range books {
		ptrs[i] = &books[i]
	}
	if s.photos != nil {
		if err := s.photos.AttachTo(ctx, ptrs); err != nil {
			return nil, err
		}
	}

	now := s.now()
	items := make([]domain.TrashItem, 0, len(books))
	for _, b := range books {
		items = append(items, domain.TrashItem{
			Book:                       b,
			DaysInTrash:                b.DaysInTrash(now),
			DaysUntilPermanentDeletion: b.DaysUntilPermanentDeletion(s.retentionDays, now),
		})
	}
	return items, nil
}

// DaysUntilPermanentDeletion is nil for an active book, otherwise the days left before the sweep may reclaim it.
func (s *TrashService) DaysUntilPermanentDeletion(book *domain.Book) *int {
	return book.DaysUntilPermanentDeletion(s.retentionDays, s.now())
}

// reclaimBlobs deletes photo objects after their rows are gone. Failures only
// leave orphaned objects behind, so they are logged and counted.
func (s *TrashService) reclaimBlobs(ctx context.Context, photos []domain.BookPhoto) {
	if s.blobs == nil {
		return
	}
	for _, photo := range photos {
		for _, key := range photo.ObjectKeys() {
			if err := s.blobs.DeleteObject(ctx, key); err != nil && !errors.Is(err, s3.ErrObjectNotFound) {
				s.metrics.PhotoBlobFails.Inc()
				s.logger.Warn("failed to delete photo object",
					"book_id", photo.BookID,
					"photo_id", photo.ID,
					"key", key,
					"error", err,
				)
			}
		}
	}
}
