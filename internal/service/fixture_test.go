package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"bookwyrm/internal/domain"
	"bookwyrm/internal/metrics"
	"bookwyrm/internal/repository"
	"bookwyrm/internal/repository/sqlitetest"
	"bookwyrm/internal/service/s3"
)

// safeBuffer lets several loggers write into one buffer.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeThumbnailer struct {
	err error
}

func (f fakeThumbnailer) Thumbnail(data []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("thumb:"), data...), nil
}

type fixture struct {
	books   *repository.BookRepository
	photoDB *repository.PhotoRepository
	locks   *repository.LockRepository
	blobs   *s3.MemoryStorage
	metrics *metrics.Trash
	logs    *safeBuffer
	logger  *slog.Logger

	photos  *PhotoService
	trash   *TrashService
	cleanup *CleanupService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore builds the services on top of wrap(books) when wrap is
// set, so tests can inject failures into single store calls.
func newFixtureWithStore(t *testing.T, wrap func(*repository.BookRepository) BookStore) *fixture {
	t.Helper()

	db := sqlitetest.Open(t)
	f := &fixture{
		books:   repository.NewBookRepository(db),
		photoDB: repository.NewPhotoRepository(db),
		locks:   repository.NewLockRepository(db),
		blobs:   s3.NewMemoryStorage(),
		metrics: metrics.NewTrash(nil),
		logs:    &safeBuffer{},
	}
	f.logger = slog.New(slog.NewTextHandler(f.logs, nil))

	var store BookStore = f.books
	if wrap != nil {
		store = wrap(f.books)
	}

	f.photos = NewPhotoService(store, f.photoDB, f.blobs, fakeThumbnailer{}, "http://test", f.logger)
	f.trash = NewTrashService(store, f.photos, f.blobs, domain.DefaultRetentionDays, f.metrics, f.logger)
	f.cleanup = NewCleanupService(store, f.trash, f.locks, time.Hour, f.metrics, f.logger)
	return f
}

func (f *fixture) addBook(t *testing.T, title string) *domain.Book {
	t.Helper()
	b := &domain.Book{Title: title, Author: "Author of " + title}
	if err := f.books.Create(context.Background(), b); err != nil {
		t.Fatalf("Create(%q) failed: %v", title, err)
	}
	return b
}

// addTrashed creates a book that was moved to the trash daysAgo days ago.
func (f *fixture) addTrashed(t *testing.T, title string, daysAgo int) *domain.Book {
	t.Helper()
	b := f.addBook(t, title)
	deletedAt := time.Now().UTC().Add(-time.Duration(daysAgo)*24*time.Hour - time.Minute)
	if err := f.books.SetDeletion(context.Background(), b.ID, &deletedAt); err != nil {
		t.Fatalf("SetDeletion(%q) failed: %v", title, err)
	}
	return b
}

func (f *fixture) addPhoto(t *testing.T, bookID uuid.UUID) *domain.BookPhoto {
	t.Helper()
	photo, err := f.photos.Upload(context.Background(), domain.PhotoUpload{
		BookID:      bookID,
		ContentType: "image/png",
		Data:        []byte("png-bytes"),
	})
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	return photo
}

func (f *fixture) exists(t *testing.T, id uuid.UUID) bool {
	t.Helper()
	_, err := f.books.FindByID(context.Background(), id)
	if errors.Is(err, domain.ErrNotFound) {
		return false
	}
	if err != nil {
		t.Fatalf("FindByID() failed: %v", err)
	}
	return true
}
