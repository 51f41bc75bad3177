package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"bookwyrm/internal/domain"
	"bookwyrm/internal/service/s3"
)

// MaxPhotoSize is the largest photo upload accepted.
const MaxPhotoSize = 10 << 20

// Thumbnailer renders a reduced JPEG copy of an image.
type Thumbnailer interface {
	Thumbnail(data []byte) ([]byte, error)
}

// PhotoService stores book photos in the blob store and their metadata in the database.
type PhotoService struct {
	books       BookStore
	photos      PhotoStore
	blobs       s3.Storage
	thumbnailer Thumbnailer
	baseURL     string
	logger      *slog.Logger
}

func NewPhotoService(
	books BookStore,
	photos PhotoStore,
	blobs s3.Storage,
	thumbnailer Thumbnailer,
	baseURL string,
	logger *slog.Logger,
) *PhotoService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotoService{
		books:       books,
		photos:      photos,
		blobs:       blobs,
		thumbnailer: thumbnailer,
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      logger.With("component", "photos"),
	}
}

// Upload attaches a photo to an active book.
func (s *PhotoService) Upload(ctx context.Context, upload domain.PhotoUpload) (*domain.BookPhoto, error) {
	if !strings.HasPrefix(upload.ContentType, "image/") {
		return nil, fmt.Errorf("%w: file must be an image", domain.ErrValidation)
	}
	if len(upload.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", domain.ErrValidation)
	}
	if len(upload.Data) > MaxPhotoSize {
		return nil, fmt.Errorf("%w: file size must be less than 10MB", domain.ErrValidation)
	}

	if _, err := s.activeBook(ctx, upload.BookID); err != nil {
		return nil, err
	}

	objectID := uuid.New()
	photo := &domain.BookPhoto{
		BookID:      upload.BookID,
		S3Key:       fmt.Sprintf("books/%s/photos/%s", upload.BookID, objectID),
		ContentType: upload.ContentType,
		SizeBytes:   int64(len(upload.Data)),
	}

	if err := s.blobs.UploadBytes(ctx, photo.S3Key, upload.Data, upload.ContentType); err != nil {
		return nil, fmt.Errorf("failed to upload photo: %w", err)
	}

	if thumbKey, ok := s.storeThumbnail(ctx, upload.BookID, objectID, upload.Data); ok {
		photo.ThumbnailKey = &thumbKey
	}

	if err := s.photos.Create(ctx, photo); err != nil {
		s.discard(ctx, photo.ObjectKeys())
		return nil, fmt.Errorf("failed to save photo: %w", err)
	}

	s.logger.Info("photo uploaded",
		"book_id", photo.BookID,
		"photo_id", photo.ID,
		"size_bytes", photo.SizeBytes,
	)
	s.decorate(photo)
	return photo, nil
}

// storeThumbnail renders and uploads a thumbnail. A photo without one is
// still usable, so failures only log.
func (s *PhotoService) storeThumbnail(ctx context.Context, bookID, objectID uuid.UUID, data []byte) (string, bool) {
	if s.thumbnailer == nil {
		return "", false
	}

	thumb, err := s.thumbnailer.Thumbnail(data)
	if err != nil {
		s.logger.Warn("failed to generate thumbnail", "book_id", bookID, "error", err)
		return "", false
	}

	key := fmt.Sprintf("books/%s/thumbnails/%s.jpg", bookID, objectID)
	if err := s.blobs.UploadBytes(ctx, key, thumb, "image/jpeg"); err != nil {
		s.logger.Warn("failed to upload thumbnail", "book_id", bookID, "key", key, "error", err)
		return "", false
	}
	return key, true
}

// List returns the photos of an active book.
func (s *PhotoService) List(ctx context.Context, bookID uuid.UUID) ([]domain.BookPhoto, error) {
	if _, err := s.activeBook(ctx, bookID); err != nil {
		return nil, err
	}

	photos, err := s.photos.ListByBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	for i := range photos {
		s.decorate(&photos[i])
	}
	return photos, nil
}

// Delete removes one photo of a book.
func (s *PhotoService) Delete(ctx context.Context, bookID uuid.UUID, photoID int64) error {
	photo, err := s.photos.GetByID(ctx, photoID)
	if err != nil {
		return fmt.Errorf("failed to get photo %d: %w", photoID, err)
	}
	if photo.BookID != bookID {
		return fmt.Errorf("photo %d: %w", photoID, domain.ErrNotFound)
	}

	if err := s.photos.Delete(ctx, photoID); err != nil {
		return fmt.Errorf("failed to delete photo %d: %w", photoID, err)
	}

	s.discard(ctx, photo.ObjectKeys())
	s.logger.Info("photo deleted", "book_id", bookID, "photo_id", photoID)
	return nil
}

// Open returns the stored photo, or its thumbnail. A photo that has no
// thumbnail yet gets one rendered on first request.
func (s *PhotoService) Open(ctx context.Context, photoID int64, thumbnail bool) (s3.Object, error) {
	photo, err := s.photos.GetByID(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get photo %d: %w", photoID, err)
	}

	if !thumbnail {
		return s.open(ctx, photo.S3Key)
	}
	if photo.ThumbnailKey != nil {
		obj, err := s.open(ctx, *photo.ThumbnailKey)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return obj, err
		}
		s.logger.Warn("thumbnail object missing, regenerating", "photo_id", photoID, "key", *photo.ThumbnailKey)
	}

	original, err := s.open(ctx, photo.S3Key)
	if err != nil {
		return nil, err
	}
	defer original.Close()

	if s.thumbnailer == nil {
		return nil, fmt.Errorf("thumbnail for photo %d: %w", photoID, domain.ErrNotFound)
	}

	data, err := io.ReadAll(original)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo %d: %w", photoID, err)
	}
	thumb, err := s.thumbnailer.Thumbnail(data)
	if err != nil {
		return nil, fmt.Errorf("failed to generate thumbnail: %w", err)
	}
	return s3.NewObject(io.NopCloser(bytes.NewReader(thumb)), int64(len(thumb)), "image/jpeg"), nil
}

func (s *PhotoService) open(ctx context.Context, key string) (s3.Object, error) {
	obj, err := s.blobs.GetObject(ctx, key)
	if err != nil {
		if errors.Is(err, s3.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %v", domain.ErrNotFound, err)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return obj, nil
}

// AttachTo loads the photos of the given books in one query.
func (s *PhotoService) AttachTo(ctx context.Context, books []*domain.Book) error {
	if len(books) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}

	byBook, err := s.photos.ListByBooks(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load photos: %w", err)
	}

	for _, b := range books {
		photos := byBook[b.ID]
		if photos == nil {
			photos = []domain.BookPhoto{}
		}
		for i := range photos {
			s.decorate(&photos[i])
		}
		b.Photos = photos
	}
	return nil
}

func (s *PhotoService) decorate(photo *domain.BookPhoto) {
	photo.PhotoURL = fmt.Sprintf("%s/photos/%d", s.baseURL, photo.ID)
	if photo.ThumbnailKey != nil {
		thumbURL := photo.PhotoURL + "/thumbnail"
		photo.ThumbnailURL = &thumbURL
	}
}

func (s *PhotoService) activeBook(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get book %s: %w", id, err)
	}
	if book.IsDeleted {
		return nil, fmt.Errorf("book %s: %w", id, domain.ErrNotFound)
	}
	return book, nil
}

func (s *PhotoService) discard(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.blobs.DeleteObject(ctx, key); err != nil {
			s.logger.Warn("failed to delete photo object", "key", key, "error", err)
		}
	}
}
