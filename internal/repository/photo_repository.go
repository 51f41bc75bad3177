package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bookwyrm/internal/domain"
)

type PhotoRepository struct {
	db *sqlx.DB
}

func NewPhotoRepository(db *sqlx.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

func (r *PhotoRepository) Create(ctx context.Context, photo *domain.BookPhoto) error {
	photo.UploadedAt = time.Now().UTC()

	query := r.db.Rebind(`
        INSERT INTO book_photos (book_id, s3_key, thumbnail_key, content_type, size_bytes, uploaded_at)
        VALUES (?, ?, ?, ?, ?, ?)
        RETURNING id`)

	err := r.db.QueryRowxContext(ctx, query,
		photo.BookID, photo.S3Key, photo.ThumbnailKey, photo.ContentType, photo.SizeBytes, photo.UploadedAt,
	).Scan(&photo.ID)
	if err != nil {
		return domain.NewStoreError("create photo", err)
	}
	return nil
}

func (r *PhotoRepository) GetByID(ctx context.Context, id int64) (*domain.BookPhoto, error) {
	var photo domain.BookPhoto
	err := r.db.GetContext(ctx, &photo, r.db.Rebind(`SELECT * FROM book_photos WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStoreError("get photo", err)
	}
	return &photo, nil
}

// ListByBooks returns the photos of the given books keyed by book id.
func (r *PhotoRepository) ListByBooks(ctx context.Context, bookIDs []uuid.UUID) (map[uuid.UUID][]domain.BookPhoto, error) {
	result := make(map[uuid.UUID][]domain.BookPhoto, len(bookIDs))
	if len(bookIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM book_photos WHERE book_id IN (?) ORDER BY uploaded_at, id`, bookIDs)
	if err != nil {
		return nil, err
	}

	var photos []domain.BookPhoto
	if err := r.db.SelectContext(ctx, &photos, r.db.Rebind(query), args...); err != nil {
		return nil, domain.NewStoreError("list photos", err)
	}
	for _, p := range photos {
		result[p.BookID] = append(result[p.BookID], p)
	}
	return result, nil
}

func (r *PhotoRepository) ListByBook(ctx context.Context, bookID uuid.UUID) ([]domain.BookPhoto, error) {
	byBook, err := r.ListByBooks(ctx, []uuid.UUID{bookID})
	if err != nil {
		return nil, err
	}
	if photos := byBook[bookID]; photos != nil {
		return photos, nil
	}
	return []domain.BookPhoto{}, nil
}

func (r *PhotoRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM book_photos WHERE id = ?`), id)
	if err != nil {
		return domain.NewStoreError("delete photo", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return domain.NewStoreError("delete photo", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
