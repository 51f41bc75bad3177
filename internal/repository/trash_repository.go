package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bookwyrm/internal/domain"
)

const deleteBatchSize = 1000

// SetDeletion writes the lifecycle columns of a book. A nil deletedAt restores
// the book, a non-nil one moves it to the trash; is_deleted is derived from it.
func (r *BookRepository) SetDeletion(ctx context.Context, id uuid.UUID, deletedAt *time.Time) error {
	var deletedValue interface{}
	if deletedAt != nil {
		deletedValue = deletedAt.UTC()
	}

	query := r.db.Rebind(`
        UPDATE books
        SET is_deleted = ?,
            deleted_at = ?,
            updated_at = ?
        WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, deletedAt != nil, deletedValue, time.Now().UTC(), id)
	if err != nil {
		return domain.NewStoreError("set deletion", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.NewStoreError("set deletion", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteByID permanently removes a book and its photo rows in one transaction.
// The removed photos are returned so their blobs can be reclaimed.
func (r *BookRepository) DeleteByID(ctx context.Context, id uuid.UUID) ([]domain.BookPhoto, error) {
	return r.DeleteByIDWhere(ctx, id, domain.BookFilter{})
}

// DeleteByIDWhere is DeleteByID guarded by filter: the row is locked and
// re-checked inside the transaction, and a book that exists but no longer
// matches is left alone with ErrInvalidState.
func (r *BookRepository) DeleteByIDWhere(ctx context.Context, id uuid.UUID, filter domain.BookFilter) ([]domain.BookPhoto, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, domain.NewStoreError("begin transaction", err)
	}
	defer tx.Rollback()

	where, args := buildBookWhere(filter)
	if where == "" {
		where = " WHERE b.id = ?"
	} else {
		where += " AND b.id = ?"
	}
	args = append(args, id)

	// no-op write that locks the row until commit
	result, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE books AS b SET updated_at = b.updated_at`+where), args...)
	if err != nil {
		return nil, domain.NewStoreError("lock book", err)
	}
	locked, err := result.RowsAffected()
	if err != nil {
		return nil, domain.NewStoreError("lock book", err)
	}
	if locked == 0 {
		var exists int
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM books WHERE id = ?`), id); err != nil {
			return nil, domain.NewStoreError("delete book", err)
		}
		if exists == 0 {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: book %s no longer matches the delete filter", domain.ErrInvalidState, id)
	}

	photos, deleted, err := deleteBooksWithPhotos(ctx, tx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if deleted == 0 {
		return nil, domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.NewStoreError("commit transaction", err)
	}
	return photos, nil
}

// DeleteWhere permanently removes every book matching the filter, together
// with its photo rows, as one transaction. It returns the number of books removed.
func (r *BookRepository) DeleteWhere(ctx context.Context, filter domain.BookFilter) (int64, []domain.BookPhoto, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, nil, domain.NewStoreError("begin transaction", err)
	}
	defer tx.Rollback()

	where, args := buildBookWhere(filter)
	var ids []uuid.UUID
	if err := tx.SelectContext(ctx, &ids, tx.Rebind(`SELECT b.id FROM books b`+where), args...); err != nil {
		return 0, nil, domain.NewStoreError("select books for deletion", err)
	}
	if len(ids) == 0 {
		return 0, nil, nil
	}

	photos, deleted, err := deleteBooksWithPhotos(ctx, tx, ids)
	if err != nil {
		return 0, nil, err
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, domain.NewStoreError("commit transaction", err)
	}
	return deleted, photos, nil
}

// deleteBooksWithPhotos removes photos first, then the books, in batches.
func deleteBooksWithPhotos(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID) ([]domain.BookPhoto, int64, error) {
	var photos []domain.BookPhoto
	var deleted int64

	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		query, args, err := sqlx.In(`SELECT * FROM book_photos WHERE book_id IN (?) ORDER BY id`, batch)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to build photo query: %w", err)
		}
		var batchPhotos []domain.BookPhoto
		if err := tx.SelectContext(ctx, &batchPhotos, tx.Rebind(query), args...); err != nil {
			return nil, 0, domain.NewStoreError("select book photos", err)
		}
		photos = append(photos, batchPhotos...)

		query, args, err = sqlx.In(`DELETE FROM book_photos WHERE book_id IN (?)`, batch)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to build photo delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return nil, 0, domain.NewStoreError("delete book photos", err)
		}

		query, args, err = sqlx.In(`DELETE FROM books WHERE id IN (?)`, batch)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to build book delete: %w", err)
		}
		result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return nil, 0, domain.NewStoreError("delete books", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, 0, domain.NewStoreError("delete books", err)
		}
		deleted += rows
	}

	return photos, deleted, nil
}
