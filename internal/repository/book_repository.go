package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bookwyrm/internal/domain"
)

const bookColumns = `
        b.id, b.title, b.author, b.genre, g.name AS genre_name, b.rating, b.book_notes,
        b.to_be_read, b.is_read, b.shelved, b.favorite, b.publication_date, b.isbn,
        b.language, b.publisher, b.page_count, b.vibes, b.tags, b.emoji,
        b.is_deleted, b.deleted_at, b.created_at, b.updated_at`

const bookFrom = ` FROM books b LEFT JOIN genres g ON g.code = b.genre`

type BookRepository struct {
	db *sqlx.DB
}

func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

// Create inserts a new active book and assigns its id and timestamps.
func (r *BookRepository) Create(ctx context.Context, book *domain.Book) error {
	if book.ID == uuid.Nil {
		book.ID = uuid.New()
	}
	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now
	book.IsDeleted = false
	book.DeletedAt = nil

	query := r.db.Rebind(`
        INSERT INTO books (
            id, title, author, genre, rating, book_notes, to_be_read, is_read, shelved, favorite,
            publication_date, isbn, language, publisher, page_count, vibes, tags, emoji,
            is_deleted, deleted_at, created_at, updated_at
        )
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		book.ID, book.Title, book.Author, book.Genre, book.Rating, book.Notes,
		book.ToBeRead, book.IsRead, book.Shelved, book.Favorite,
		book.PublicationDate, book.ISBN, book.Language, book.Publisher, book.PageCount,
		book.Vibes, book.Tags, book.Emoji,
		false, nil, book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: a book with this isbn already exists", domain.ErrConflict)
		}
		return domain.NewStoreError("create book", err)
	}
	return nil
}

// Update overwrites the descriptive fields of an active book.
func (r *BookRepository) Update(ctx context.Context, book *domain.Book) error {
	book.UpdatedAt = time.Now().UTC()

	query := r.db.Rebind(`
        UPDATE books
        SET title = ?, author = ?, genre = ?, rating = ?, book_notes = ?,
            to_be_read = ?, is_read = ?, shelved = ?, favorite = ?,
            publication_date = ?, isbn = ?, language = ?, publisher = ?, page_count = ?,
            vibes = ?, tags = ?, emoji = ?, updated_at = ?
        WHERE id = ? AND is_deleted = ?`)

	result, err := r.db.ExecContext(ctx, query,
		book.Title, book.Author, book.Genre, book.Rating, book.Notes,
		book.ToBeRead, book.IsRead, book.Shelved, book.Favorite,
		book.PublicationDate, book.ISBN, book.Language, book.Publisher, book.PageCount,
		book.Vibes, book.Tags, book.Emoji, book.UpdatedAt,
		book.ID, false,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: a book with this isbn already exists", domain.ErrConflict)
		}
		return domain.NewStoreError("update book", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.NewStoreError("update book", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindByID returns the book with the given id whether it is active or trashed.
func (r *BookRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	var book domain.Book
	query := r.db.Rebind(`SELECT` + bookColumns + bookFrom + ` WHERE b.id = ?`)

	err := r.db.GetContext(ctx, &book, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStoreError("find book", err)
	}
	return &book, nil
}

// FindWhere returns the books matching the filter. Trash queries are ordered
// newest-deleted first, everything else newest-created first.
func (r *BookRepository) FindWhere(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	where, args := buildBookWhere(filter)

	order := ` ORDER BY b.created_at DESC, b.id`
	if filter.Deleted != nil && *filter.Deleted {
		order = ` ORDER BY b.deleted_at DESC, b.id`
	}

	books := []domain.Book{}
	query := r.db.Rebind(`SELECT` + bookColumns + bookFrom + where + order)
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, domain.NewStoreError("find books", err)
	}
	return books, nil
}

// CountWhere counts the books matching the filter.
func (r *BookRepository) CountWhere(ctx context.Context, filter domain.BookFilter) (int64, error) {
	where, args := buildBookWhere(filter)

	var count int64
	query := r.db.Rebind(`SELECT COUNT(*) FROM books b` + where)
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, domain.NewStoreError("count books", err)
	}
	return count, nil
}

// buildBookWhere renders the filter as a WHERE clause over the "b" alias.
func buildBookWhere(f domain.BookFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	addBool := func(column string, v *bool) {
		if v != nil {
			conds = append(conds, column+" = ?")
			args = append(args, *v)
		}
	}

	addBool("b.is_deleted", f.Deleted)
	if f.DeletedBefore != nil {
		conds = append(conds, "b.deleted_at IS NOT NULL", "b.deleted_at < ?")
		args = append(args, f.DeletedBefore.UTC())
	}
	if f.Genre != "" {
		conds = append(conds, "b.genre = ?")
		args = append(args, f.Genre)
	}
	addBool("b.is_read", f.IsRead)
	addBool("b.to_be_read", f.ToBeRead)
	addBool("b.shelved", f.Shelved)
	addBool("b.favorite", f.Favorite)
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		conds = append(conds, "(LOWER(b.title) LIKE ? OR LOWER(b.author) LIKE ?)")
		args = append(args, pattern, pattern)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// isUniqueViolation recognises unique-constraint failures from Postgres and SQLite.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
