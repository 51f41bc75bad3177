package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookwyrm/internal/domain"
)

// BookStore is the record store the lifecycle operations run against.
// Every method is atomic on its own; none of them spans another.
type BookStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Book, error)
	FindWhere(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error)
	CountWhere(ctx context.Context, filter domain.BookFilter) (int64, error)
	// SetDeletion trashes the book when deletedAt is set and restores it when nil.
	SetDeletion(ctx context.Context, id uuid.UUID, deletedAt *time.Time) error
	// DeleteByID and DeleteWhere also remove the photo rows and return them.
	DeleteByID(ctx context.Context, id uuid.UUID) ([]domain.BookPhoto, error)
	// DeleteByIDWhere deletes only while the book still matches filter.
	DeleteByIDWhere(ctx context.Context, id uuid.UUID, filter domain.BookFilter) ([]domain.BookPhoto, error)
	DeleteWhere(ctx context.Context, filter domain.BookFilter) (int64, []domain.BookPhoto, error)
}

// BookWriter adds the CRUD writes used by BookService.
type BookWriter interface {
	BookStore
	Create(ctx context.Context, book *domain.Book) error
	Update(ctx context.Context, book *domain.Book) error
}

// PhotoStore persists photo rows.
type PhotoStore interface {
	Create(ctx context.Context, photo *domain.BookPhoto) error
	GetByID(ctx context.Context, id int64) (*domain.BookPhoto, error)
	ListByBook(ctx context.Context, bookID uuid.UUID) ([]domain.BookPhoto, error)
	ListByBooks(ctx context.Context, bookIDs []uuid.UUID) (map[uuid.UUID][]domain.BookPhoto, error)
	Delete(ctx context.Context, id int64) error
}

// RunLocker provides a named lock shared by every process using the database.
type RunLocker interface {
	TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, owner string) error
}
